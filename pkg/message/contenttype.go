package message

import "strings"

// extensionMIME is the small file-extension → Content-Type table used by
// the file-stream response encoder.
var extensionMIME = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".txt":  "text/plain; charset=utf-8",
}

// ContentTypeForExtension returns the Content-Type for the file extension
// found in path, or "application/octet-stream" if unknown.
func ContentTypeForExtension(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx == -1 {
		return "application/octet-stream"
	}
	ext := strings.ToLower(path[idx:])
	if ct, ok := extensionMIME[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

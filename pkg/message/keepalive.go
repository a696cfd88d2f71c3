package message

import "strings"

// hasToken reports whether token appears, case-insensitively, among the
// comma-separated values of a Connection header.
func hasToken(connectionHeader, token string) bool {
	for _, part := range strings.Split(connectionHeader, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// KeepAliveCapable applies the keep-alive default policy:
// HTTP/1.1 defaults to keep-alive unless "Connection: close" is present;
// HTTP/1.0 defaults to close unless "Connection: keep-alive" is present.
func KeepAliveCapable(proto, connectionHeader string) bool {
	if proto == "HTTP/1.1" {
		return !hasToken(connectionHeader, "close")
	}
	return hasToken(connectionHeader, "keep-alive")
}

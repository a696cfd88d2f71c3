package message

// statusMessages is the known status-code to reason-phrase table; codes
// outside this table fall back to a default placeholder.
var statusMessages = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	505: "HTTP Version Not Supported",
}

// StatusMessage returns the known reason phrase for code, or "-" if the
// code is not in the table.
func StatusMessage(code int) string {
	if m, ok := statusMessages[code]; ok {
		return m
	}
	return "-"
}

// ValidStatusCode reports whether code falls in the RFC 7230 range 100–599.
func ValidStatusCode(code int) bool {
	return code >= 100 && code <= 599
}

// ValidRedirectStatus reports whether code is one of the redirect codes the
// encoder accepts as a caller override.
func ValidRedirectStatus(code int) bool {
	switch code {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}

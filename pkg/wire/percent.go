// Package wire implements the C1 wire primitives: percent-encoding,
// header-line/parameter splitting, query and URL parsing, cookie parsing,
// and response body content typing.
package wire

import (
	"strings"

	"github.com/lowmem/uhttp/pkg/errors"
)

const hexDigits = "0123456789ABCDEF"

// PercentEncode escapes every byte of s outside the unreserved RFC 3986 set
// into %HH form. It is the left-inverse partner of PercentDecode.
func PercentEncode(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0f])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	}
	return false
}

// PercentDecode decodes %HH escapes in s. It never treats '+' as space —
// that translation belongs to query parsing only. A lone '%'
// or a non-hex digit following one is a Malformed error.
func PercentDecode(s string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", errors.NewMalformedError("percent-decode", "truncated percent-escape")
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return "", errors.NewMalformedError("percent-decode", "invalid percent-escape")
		}
		sb.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return sb.String(), nil
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

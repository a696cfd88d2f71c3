package wire

import "strings"

// ParseQuery splits raw on '&', splits each part on the first '=' (value
// defaults to empty), '+'-to-space then percent-decodes both name and
// value, and merges into dst with last-occurrence-wins semantics.
// dst may be nil, in which case a new map is allocated.
func ParseQuery(raw string, dst map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string)
	}
	if raw == "" {
		return dst
	}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		var name, value string
		if eq := strings.IndexByte(part, '='); eq == -1 {
			name = part
		} else {
			name, value = part[:eq], part[eq+1:]
		}
		name = plusToSpace(name)
		value = plusToSpace(value)
		decodedName, err := PercentDecode(name)
		if err != nil {
			continue
		}
		decodedValue, err := PercentDecode(value)
		if err != nil {
			continue
		}
		dst[decodedName] = decodedValue
	}
	return dst
}

// EncodeQuery renders values back into a raw query string, percent-encoding
// both names and values and joining repeated pairs with '&'.
func EncodeQuery(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	var sb strings.Builder
	first := true
	for k, v := range values {
		if !first {
			sb.WriteByte('&')
		}
		first = false
		sb.WriteString(PercentEncode(k))
		sb.WriteByte('=')
		sb.WriteString(PercentEncode(v))
	}
	return sb.String()
}

func plusToSpace(s string) string {
	if !strings.ContainsRune(s, '+') {
		return s
	}
	return strings.ReplaceAll(s, "+", " ")
}

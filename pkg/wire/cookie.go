package wire

import "strings"

// CookiePair is one name=value pair from a Cookie header, in the order it
// appeared on the wire.
type CookiePair struct {
	Name  string
	Value string
}

// ParseCookieHeader splits the Cookie request header on ';', trims each
// item, and splits on the first '='. Pairs are returned in
// wire order; a caller folding them into a single-value map should apply
// them in order so a later duplicate name wins.
func ParseCookieHeader(value string) []CookiePair {
	var out []CookiePair
	for _, item := range strings.Split(value, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		eq := strings.IndexByte(item, '=')
		if eq == -1 {
			out = append(out, CookiePair{Name: item})
			continue
		}
		out = append(out, CookiePair{
			Name:  strings.TrimSpace(item[:eq]),
			Value: strings.TrimSpace(item[eq+1:]),
		})
	}
	return out
}

// EncodeCookieHeader renders names (in order) and their values back into a
// single Cookie request header value, "a=1; b=2" form.
func EncodeCookieHeader(names []string, values map[string]string) string {
	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(values[name])
	}
	return sb.String()
}

package wire

import (
	"strings"

	"github.com/lowmem/uhttp/pkg/errors"
)

// SplitHeaderLine splits a single "Name: value" line into its lowercased,
// trimmed name and trimmed value. An empty name or a missing
// colon is Malformed.
func SplitHeaderLine(line string) (name, value string, err error) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", errors.NewMalformedError("split-header-line", "missing ':' separator")
	}
	name = strings.ToLower(strings.TrimSpace(line[:idx]))
	if name == "" {
		return "", "", errors.NewMalformedError("split-header-line", "empty header name")
	}
	value = strings.TrimSpace(line[idx+1:])
	return name, value, nil
}

// SplitHeaderParameters splits a parameterized header value such as
// `text/html; charset=utf-8; boundary="x"` into a mapping where the bare
// leading token is stored under the empty-string key and subsequent
// `k=v` pairs are stored with k lowercased and surrounding quotes
// stripped from v.
func SplitHeaderParameters(value string) map[string]string {
	out := make(map[string]string)
	parts := strings.Split(value, ";")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i == 0 && !strings.Contains(part, "=") {
			out[""] = part
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq == -1 {
			if i == 0 {
				out[""] = part
			}
			continue
		}
		k := strings.ToLower(strings.TrimSpace(part[:eq]))
		v := strings.TrimSpace(part[eq+1:])
		v = unquote(v)
		out[k] = v
	}
	return out
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

package wire

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lowmem/uhttp/pkg/errors"
)

// ParseRequestURL splits a request-line target into its percent-decoded
// path and raw (still-encoded) query string ("URL parse (server
// side)"). The decoded path must be valid UTF-8 (open question,
// resolved: reject with Malformed otherwise). '+' is never translated to
// space in the path.
func ParseRequestURL(raw string) (path, rawQuery string, err error) {
	if idx := strings.IndexByte(raw, '?'); idx != -1 {
		raw, rawQuery = raw[:idx], raw[idx+1:]
	}
	decoded, err := PercentDecode(raw)
	if err != nil {
		return "", "", err
	}
	if !utf8.ValidString(decoded) {
		return "", "", errors.NewMalformedError("parse-request-url", "path is not valid UTF-8")
	}
	return decoded, rawQuery, nil
}

// ClientURL is the parsed form of a client-supplied absolute URL.
type ClientURL struct {
	Host     string
	Port     int
	Path     string // everything beyond the authority, verbatim
	IsSecure bool
	Username string
	Password string
	HasAuth  bool
}

// ParseClientURL parses scheme://[user:pass@]host[:port][/path]. An absent
// scheme defaults to http. Default ports are 80/443. IPv6 literals must be
// bracketed.
func ParseClientURL(raw string) (*ClientURL, error) {
	rest := raw
	scheme := "http"
	if idx := strings.Index(rest, "://"); idx != -1 {
		scheme = strings.ToLower(rest[:idx])
		rest = rest[idx+3:]
	}

	out := &ClientURL{IsSecure: scheme == "https"}

	authority := rest
	path := ""
	if idx := strings.IndexByte(rest, '/'); idx != -1 {
		authority, path = rest[:idx], rest[idx:]
	}
	out.Path = path

	if at := strings.LastIndexByte(authority, '@'); at != -1 {
		userinfo := authority[:at]
		authority = authority[at+1:]
		out.HasAuth = true
		if colon := strings.IndexByte(userinfo, ':'); colon != -1 {
			out.Username, out.Password = userinfo[:colon], userinfo[colon+1:]
		} else {
			out.Username = userinfo
		}
	}

	host, port, err := splitHostPort(authority)
	if err != nil {
		return nil, err
	}
	out.Host = host
	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, errors.NewMalformedError("parse-client-url", "invalid port")
		}
		out.Port = p
	} else if out.IsSecure {
		out.Port = 443
	} else {
		out.Port = 80
	}

	return out, nil
}

// splitHostPort handles bracketed IPv6 literals ([::1]:8080) in addition
// to plain host[:port] authorities.
func splitHostPort(authority string) (host, port string, err error) {
	if strings.HasPrefix(authority, "[") {
		end := strings.IndexByte(authority, ']')
		if end == -1 {
			return "", "", errors.NewMalformedError("parse-client-url", "unterminated IPv6 literal")
		}
		host = authority[1:end]
		rest := authority[end+1:]
		if strings.HasPrefix(rest, ":") {
			port = rest[1:]
		}
		return host, port, nil
	}
	if idx := strings.LastIndexByte(authority, ':'); idx != -1 {
		return authority[:idx], authority[idx+1:], nil
	}
	return authority, "", nil
}

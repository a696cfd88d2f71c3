package client

import (
	"strings"

	"github.com/lowmem/uhttp/pkg/message"
	"github.com/lowmem/uhttp/pkg/wire"
)

// CookieJar stores cookies per host. Attributes beyond name/value
// (Path, Domain, Expires, ...) are an explicit Non-goal; only the
// name=value pair is retained, last-wins per name.
type CookieJar struct {
	byHost map[string]*message.Cookies
}

// NewCookieJar returns an empty jar.
func NewCookieJar() *CookieJar {
	return &CookieJar{byHost: make(map[string]*message.Cookies)}
}

// Store records every Set-Cookie value from headers against host.
func (j *CookieJar) Store(host string, headers *message.Headers) {
	for _, v := range headers.Values("Set-Cookie") {
		name, value, ok := splitSetCookie(v)
		if !ok {
			continue
		}
		c, found := j.byHost[host]
		if !found {
			c = message.NewCookies()
			j.byHost[host] = c
		}
		c.Set(name, value)
	}
}

// CookieHeader renders the Cookie request header value for host, or ""
// if the jar holds nothing for it.
func (j *CookieJar) CookieHeader(host string) string {
	c, ok := j.byHost[host]
	if !ok || c.Len() == 0 {
		return ""
	}
	names := c.Names()
	values := make(map[string]string, len(names))
	for _, n := range names {
		v, _ := c.Get(n)
		values[n] = v
	}
	return wire.EncodeCookieHeader(names, values)
}

func splitSetCookie(v string) (name, value string, ok bool) {
	first := strings.SplitN(v, ";", 2)[0]
	kv := strings.SplitN(strings.TrimSpace(first), "=", 2)
	if len(kv) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1]), true
}

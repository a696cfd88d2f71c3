package client

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lowmem/uhttp/pkg/errors"
)

// digestChallenge is a parsed WWW-Authenticate: Digest header (RFC 2617).
type digestChallenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	QOP       string
	Algorithm string
	Stale     bool
}

// parseChallenge reads the comma-separated key=value parameters of a
// Digest WWW-Authenticate header value.
func parseChallenge(header string) (*digestChallenge, error) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(strings.ToLower(header), "digest ") {
		return nil, errors.NewAuthFailedError("not a Digest challenge")
	}
	params := splitAuthParams(header[len("Digest "):])
	c := &digestChallenge{
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		Opaque:    params["opaque"],
		QOP:       firstQOP(params["qop"]),
		Algorithm: params["algorithm"],
	}
	if c.Nonce == "" {
		return nil, errors.NewAuthFailedError("Digest challenge missing nonce")
	}
	c.Stale = strings.EqualFold(params["stale"], "true")
	return c, nil
}

func firstQOP(raw string) string {
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v == "auth" {
			return "auth"
		}
	}
	return ""
}

// splitAuthParams parses comma-separated key=value or key="value" pairs.
func splitAuthParams(s string) map[string]string {
	out := make(map[string]string)
	for _, item := range splitRespectingQuotes(s) {
		eq := strings.IndexByte(item, '=')
		if eq == -1 {
			continue
		}
		key := strings.TrimSpace(item[:eq])
		val := strings.TrimSpace(item[eq+1:])
		val = strings.Trim(val, `"`)
		out[key] = val
	}
	return out
}

func splitRespectingQuotes(s string) []string {
	var out []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// digestSession tracks the nonce-count bookkeeping across requests on
// one connection: nc increments per use of the same nonce.
type digestSession struct {
	challenge *digestChallenge
	nc        int
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func computeHA1(username, realm, password string) string {
	return md5Hex(username + ":" + realm + ":" + password)
}

// sessionHA1 applies the MD5-sess transform (RFC 2617 §3.2.2.2): the base
// HA1 is rehashed with the challenge nonce and the request's cnonce, so a
// fresh session key is derived per nonce/cnonce pair instead of reusing
// the bare username:realm:password digest on every request.
func sessionHA1(ha1, nonce, cnonce string) string {
	return md5Hex(ha1 + ":" + nonce + ":" + cnonce)
}

func computeHA2(method, uri string) string {
	return md5Hex(method + ":" + uri)
}

func newCNonce() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.NewAuthFailedError("generating cnonce: " + err.Error())
	}
	return hex.EncodeToString(buf), nil
}

// buildAuthorization renders the Authorization: Digest header value for
// one request, advancing the session's nonce-count.
func buildAuthorization(sess *digestSession, username, password, method, uri string) (string, error) {
	ch := sess.challenge
	sess.nc++
	nc := fmt.Sprintf("%08x", sess.nc)
	cnonce, err := newCNonce()
	if err != nil {
		return "", err
	}

	ha1 := computeHA1(username, ch.Realm, password)
	if strings.EqualFold(ch.Algorithm, "MD5-sess") {
		ha1 = sessionHA1(ha1, ch.Nonce, cnonce)
	}
	ha2 := computeHA2(method, uri)

	var response string
	if ch.QOP == "auth" {
		response = md5Hex(strings.Join([]string{ha1, ch.Nonce, nc, cnonce, ch.QOP, ha2}, ":"))
	} else {
		response = md5Hex(strings.Join([]string{ha1, ch.Nonce, ha2}, ":"))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		username, ch.Realm, ch.Nonce, uri, response)
	if ch.Opaque != "" {
		fmt.Fprintf(&sb, `, opaque="%s"`, ch.Opaque)
	}
	if ch.Algorithm != "" {
		fmt.Fprintf(&sb, `, algorithm=%s`, ch.Algorithm)
	}
	if ch.QOP == "auth" {
		fmt.Fprintf(&sb, `, qop=auth, nc=%s, cnonce="%s"`, nc, cnonce)
	}
	return sb.String(), nil
}

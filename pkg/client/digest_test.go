package client

import (
	"strings"
	"testing"
)

func TestParseChallenge(t *testing.T) {
	header := `Digest realm="test@host", nonce="abc123", qop="auth", opaque="xyz"`
	c, err := parseChallenge(header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Realm != "test@host" || c.Nonce != "abc123" || c.QOP != "auth" || c.Opaque != "xyz" {
		t.Fatalf("unexpected challenge: %+v", c)
	}
}

func TestParseChallengeRejectsNonDigest(t *testing.T) {
	if _, err := parseChallenge("Basic realm=\"x\""); err == nil {
		t.Fatalf("expected error for non-Digest scheme")
	}
}

func TestBuildAuthorizationIncrementsNonceCount(t *testing.T) {
	sess := &digestSession{challenge: &digestChallenge{
		Realm: "test", Nonce: "n1", QOP: "auth",
	}}
	h1, err := buildAuthorization(sess, "alice", "secret", "GET", "/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.nc != 1 {
		t.Fatalf("expected nc to be 1 after first use, got %d", sess.nc)
	}
	if !contains(h1, `nc=00000001`) {
		t.Fatalf("expected nc=00000001 in header, got %q", h1)
	}
	h2, err := buildAuthorization(sess, "alice", "secret", "GET", "/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.nc != 2 {
		t.Fatalf("expected nc to be 2 after second use, got %d", sess.nc)
	}
	if !contains(h2, `nc=00000002`) {
		t.Fatalf("expected nc=00000002 in header, got %q", h2)
	}
}

func TestBuildAuthorizationMD5SessUsesSessionKey(t *testing.T) {
	sess := &digestSession{challenge: &digestChallenge{
		Realm: "test", Nonce: "n1", QOP: "auth", Algorithm: "MD5-sess",
	}}
	h, err := buildAuthorization(sess, "alice", "secret", "GET", "/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(h, `algorithm=MD5-sess`) {
		t.Fatalf("expected algorithm=MD5-sess echoed back in header, got %q", h)
	}

	plainHA1 := computeHA1("alice", "test", "secret")
	wantResponse := md5Hex(strings.Join([]string{
		sessionHA1(plainHA1, "n1", cnonceFromHeader(h)),
		"n1", "00000001", cnonceFromHeader(h), "auth", computeHA2("GET", "/x"),
	}, ":"))
	if !contains(h, `response="`+wantResponse+`"`) {
		t.Fatalf("expected MD5-sess response %q in header, got %q", wantResponse, h)
	}
}

func cnonceFromHeader(h string) string {
	const marker = `cnonce="`
	i := strings.Index(h, marker)
	if i == -1 {
		return ""
	}
	rest := h[i+len(marker):]
	return rest[:strings.IndexByte(rest, '"')]
}

func TestComputeHA1HA2(t *testing.T) {
	ha1 := computeHA1("alice", "realm", "secret")
	if len(ha1) != 32 {
		t.Fatalf("expected 32-char hex MD5 digest, got %q", ha1)
	}
	ha2 := computeHA2("GET", "/x")
	if len(ha2) != 32 {
		t.Fatalf("expected 32-char hex MD5 digest, got %q", ha2)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

package wire

import "testing"

func TestParseCookieHeader(t *testing.T) {
	pairs := ParseCookieHeader("a=1; b=2; c=3")
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	if pairs[0].Name != "a" || pairs[0].Value != "1" {
		t.Fatalf("unexpected first pair: %+v", pairs[0])
	}
	if pairs[2].Name != "c" || pairs[2].Value != "3" {
		t.Fatalf("unexpected last pair: %+v", pairs[2])
	}
}

func TestEncodeCookieHeader(t *testing.T) {
	got := EncodeCookieHeader([]string{"a", "b"}, map[string]string{"a": "1", "b": "2"})
	if got != "a=1; b=2" {
		t.Fatalf("unexpected encoding: %q", got)
	}
}

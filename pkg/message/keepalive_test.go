package message

import "testing"

func TestKeepAliveCapableHTTP11Default(t *testing.T) {
	if !KeepAliveCapable("HTTP/1.1", "") {
		t.Fatalf("expected HTTP/1.1 to default to keep-alive")
	}
	if KeepAliveCapable("HTTP/1.1", "close") {
		t.Fatalf("expected 'Connection: close' to override HTTP/1.1 default")
	}
}

func TestKeepAliveCapableHTTP10Default(t *testing.T) {
	if KeepAliveCapable("HTTP/1.0", "") {
		t.Fatalf("expected HTTP/1.0 to default to close")
	}
	if !KeepAliveCapable("HTTP/1.0", "keep-alive") {
		t.Fatalf("expected 'Connection: keep-alive' to override HTTP/1.0 default")
	}
}

func TestKeepAliveCapableMultiToken(t *testing.T) {
	if !KeepAliveCapable("HTTP/1.1", "Upgrade, Keep-Alive") {
		t.Fatalf("expected non-close tokens to leave HTTP/1.1 default in place")
	}
}

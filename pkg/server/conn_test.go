package server

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lowmem/uhttp/pkg/netio"
	"github.com/lowmem/uhttp/pkg/wire"
)

func pipeConn() (*Conn, net.Conn) {
	serverSide, clientSide := net.Pipe()
	opts := DefaultOptions()
	c := newConn(netio.Wrap(serverSide, false), &opts)
	return c, clientSide
}

func TestConnSendsCannedErrorOnMissingHost(t *testing.T) {
	c, peer := pipeConn()
	defer peer.Close()

	req, err := c.feed([]byte("GET / HTTP/1.1\r\n\r\n"))
	if req != nil {
		t.Fatalf("expected no completed request for a malformed one")
	}
	if err == nil {
		t.Fatalf("expected a missing-Host parse error")
	}
	if c.state != StateWriting || !c.closeAfterWrite {
		t.Fatalf("expected connection queued to write a canned error and then close, got state=%v closeAfterWrite=%v", c.state, c.closeAfterWrite)
	}
	if !strings.Contains(string(c.outbound), "400") {
		t.Fatalf("expected a 400 status line in the canned response, got %q", c.outbound)
	}
}

func TestConnRequestResponseRoundTrip(t *testing.T) {
	c, peer := pipeConn()
	defer peer.Close()

	go peer.Write([]byte("GET /hi HTTP/1.1\r\nHost: h\r\n\r\n"))

	var req = waitFor(t, func() (bool, error) {
		r, err := c.onReadable()
		if err != nil && err != netio.ErrWouldBlock {
			return false, err
		}
		if r != nil {
			return true, nil
		}
		return false, nil
	})
	if !req {
		t.Fatalf("request never completed")
	}

	if err := c.Respond(wire.Text("hi there"), 200, nil, nil); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	var mu sync.Mutex
	var out []byte
	readDone := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		for {
			peer.SetReadDeadline(time.Now().Add(2 * time.Second))
			n, err := peer.Read(buf)
			if n > 0 {
				mu.Lock()
				out = append(out, buf[:n]...)
				mu.Unlock()
			}
			if err != nil {
				close(readDone)
				return
			}
		}
	}()

	drained := waitFor(t, func() (bool, error) {
		if _, err := c.onWritable(); err != nil && err != netio.ErrWouldBlock {
			return false, err
		}
		return len(c.outbound) == 0 && c.fileSrc == nil, nil
	})
	if !drained {
		t.Fatalf("response never finished draining")
	}
	peer.Close()
	<-readDone

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(string(out), "200 OK") {
		t.Fatalf("expected 200 OK status line, got %q", out)
	}
	if !strings.Contains(string(out), "hi there") {
		t.Fatalf("expected body 'hi there', got %q", out)
	}
}

func waitFor(t *testing.T, step func() (bool, error)) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ok, err := step()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

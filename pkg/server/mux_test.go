package server

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/lowmem/uhttp/pkg/wire"
)

func TestMuxAcceptAndServeOneRequest(t *testing.T) {
	opts := DefaultOptions()
	opts.Address = "127.0.0.1"
	opts.Port = 0
	mux, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer mux.Close()

	addr := mux.Listener().Addr().(*net.TCPAddr)
	_, portStr, _ := net.SplitHostPort(addr.String())
	port, _ := strconv.Atoi(portStr)

	clientDone := make(chan string, 1)
	go func() {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
		if err != nil {
			clientDone <- ""
			return
		}
		defer conn.Close()
		conn.Write([]byte("GET / HTTP/1.1\r\nHost: h\r\nConnection: close\r\n\r\n"))
		buf := make([]byte, 4096)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _ := conn.Read(buf)
		clientDone <- string(buf[:n])
	}()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := mux.TryAccept(); err != nil {
			t.Fatalf("TryAccept failed: %v", err)
		}
		ready, err := mux.ProcessEvents(mux.ReadSockets(), mux.WriteSockets())
		if err != nil {
			t.Fatalf("ProcessEvents failed: %v", err)
		}
		for _, r := range ready {
			if err := r.Conn.Respond(wire.Text("ok"), 200, nil, nil); err != nil {
				t.Fatalf("respond failed: %v", err)
			}
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case resp := <-clientDone:
		if resp == "" {
			t.Fatalf("client never received a response")
		}
	case <-time.After(4 * time.Second):
		t.Fatalf("timed out waiting for client response")
	}
}

func TestMuxAdmissionControlRejectsOverCapacity(t *testing.T) {
	opts := DefaultOptions()
	opts.Address = "127.0.0.1"
	opts.Port = 0
	opts.MaxWaitingClients = 1
	mux, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer mux.Close()

	if len(mux.Conns()) != 0 {
		t.Fatalf("expected no connections initially")
	}
	if stats := mux.Stats(); stats.ActiveConnections != 0 {
		t.Fatalf("expected zero active connections, got %+v", stats)
	}

	addr := mux.Listener().Addr().String()
	for i := 0; i < 2; i++ {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err != nil {
			t.Fatalf("dial %d failed: %v", i, err)
		}
		defer conn.Close()
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s := mux.Stats(); s.TotalAccepted+s.TotalRejected >= 2 {
			break
		}
		if _, err := mux.TryAccept(); err != nil {
			t.Fatalf("TryAccept failed: %v", err)
		}
	}
	if stats := mux.Stats(); stats.ActiveConnections != 1 || stats.TotalAccepted != 1 || stats.TotalRejected != 1 {
		t.Fatalf("expected one accepted and one rejected connection with MaxWaitingClients=1, got %+v", stats)
	}
}

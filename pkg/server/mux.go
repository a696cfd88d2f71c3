package server

import (
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/lowmem/uhttp/pkg/errors"
	"github.com/lowmem/uhttp/pkg/message"
	"github.com/lowmem/uhttp/pkg/netio"
)

// Ready pairs a completed request with the connection it arrived on.
type Ready struct {
	Conn    *Conn
	Request *message.Request
}

// Stats is a point-in-time snapshot of the multiplexer's connection
// bookkeeping.
type Stats struct {
	ActiveConnections int
	TotalAccepted     uint64
	TotalRejected     uint64
}

// Mux owns a listen socket and the set of accepted connections. It
// never blocks: a caller's own readiness loop (select, epoll, or
// anything else) decides when to call TryAccept/ProcessEvents.
type Mux struct {
	opts          Options
	listener      net.Listener
	conns         map[*Conn]struct{}
	totalAccepted uint64
	totalRejected uint64
}

// New binds a listener at opts.Address:opts.Port.
func New(opts Options) (*Mux, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(opts.Address, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, errors.NewIOError("binding listen socket", err)
	}
	return &Mux{opts: opts, listener: l, conns: make(map[*Conn]struct{})}, nil
}

// Listener exposes the raw listener so a caller's multiplexer can watch
// it for accept-readiness directly, alongside ReadSockets/WriteSockets.
func (m *Mux) Listener() net.Listener { return m.listener }

// Conns returns every currently accepted connection.
func (m *Mux) Conns() []*Conn {
	out := make([]*Conn, 0, len(m.conns))
	for c := range m.conns {
		out = append(out, c)
	}
	return out
}

// ReadSockets returns the connections a caller's multiplexer should poll
// for read-readiness this turn.
func (m *Mux) ReadSockets() []*Conn {
	var out []*Conn
	for c := range m.conns {
		if c.WantsRead() {
			out = append(out, c)
		}
	}
	return out
}

// WriteSockets returns the connections a caller's multiplexer should
// poll for write-readiness this turn.
func (m *Mux) WriteSockets() []*Conn {
	var out []*Conn
	for c := range m.conns {
		if c.WantsWrite() {
			out = append(out, c)
		}
	}
	return out
}

// Stats returns a snapshot of connection bookkeeping.
func (m *Mux) Stats() Stats {
	return Stats{
		ActiveConnections: len(m.conns),
		TotalAccepted:     m.totalAccepted,
		TotalRejected:     m.totalRejected,
	}
}

// TryAccept performs one non-blocking accept attempt, applying admission
// control (max_waiting_clients): once the server already holds
// that many connections, a newly accepted socket is closed immediately
// rather than queued unbounded.
func (m *Mux) TryAccept() (*Conn, error) {
	if tl, ok := m.listener.(*net.TCPListener); ok {
		// A deadline already in the past fails Accept before it looks at
		// the backlog, so allow a millisecond for a pending connection.
		if err := tl.SetDeadline(time.Now().Add(time.Millisecond)); err != nil {
			return nil, err
		}
	}
	raw, err := m.listener.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, errors.NewIOError("accepting connection", err)
	}

	if m.opts.MaxWaitingClients > 0 && len(m.conns) >= m.opts.MaxWaitingClients {
		raw.Close()
		m.totalRejected++
		return nil, nil
	}

	var wrapped netio.Conn
	if m.opts.TLSConfig != nil {
		wrapped = netio.Wrap(tls.Server(raw, m.opts.TLSConfig), true)
	} else {
		wrapped = netio.Wrap(raw, false)
	}

	c := newConn(wrapped, &m.opts)
	m.conns[c] = struct{}{}
	m.totalAccepted++
	return c, nil
}

// ProcessEvents drives one non-blocking read or write turn for each
// connection named in readReady/writeReady, surfacing at most one
// completed request per connection this call (ordering), and
// reaps any connection that finished closing.
func (m *Mux) ProcessEvents(readReady, writeReady []*Conn) ([]Ready, error) {
	var out []Ready

	for _, c := range writeReady {
		if _, ok := m.conns[c]; !ok {
			continue
		}
		if req, _ := c.onWritable(); req != nil {
			out = append(out, Ready{Conn: c, Request: req})
		}
	}

	for _, c := range readReady {
		if _, ok := m.conns[c]; !ok {
			continue
		}
		if req, _ := c.onReadable(); req != nil {
			out = append(out, Ready{Conn: c, Request: req})
		}
	}

	for c := range m.conns {
		c.CheckDeadlines()
	}
	m.reap()
	return out, nil
}

func (m *Mux) reap() {
	for c := range m.conns {
		if c.State() == StateClosing && len(c.outbound) == 0 {
			c.Close()
			delete(m.conns, c)
		}
	}
}

// Wait is a convenience entry point for callers that do not already run
// their own select loop: it polls the listener and every connection
// socket with short deadlines until a request arrives or timeout
// elapses. Production integrations are expected to drive
// ReadSockets/WriteSockets/TryAccept/ProcessEvents from their own
// multiplexer instead ("the multiplexer is a thin adapter, not
// the only way to drive the engine").
func (m *Mux) Wait(timeout time.Duration) ([]Ready, error) {
	deadlineAt := time.Now().Add(timeout)
	for {
		if _, err := m.TryAccept(); err != nil {
			return nil, err
		}
		ready, err := m.ProcessEvents(m.ReadSockets(), m.WriteSockets())
		if err != nil {
			return nil, err
		}
		if len(ready) > 0 {
			return ready, nil
		}
		if time.Now().After(deadlineAt) {
			return nil, nil
		}
		time.Sleep(time.Millisecond)
	}
}

// Close shuts down the listener and every accepted connection.
func (m *Mux) Close() error {
	for c := range m.conns {
		c.Close()
		delete(m.conns, c)
	}
	return m.listener.Close()
}

package server

import (
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lowmem/uhttp/pkg/constants"
	"github.com/lowmem/uhttp/pkg/deadline"
	"github.com/lowmem/uhttp/pkg/errors"
	"github.com/lowmem/uhttp/pkg/message"
	"github.com/lowmem/uhttp/pkg/netio"
	"github.com/lowmem/uhttp/pkg/reqparser"
)

// State is one of a connection's coarse states in the request/response
// lifecycle.
type State int

const (
	StateReadHeaders State = iota
	StateReadBody
	StateDispatch
	StateWriting
	StateIdle
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateReadHeaders:
		return "READ_HEADERS"
	case StateReadBody:
		return "READ_BODY"
	case StateDispatch:
		return "DISPATCH"
	case StateWriting:
		return "WRITING"
	case StateIdle:
		return "IDLE"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Conn is one accepted connection, driven entirely by Mux calling its
// onReadable/onWritable/CheckDeadlines methods in response to external
// readiness notifications. No method here blocks.
type Conn struct {
	raw  netio.Conn
	opts *Options

	parser *reqparser.Parser
	state  State

	requestCount     int
	idleDeadline     time.Time
	stallDeadline    time.Time
	current          *message.Request
	currentKeepAlive bool

	outbound        []byte
	closeAfterWrite bool

	fileSrc *os.File

	multipartActive   bool
	multipartBoundary string
}

func newConn(raw netio.Conn, opts *Options) *Conn {
	c := &Conn{
		raw:  raw,
		opts: opts,
		parser: reqparser.New(reqparser.Limits{
			MaxHeadersLength: opts.MaxHeadersLength,
			MaxContentLength: opts.MaxContentLength,
		}),
		state: StateReadHeaders,
	}
	c.parser.SetLenient(opts.Lenient)
	c.armStall()
	return c
}

// RemoteAddr returns the peer address of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// State reports the connection's current coarse state.
func (c *Conn) State() State { return c.state }

// Request returns the request currently awaiting a response, or nil.
func (c *Conn) Request() *message.Request { return c.current }

// WantsRead reports whether the multiplexer should include this
// connection's socket in its readable set.
func (c *Conn) WantsRead() bool {
	return c.state != StateClosing && len(c.outbound) < constants.OutboundSoftCap
}

// WantsWrite reports whether the multiplexer should include this
// connection's socket in its writable set.
func (c *Conn) WantsWrite() bool {
	return len(c.outbound) > 0 || c.fileSrc != nil
}

// Close releases the underlying socket and any open file stream.
func (c *Conn) Close() error {
	if c.fileSrc != nil {
		c.fileSrc.Close()
		c.fileSrc = nil
	}
	c.state = StateClosing
	return c.raw.Close()
}

func (c *Conn) armStall() {
	c.stallDeadline = deadline.ArmIdle(c.opts.KeepAliveTimeout)
}

func (c *Conn) armIdle() {
	c.idleDeadline = deadline.ArmIdle(c.opts.KeepAliveTimeout)
}

// CheckDeadlines closes the connection if it has been idle between
// requests, or stalled mid-request, past the configured keep-alive
// timeout. It is checked only at a readiness
// boundary — there is no background timer.
func (c *Conn) CheckDeadlines() {
	if c.state == StateClosing {
		return
	}
	if c.state == StateIdle && deadline.Expired(c.idleDeadline) {
		c.state = StateClosing
		return
	}
	if (c.state == StateReadHeaders || c.state == StateReadBody) && deadline.Expired(c.stallDeadline) {
		c.sendErrorAndClose(errors.NewTimeoutError("read-request", c.opts.KeepAliveTimeout))
	}
}

// onReadable performs one non-blocking read and feeds it to the request
// parser, surfacing at most one completed request ("at most
// one request per connection per process_events call").
func (c *Conn) onReadable() (*message.Request, error) {
	if c.state == StateClosing {
		return nil, nil
	}
	buf := make([]byte, constants.ReadChunkCap)
	n, err := c.raw.Read(buf)
	if err != nil {
		if err == netio.ErrWouldBlock {
			return nil, nil
		}
		c.state = StateClosing
		return nil, err
	}
	if n == 0 {
		c.state = StateClosing
		return nil, io.EOF
	}
	return c.feed(buf[:n])
}

func (c *Conn) feed(data []byte) (*message.Request, error) {
	req, err := c.parser.Feed(data)
	if err != nil {
		c.sendErrorAndClose(err)
		return nil, err
	}
	if req == nil {
		if c.parser.Phase() == reqparser.PhaseBody {
			c.state = StateReadBody
		} else {
			c.state = StateReadHeaders
		}
		c.armStall()
		return nil, nil
	}
	c.acceptRequest(req)
	return req, nil
}

func (c *Conn) acceptRequest(req *message.Request) {
	c.current = req
	c.requestCount++
	c.currentKeepAlive = c.computeKeepAlive(req)
	c.state = StateDispatch
}

func (c *Conn) computeKeepAlive(req *message.Request) bool {
	connHeader, _ := req.ConnectionHeader()
	if !message.KeepAliveCapable(req.Proto, connHeader) {
		return false
	}
	if c.opts.KeepAliveMaxRequests > 0 && c.requestCount >= c.opts.KeepAliveMaxRequests {
		return false
	}
	return true
}

// onWritable drains the outbound buffer, pulls the next chunk of a
// streaming file response when it runs dry, and returns a pipelined
// request if finishing the response unblocks one already buffered by
// the parser.
func (c *Conn) onWritable() (*message.Request, error) {
	for len(c.outbound) > 0 {
		n, err := c.raw.Write(c.outbound)
		if n > 0 {
			c.outbound = c.outbound[n:]
		}
		if err != nil {
			if err == netio.ErrWouldBlock {
				return nil, nil
			}
			c.state = StateClosing
			return nil, err
		}
	}

	if c.fileSrc != nil {
		chunk := make([]byte, constants.FileStreamChunk)
		n, ferr := c.fileSrc.Read(chunk)
		if n > 0 {
			c.outbound = append(c.outbound, chunk[:n]...)
		}
		if ferr == io.EOF {
			c.fileSrc.Close()
			c.fileSrc = nil
			return c.finishResponse()
		}
		if ferr != nil {
			c.fileSrc.Close()
			c.fileSrc = nil
			c.state = StateClosing
			return nil, ferr
		}
		return nil, nil
	}

	if c.multipartActive {
		return nil, nil
	}

	return c.finishResponse()
}

func (c *Conn) finishResponse() (*message.Request, error) {
	c.current = nil
	if c.closeAfterWrite {
		c.state = StateClosing
		return nil, nil
	}
	c.state = StateIdle
	c.armIdle()
	if !c.parser.Pending() {
		return nil, nil
	}
	return c.feed(nil)
}

// sendErrorAndClose builds a canned error response from a parse or
// timeout failure and queues the connection to close once it drains,
// since the framing that would let the connection keep going is exactly
// what failed ("a connection cannot recover from a parse
// error mid-stream").
func (c *Conn) sendErrorAndClose(err error) {
	status := errors.StatusCode(err)
	if status == 0 {
		status = 400
	}
	proto := "HTTP/1.1"
	if c.current != nil {
		proto = c.current.Proto
	}
	body := []byte(err.Error())
	h := message.NewHeaders()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Connection", "close")

	var sb strings.Builder
	sb.WriteString(proto)
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(status))
	sb.WriteByte(' ')
	sb.WriteString(message.StatusMessage(status))
	sb.WriteString("\r\n")
	h.WriteTo(&sb)
	sb.WriteString("\r\n")

	c.outbound = append(c.outbound, []byte(sb.String())...)
	c.outbound = append(c.outbound, body...)
	c.current = nil
	c.closeAfterWrite = true
	c.state = StateWriting
}

package client

import (
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"crypto/tls"

	"github.com/lowmem/uhttp/pkg/constants"
	"github.com/lowmem/uhttp/pkg/deadline"
	"github.com/lowmem/uhttp/pkg/errors"
	"github.com/lowmem/uhttp/pkg/message"
	"github.com/lowmem/uhttp/pkg/netio"
	"github.com/lowmem/uhttp/pkg/respparser"
	"github.com/lowmem/uhttp/pkg/wire"
)

// State is one of a client connection's lifecycle states.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSending
	StateAwaitStatus
	StateAwaitHeaders
	StateAwaitBody
	StateIdle
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateSending:
		return "SENDING"
	case StateAwaitStatus:
		return "AWAIT_STATUS"
	case StateAwaitHeaders:
		return "AWAIT_HEADERS"
	case StateAwaitBody:
		return "AWAIT_BODY"
	case StateIdle:
		return "IDLE"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Request is an outgoing client request (client side).
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers *message.Headers
	Body    wire.BodyData
}

// Client drives one connection's lifecycle at a time: connect, send a
// request, await the response, and either idle for reuse or close.
// Nothing here spawns a goroutine; Connect/Do poll with a
// bounded timeout, while WantsRead/WantsWrite/ProcessRead/ProcessWrite
// let a caller drive the same state machine from its own multiplexer.
type Client struct {
	opts Options
	jar  *CookieJar

	raw    netio.Conn
	state  State
	parser *respparser.Parser

	host   string
	port   int
	secure bool

	outbound         []byte
	requestKeepAlive bool
	lastMethod       string
	lastURI          string

	connectDeadline time.Time
	requestDeadline time.Time
	idleDeadline    time.Time

	digest *digestSession
}

// New returns a disconnected Client.
func New(opts Options) *Client {
	return &Client{opts: opts, jar: NewCookieJar(), state: StateDisconnected}
}

// Jar returns the client's cookie jar.
func (c *Client) Jar() *CookieJar { return c.jar }

// State reports the client's current lifecycle state.
func (c *Client) State() State { return c.state }

// Connect tries each address in addrs in order until one dials
// successfully (address-list connect), optionally through a
// SOCKS5 proxy and/or TLS.
func (c *Client) Connect(addrs []string, secure bool) error {
	c.state = StateConnecting
	c.connectDeadline = deadline.NewConnect(c.opts.ConnectTimeout)

	var lastErr error
	for _, addr := range addrs {
		raw, err := c.dial(addr)
		if err != nil {
			lastErr = err
			continue
		}
		if secure {
			tlsConn := tls.Client(raw, c.opts.TLSConfig)
			tlsConn.SetDeadline(deadline.NewConnect(c.opts.ConnectTimeout))
			if err := tlsConn.Handshake(); err != nil {
				raw.Close()
				lastErr = err
				continue
			}
			tlsConn.SetDeadline(time.Time{})
			raw = tlsConn
		}

		host, portStr, splitErr := net.SplitHostPort(addr)
		if splitErr != nil {
			host, portStr = addr, "80"
		}
		port, _ := strconv.Atoi(portStr)

		c.raw = netio.Wrap(raw, secure)
		c.host, c.port, c.secure = host, port, secure
		c.parser = respparser.New(respparser.Limits{
			MaxHeadersLength:     c.opts.MaxResponseHeaderLength,
			MaxBodyLength:        c.opts.MaxResponseLength,
			MemorySpillThreshold: c.opts.ResponseMemoryLimit,
		})
		c.parser.SetLenient(c.opts.Lenient)
		c.state = StateIdle
		return nil
	}
	c.state = StateDisconnected
	return errors.NewConnectionLostError("", 0, lastErr)
}

func (c *Client) dial(addr string) (net.Conn, error) {
	if c.opts.ProxyAddr != "" {
		return dialViaProxy(c.opts.ProxyAddr, addr, c.opts.ConnectTimeout)
	}
	d := &net.Dialer{Timeout: c.opts.ConnectTimeout}
	return d.Dial("tcp", addr)
}

func (c *Client) hostHeader() string {
	if (c.secure && c.port == 443) || (!c.secure && c.port == 80) {
		return c.host
	}
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// requestURI renders the path-and-query form that goes on the wire, so
// anything that needs to match what was actually sent (digest auth's HA2)
// computes it the same way SendRequest does.
func requestURI(req *Request) string {
	uri := req.Path
	if len(req.Query) > 0 {
		uri += "?" + wire.EncodeQuery(req.Query)
	}
	return uri
}

// SendRequest encodes req onto the outbound buffer and arms the request
// deadline. Call ProcessWrite/ProcessRead (or Do, for the synchronous
// convenience path) to carry it out.
func (c *Client) SendRequest(req *Request, keepAlive bool) error {
	if c.state != StateIdle {
		return errors.NewMalformedError("send-request", "client is not idle")
	}
	uri := requestURI(req)

	h := message.NewHeaders()
	if req.Headers != nil {
		h.Merge(req.Headers)
	}
	h.Set("Host", c.hostHeader())
	if keepAlive {
		h.Set("Connection", "keep-alive")
	} else {
		h.Set("Connection", "close")
	}
	if cookieHeader := c.jar.CookieHeader(c.host); cookieHeader != "" && !h.Has("Cookie") {
		h.Set("Cookie", cookieHeader)
	}

	contentType, body, err := wire.EncodeBody(req.Body, c.opts.codec())
	if err != nil {
		return err
	}
	if len(body) > 0 {
		if !h.Has("Content-Type") {
			h.Set("Content-Type", contentType)
		}
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}

	var sb strings.Builder
	sb.WriteString(req.Method)
	sb.WriteByte(' ')
	sb.WriteString(uri)
	sb.WriteString(" HTTP/1.1\r\n")
	h.WriteTo(&sb)
	sb.WriteString("\r\n")

	c.outbound = append(c.outbound, []byte(sb.String())...)
	c.outbound = append(c.outbound, body...)

	c.requestKeepAlive = keepAlive
	c.lastMethod = req.Method
	c.lastURI = uri
	c.parser.ExpectKeepAlive(keepAlive)
	c.state = StateSending
	c.requestDeadline = deadline.NewRequest(c.opts.RequestTimeout)
	return nil
}

// WantsWrite reports whether the multiplexer should poll this client's
// socket for write-readiness.
func (c *Client) WantsWrite() bool {
	return c.state == StateSending && len(c.outbound) > 0
}

// WantsRead reports whether the multiplexer should poll this client's
// socket for read-readiness.
func (c *Client) WantsRead() bool {
	switch c.state {
	case StateAwaitStatus, StateAwaitHeaders, StateAwaitBody:
		return true
	case StateSending:
		return len(c.outbound) == 0
	default:
		return false
	}
}

// ProcessWrite drains the outbound buffer; once empty it transitions to
// awaiting the response.
func (c *Client) ProcessWrite() error {
	for len(c.outbound) > 0 {
		n, err := c.raw.Write(c.outbound)
		if n > 0 {
			c.outbound = c.outbound[n:]
		}
		if err != nil {
			if err == netio.ErrWouldBlock {
				return nil
			}
			c.state = StateClosing
			return err
		}
	}
	if c.state == StateSending {
		c.state = StateAwaitStatus
	}
	return nil
}

// ProcessRead performs one non-blocking read and feeds the response
// parser, returning a completed *respparser.Response once the status
// line, headers, and body have all arrived.
func (c *Client) ProcessRead() (*respparser.Response, error) {
	if c.state != StateAwaitStatus && c.state != StateAwaitHeaders && c.state != StateAwaitBody {
		return nil, nil
	}
	buf := make([]byte, constants.ReadChunkCap)
	n, err := c.raw.Read(buf)
	if err != nil {
		if err == netio.ErrWouldBlock {
			return nil, nil
		}
		if err == io.EOF {
			resp, ferr := c.parser.FeedEOF()
			c.state = StateClosing
			return resp, ferr
		}
		c.state = StateClosing
		return nil, err
	}
	if n == 0 {
		resp, ferr := c.parser.FeedEOF()
		c.state = StateClosing
		return resp, ferr
	}

	resp, ferr := c.parser.Feed(buf[:n])
	if ferr != nil {
		c.state = StateClosing
		return nil, ferr
	}
	if resp == nil {
		switch c.parser.Phase() {
		case respparser.PhaseHeaders:
			c.state = StateAwaitHeaders
		case respparser.PhaseBody:
			c.state = StateAwaitBody
		}
		return nil, nil
	}

	c.jar.Store(c.host, resp.Headers)
	connHeader, _ := resp.Headers.Get("Connection")
	if c.requestKeepAlive && message.KeepAliveCapable(resp.Proto, connHeader) {
		c.state = StateIdle
		c.idleDeadline = deadline.ArmIdle(c.opts.IdleTimeout)
	} else {
		c.state = StateClosing
	}
	return resp, nil
}

// CheckDeadlines closes the connection if it stalled past its request
// deadline or sat idle past the keep-alive idle timeout.
func (c *Client) CheckDeadlines() {
	switch c.state {
	case StateSending, StateAwaitStatus, StateAwaitHeaders, StateAwaitBody:
		if deadline.Expired(c.requestDeadline) {
			c.state = StateClosing
		}
	case StateIdle:
		if deadline.Expired(c.idleDeadline) {
			c.state = StateClosing
		}
	}
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	c.state = StateClosing
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// Do sends req and polls the connection until a response arrives, a
// non-recoverable error occurs, or the request deadline expires,
// applying the digest auto-retry-once-on-401 policy of when
// credentials are configured. It is a synchronous convenience wrapper
// around SendRequest/ProcessWrite/ProcessRead for callers that do not
// want to run their own readiness loop.
func (c *Client) Do(req *Request, keepAlive bool) (*respparser.Response, error) {
	resp, err := c.roundTrip(req, keepAlive)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 401 || c.opts.Username == "" {
		return resp, nil
	}
	wwwAuth, ok := resp.Headers.Get("WWW-Authenticate")
	if !ok {
		return resp, nil
	}
	challenge, cerr := parseChallenge(wwwAuth)
	if cerr != nil {
		return resp, nil
	}
	c.digest = &digestSession{challenge: challenge}

	if c.state == StateClosing {
		if err := c.Connect([]string{net.JoinHostPort(c.host, strconv.Itoa(c.port))}, c.secure); err != nil {
			return resp, err
		}
	}

	authHeader, aerr := buildAuthorization(c.digest, c.opts.Username, c.opts.Password, req.Method, requestURI(req))
	if aerr != nil {
		return resp, nil
	}
	authedHeaders := message.NewHeaders()
	if req.Headers != nil {
		authedHeaders.Merge(req.Headers)
	}
	authedHeaders.Set("Authorization", authHeader)
	retryReq := &Request{Method: req.Method, Path: req.Path, Query: req.Query, Headers: authedHeaders, Body: req.Body}

	second, err := c.roundTrip(retryReq, keepAlive)
	if err != nil {
		return nil, err
	}
	if second.StatusCode == 401 {
		return second, errors.NewAuthFailedError("digest authentication failed after retry")
	}
	return second, nil
}

func (c *Client) roundTrip(req *Request, keepAlive bool) (*respparser.Response, error) {
	if c.state != StateIdle {
		return nil, errors.NewMalformedError("do", "client is not idle")
	}
	if err := c.SendRequest(req, keepAlive); err != nil {
		return nil, err
	}
	for {
		if err := c.ProcessWrite(); err != nil {
			return nil, err
		}
		resp, err := c.ProcessRead()
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
		c.CheckDeadlines()
		if c.state == StateClosing {
			return nil, errors.NewTimeoutError("do", c.opts.RequestTimeout)
		}
		time.Sleep(time.Millisecond)
	}
}

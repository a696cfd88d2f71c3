// Package reqparser implements the incremental HTTP request parser (C2):
// a feed-and-drain state machine that never blocks on I/O. Bytes arrive in
// whatever chunks the multiplexer hands it; RequestLine -> Headers -> Body
// -> Complete, enforcing the anti-smuggling defenses along the way.
package reqparser

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/lowmem/uhttp/pkg/constants"
	"github.com/lowmem/uhttp/pkg/errors"
	"github.com/lowmem/uhttp/pkg/message"
	"github.com/lowmem/uhttp/pkg/wire"
)

// Phase is one of the per-request parser states.
type Phase int

const (
	PhaseRequestLine Phase = iota
	PhaseHeaders
	PhaseBody
	PhaseComplete
)

// supportedMethods is the whitelist from ; anything else is 405.
var supportedMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"DELETE": true, "PATCH": true, "OPTIONS": true,
}

// Limits bounds the header section and body size.
type Limits struct {
	MaxHeadersLength int
	MaxContentLength int
}

// DefaultLimits returns the server defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxHeadersLength: constants.DefaultMaxHeadersLength,
		MaxContentLength: constants.DefaultMaxContentLength,
	}
}

// Parser holds one connection's inbound buffer and parse phase. It is not
// safe for concurrent use; a connection drives it from a single goroutine.
type Parser struct {
	limits  Limits
	lenient bool // accept a bare LF as a line terminator

	buf   []byte
	phase Phase

	req          *message.Request
	headerBytes  int // bytes consumed so far toward MaxHeadersLength
	contentLen   int
	hasCL        bool
	clValue      int
	hasTE        bool
	hasHost      bool
	isHTTP11     bool
}

// New returns a Parser ready to Feed.
func New(limits Limits) *Parser {
	return &Parser{limits: limits, phase: PhaseRequestLine}
}

// SetLenient toggles acceptance of a bare LF as a line terminator.
func (p *Parser) SetLenient(lenient bool) { p.lenient = lenient }

// Phase reports the parser's current position in the RequestLine ->
// Headers -> Body -> Complete sequence, for connections that want to
// surface a coarse read-state to their own callers.
func (p *Parser) Phase() Phase { return p.phase }

// Pending reports whether unconsumed bytes remain buffered — the signal
// the connection state machine uses to re-invoke Feed(nil) immediately
// after dispatching a response, enabling pipelining.
func (p *Parser) Pending() bool {
	return len(p.buf) > 0
}

// Feed appends data (which may be nil, to re-drive parsing of already
// buffered bytes) and advances the state machine as far as possible.
// It returns a completed *message.Request when one request has been fully
// framed, leaving any remaining bytes buffered for the next Feed call —
// deliberately surfacing at most one request per call so pipelined
// requests are drained in arrival order.
func (p *Parser) Feed(data []byte) (*message.Request, error) {
	if len(data) > 0 {
		p.buf = append(p.buf, data...)
	}

	for {
		switch p.phase {
		case PhaseRequestLine:
			line, rest, ok, err := p.nextLine(p.buf)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			if err := p.startRequest(line); err != nil {
				return nil, err
			}
			p.headerBytes = len(p.buf) - len(rest)
			p.buf = rest
			p.phase = PhaseHeaders

		case PhaseHeaders:
			for {
				line, rest, ok, err := p.nextLine(p.buf)
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, nil
				}
				consumed := len(p.buf) - len(rest)
				p.headerBytes += consumed
				if p.headerBytes > p.limits.MaxHeadersLength {
					return nil, errors.NewLimitExceededError("parse-headers", "headers exceed max_headers_length", 400)
				}
				p.buf = rest
				if line == "" {
					if err := p.finishHeaders(); err != nil {
						return nil, err
					}
					break
				}
				if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
					return nil, errors.NewMalformedError("parse-headers", "obsolete line folding is not supported")
				}
				if err := p.addHeaderLine(line); err != nil {
					return nil, err
				}
			}
			if p.contentLen == 0 {
				p.completeRequest()
				return p.takeCompleted(), nil
			}
			p.phase = PhaseBody

		case PhaseBody:
			if len(p.buf) < p.contentLen {
				return nil, nil
			}
			p.req.Body = append([]byte(nil), p.buf[:p.contentLen]...)
			p.buf = p.buf[p.contentLen:]
			p.completeRequest()
			return p.takeCompleted(), nil

		default:
			return nil, nil
		}
	}
}

func (p *Parser) takeCompleted() *message.Request {
	req := p.req
	p.req = nil
	p.phase = PhaseRequestLine
	return req
}

// nextLine extracts the next CRLF- (or, in lenient mode, LF-) terminated
// line from buf, returning the line content (without terminator), the
// remaining bytes, and whether a full line was found.
func (p *Parser) nextLine(buf []byte) (line string, rest []byte, ok bool, err error) {
	if p.lenient {
		idx := bytes.IndexByte(buf, '\n')
		if idx == -1 {
			return "", buf, false, nil
		}
		end := idx
		if end > 0 && buf[end-1] == '\r' {
			end--
		}
		return string(buf[:end]), buf[idx+1:], true, nil
	}
	idx := bytes.Index(buf, []byte("\r\n"))
	if idx == -1 {
		return "", buf, false, nil
	}
	return string(buf[:idx]), buf[idx+2:], true, nil
}

// startRequest parses "METHOD SP URL SP PROTO".
func (p *Parser) startRequest(line string) error {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) != 3 {
		return errors.NewMalformedError("parse-request-line", "malformed request line")
	}
	method, rawURL, proto := fields[0], fields[1], fields[2]

	if !supportedMethods[method] {
		return errors.NewUnsupportedMethodError(method)
	}
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return errors.NewUnsupportedProtocolError(proto)
	}

	path, rawQuery, err := wire.ParseRequestURL(rawURL)
	if err != nil {
		return err
	}

	req := message.NewRequest()
	req.Method = method
	req.RawURL = rawURL
	req.Proto = proto
	req.Path = path
	wire.ParseQuery(rawQuery, req.Query)

	p.req = req
	p.isHTTP11 = proto == "HTTP/1.1"
	p.hasCL, p.hasTE, p.hasHost = false, false, false
	p.clValue, p.contentLen = 0, 0
	return nil
}

// addHeaderLine splits one header line and applies the smuggling and
// Host-tracking rules.
func (p *Parser) addHeaderLine(line string) error {
	name, value, err := wire.SplitHeaderLine(line)
	if err != nil {
		return err
	}
	p.req.Headers.Add(name, value)

	switch name {
	case "content-length":
		n, convErr := strconv.Atoi(value)
		if convErr != nil || n < 0 || !isAllDigits(value) {
			return errors.NewMalformedError("parse-headers", "invalid Content-Length")
		}
		if p.hasCL && n != p.clValue {
			return errors.NewSmugglingError("parse-headers", "conflicting Content-Length headers", 400)
		}
		p.hasCL = true
		p.clValue = n

	case "transfer-encoding":
		p.hasTE = true
		if !strings.EqualFold(strings.TrimSpace(value), "identity") {
			return errors.NewSmugglingError("parse-headers", "unsupported Transfer-Encoding", 501)
		}

	case "host":
		p.hasHost = true

	case "cookie":
		for _, pair := range wire.ParseCookieHeader(value) {
			p.req.Cookies.Set(pair.Name, pair.Value)
		}
	}
	return nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// finishHeaders resolves Content-Length, the Host requirement, and the
// max_content_length cap once the blank line ending the header block has
// been consumed.
func (p *Parser) finishHeaders() error {
	if p.isHTTP11 && !p.hasHost {
		return errors.NewMissingHostError()
	}
	if p.hasCL {
		if p.clValue > p.limits.MaxContentLength {
			return errors.NewLimitExceededError("parse-body", "content length exceeds max_content_length", 413)
		}
		p.contentLen = p.clValue
	} else {
		p.contentLen = 0
	}
	return nil
}

func (p *Parser) completeRequest() {
	p.req.IsLoaded = true
}

// Package respparser implements the incremental HTTP response parser (C3):
// the client-side mirror of pkg/reqparser. It frames a status line,
// headers, and a Content-Length-bounded body; chunked transfer-encoding is
// out of scope (Non-goals).
package respparser

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/lowmem/uhttp/pkg/buffer"
	"github.com/lowmem/uhttp/pkg/constants"
	"github.com/lowmem/uhttp/pkg/errors"
	"github.com/lowmem/uhttp/pkg/message"
	"github.com/lowmem/uhttp/pkg/wire"
)

// Phase mirrors reqparser.Phase for the response side.
type Phase int

const (
	PhaseStatusLine Phase = iota
	PhaseHeaders
	PhaseBody
	PhaseComplete
)

// Response is the decoded shape of one HTTP response (client
// side). Body is exactly ContentLength bytes, or whatever arrived before
// close for a body-ends-at-close response.
type Response struct {
	Proto      string
	StatusCode int
	StatusText string
	Headers    *message.Headers
	Body       []byte

	// Spooled holds the body instead of Body when it grew past the
	// in-memory threshold and spilled to a temp file. Callers read it
	// through BodyReader rather than touching it directly.
	Spooled *buffer.BodySpool
}

// BodyReader returns a fresh reader over the response body regardless of
// whether it stayed in memory or spilled to disk. The caller must Close
// it; closing the reader does not remove a spilled body's temp file, which
// Spooled.Close releases.
func (r *Response) BodyReader() (io.ReadCloser, error) {
	if r.Spooled != nil {
		return r.Spooled.Reader()
	}
	return io.NopCloser(bytes.NewReader(r.Body)), nil
}

// Limits bounds the header section and body size (client
// defaults: max_response_headers_length, max_response_length).
type Limits struct {
	MaxHeadersLength int
	MaxBodyLength    int

	// MemorySpillThreshold is the number of body bytes kept in memory
	// before the parser spills the rest to a temp file via pkg/buffer.
	// Zero means constants.DefaultBodyMemLimit.
	MemorySpillThreshold int64
}

// Parser decodes one response at a time from a client connection's
// inbound buffer.
type Parser struct {
	limits  Limits
	lenient bool

	buf   []byte
	phase Phase

	resp        *Response
	headerBytes int
	contentLen  int // -1 means "read until close"
	hasCL       bool
	clValue     int
	keepAlive   bool // requested by the caller for the pending request

	bodyBuf     *buffer.BodySpool
	bodyWritten int
}

// New returns a Parser ready to Feed.
func New(limits Limits) *Parser {
	return &Parser{limits: limits, phase: PhaseStatusLine}
}

// SetLenient toggles acceptance of a bare LF as a line terminator.
func (p *Parser) SetLenient(lenient bool) { p.lenient = lenient }

// ExpectKeepAlive tells the parser whether this request was sent expecting
// the connection to be reusable; it is consulted only when the response
// lacks Content-Length.
func (p *Parser) ExpectKeepAlive(expect bool) { p.keepAlive = expect }

// Phase reports the parser's current position in the StatusLine ->
// Headers -> Body -> Complete sequence.
func (p *Parser) Phase() Phase { return p.phase }

// Pending reports whether unconsumed bytes remain buffered.
func (p *Parser) Pending() bool { return len(p.buf) > 0 }

// Feed appends data and advances the parser, returning a completed
// Response once the status line, headers, and body have all been framed.
func (p *Parser) Feed(data []byte) (*Response, error) {
	if len(data) > 0 {
		p.buf = append(p.buf, data...)
	}
	return p.advance(false)
}

// FeedEOF signals the underlying connection has closed. For a response
// that has no Content-Length and was not expected to support keep-alive,
// this finalizes the body with whatever bytes arrived ("body
// ends at close"). Any other incomplete state is a connection-lost error.
func (p *Parser) FeedEOF() (*Response, error) {
	return p.advance(true)
}

func (p *Parser) advance(eof bool) (*Response, error) {
	for {
		switch p.phase {
		case PhaseStatusLine:
			line, rest, ok, err := p.nextLine(p.buf)
			if err != nil {
				return nil, err
			}
			if !ok {
				if eof {
					return nil, errors.NewConnectionLostError("", 0, nil)
				}
				return nil, nil
			}
			if err := p.startResponse(line); err != nil {
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
					if eof {
						return nil, errors.NewConnectionLostError("", 0, nil)
					}
					return nil, nil
				}
				consumed := len(p.buf) - len(rest)
				p.headerBytes += consumed
				if p.headerBytes > p.limits.MaxHeadersLength {
					return nil, errors.NewLimitExceededError("parse-response-headers", "response headers exceed limit", 0)
				}
				p.buf = rest
				if line == "" {
					if err := p.finishHeaders(); err != nil {
						return nil, err
					}
					break
				}
				if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
					return nil, errors.NewMalformedError("parse-response-headers", "obsolete line folding is not supported")
				}
				name, value, err := wire.SplitHeaderLine(line)
				if err != nil {
					return nil, err
				}
				p.resp.Headers.Add(name, value)
				if name == "content-length" {
					n, convErr := strconv.Atoi(value)
					if convErr != nil || n < 0 {
						return nil, errors.NewMalformedError("parse-response-headers", "invalid Content-Length")
					}
					p.hasCL, p.clValue = true, n
				}
			}
			if p.contentLen == 0 {
				return p.takeCompleted(), nil
			}
			p.phase = PhaseBody

		case PhaseBody:
			if p.contentLen == -1 {
				if len(p.buf) > 0 {
					if _, err := p.bodyBuffer().Write(p.buf); err != nil {
						return nil, err
					}
					p.buf = nil
				}
				if !eof {
					return nil, nil
				}
				return p.finishBody(), nil
			}
			want := p.contentLen - p.bodyWritten
			if want > 0 && len(p.buf) > 0 {
				n := len(p.buf)
				if n > want {
					n = want
				}
				if _, err := p.bodyBuffer().Write(p.buf[:n]); err != nil {
					return nil, err
				}
				p.bodyWritten += n
				p.buf = p.buf[n:]
			}
			if p.bodyWritten < p.contentLen {
				if eof {
					return nil, errors.NewConnectionLostError("", 0, nil)
				}
				return nil, nil
			}
			return p.finishBody(), nil

		default:
			return nil, nil
		}
	}
}

func (p *Parser) bodyBuffer() *buffer.BodySpool {
	if p.bodyBuf == nil {
		limit := p.limits.MemorySpillThreshold
		if limit <= 0 {
			limit = constants.DefaultBodyMemLimit
		}
		p.bodyBuf = buffer.New(limit)
	}
	return p.bodyBuf
}

// finishBody attaches the accumulated body to the response, keeping it
// in memory when small or handing over the spooled buffer when it spilled
// to disk, then completes the response.
func (p *Parser) finishBody() *Response {
	if p.bodyBuf != nil {
		if body, spilled := p.bodyBuf.Finalize(); spilled {
			p.resp.Spooled = p.bodyBuf
		} else {
			p.resp.Body = body
			p.bodyBuf.Close()
		}
		p.bodyBuf = nil
	}
	p.bodyWritten = 0
	return p.takeCompleted()
}

func (p *Parser) takeCompleted() *Response {
	resp := p.resp
	p.resp = nil
	p.phase = PhaseStatusLine
	return resp
}

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

// startResponse parses "HTTP/x.y CODE MESSAGE".
func (p *Parser) startResponse(line string) error {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return errors.NewMalformedError("parse-status-line", "malformed status line")
	}
	proto := fields[0]
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return errors.NewUnsupportedProtocolError(proto)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || !message.ValidStatusCode(code) {
		return errors.NewMalformedError("parse-status-line", "invalid status code")
	}
	text := ""
	if len(fields) == 3 {
		text = fields[2]
	}

	p.resp = &Response{
		Proto:      proto,
		StatusCode: code,
		StatusText: text,
		Headers:    message.NewHeaders(),
	}
	p.hasCL, p.clValue, p.contentLen = false, 0, 0
	p.bodyBuf, p.bodyWritten = nil, 0
	return nil
}

func (p *Parser) finishHeaders() error {
	noBodyStatus := p.resp.StatusCode == 204 || p.resp.StatusCode == 304 || p.resp.StatusCode/100 == 1

	switch {
	case noBodyStatus:
		p.contentLen = 0
	case p.hasCL:
		if p.clValue > p.limits.MaxBodyLength {
			return errors.NewLimitExceededError("parse-response-body", "response body exceeds max_response_length", 0)
		}
		p.contentLen = p.clValue
	default:
		connHeader, _ := p.resp.Headers.Get("Connection")
		if p.keepAlive && message.KeepAliveCapable(p.resp.Proto, connHeader) {
			return errors.NewMalformedError("parse-response-headers", "keep-alive response without Content-Length")
		}
		p.contentLen = -1
	}
	return nil
}

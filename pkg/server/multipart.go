package server

import (
	"strconv"
	"strings"

	"github.com/lowmem/uhttp/pkg/constants"
	"github.com/lowmem/uhttp/pkg/errors"
	"github.com/lowmem/uhttp/pkg/message"
)

// RespondMultipartStart begins a multipart/x-mixed-replace response
// (MJPEG-style streaming). A multipart session never returns
// to keep-alive; the connection closes once RespondMultipartEnd's bytes
// have drained.
func (c *Conn) RespondMultipartStart(boundary string, status int, headers *message.Headers) error {
	if c.state != StateDispatch || c.current == nil {
		return errors.NewMalformedError("respond-multipart-start", "no request awaiting a response on this connection")
	}
	h := message.NewHeaders()
	if headers != nil {
		h.Merge(headers)
	}
	h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	h.Del("Content-Length")
	h.Set("Connection", "close")

	var sb strings.Builder
	sb.WriteString(c.current.Proto)
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(status))
	sb.WriteByte(' ')
	sb.WriteString(message.StatusMessage(status))
	sb.WriteString("\r\n")
	h.WriteTo(&sb)
	sb.WriteString("\r\n")
	c.outbound = append(c.outbound, []byte(sb.String())...)

	c.state = StateWriting
	c.closeAfterWrite = true
	c.multipartActive = true
	c.multipartBoundary = boundary
	return nil
}

// RespondMultipartFrame appends one part. payload is bounded by the
// connection's outbound soft cap: a caller
// producing frames faster than the socket drains them gets an error
// instead of unbounded memory growth.
func (c *Conn) RespondMultipartFrame(payload []byte, headers *message.Headers) error {
	if !c.multipartActive {
		return errors.NewMalformedError("respond-multipart-frame", "no multipart response in progress")
	}
	h := message.NewHeaders()
	if headers != nil {
		h.Merge(headers)
	}
	h.Set("Content-Length", strconv.Itoa(len(payload)))

	var sb strings.Builder
	sb.WriteString("--")
	sb.WriteString(c.multipartBoundary)
	sb.WriteString("\r\n")
	h.WriteTo(&sb)
	sb.WriteString("\r\n")

	if len(c.outbound)+sb.Len()+len(payload)+2 > constants.OutboundSoftCap {
		return errors.NewLimitExceededError("respond-multipart-frame", "outbound buffer soft cap exceeded", 0)
	}
	c.outbound = append(c.outbound, []byte(sb.String())...)
	c.outbound = append(c.outbound, payload...)
	c.outbound = append(c.outbound, '\r', '\n')
	return nil
}

// RespondMultipartEnd closes the boundary; the connection closes once
// the trailing bytes drain.
func (c *Conn) RespondMultipartEnd() error {
	if !c.multipartActive {
		return errors.NewMalformedError("respond-multipart-end", "no multipart response in progress")
	}
	c.outbound = append(c.outbound, []byte("--"+c.multipartBoundary+"--\r\n")...)
	c.multipartActive = false
	return nil
}

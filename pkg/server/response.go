package server

import (
	"os"
	"strconv"
	"strings"

	"github.com/lowmem/uhttp/pkg/errors"
	"github.com/lowmem/uhttp/pkg/message"
	"github.com/lowmem/uhttp/pkg/wire"
)

// Respond sends a plain response for the request currently awaiting one
// on this connection. The server always computes its own Content-Length
// from the encoded body; a caller cannot override or suppress it.
func (c *Conn) Respond(data wire.BodyData, status int, headers *message.Headers, cookies *message.Cookies) error {
	if c.state != StateDispatch || c.current == nil {
		return errors.NewMalformedError("respond", "no request awaiting a response on this connection")
	}
	if !message.ValidStatusCode(status) {
		return errors.NewMalformedError("respond", "invalid status code")
	}
	contentType, body, err := wire.EncodeBody(data, c.opts.codec())
	if err != nil {
		return err
	}
	c.writeResponseHead(status, contentType, len(body), headers, cookies)
	c.outbound = append(c.outbound, body...)
	c.state = StateWriting
	return nil
}

// RespondRedirect sends a Location-bearing redirect with an empty body
//.
func (c *Conn) RespondRedirect(location string, status int) error {
	if c.state != StateDispatch || c.current == nil {
		return errors.NewMalformedError("respond-redirect", "no request awaiting a response on this connection")
	}
	if !message.ValidRedirectStatus(status) {
		return errors.NewMalformedError("respond-redirect", "not a redirect status")
	}
	h := message.NewHeaders()
	h.Set("Location", location)
	c.writeResponseHead(status, "text/plain", 0, h, nil)
	c.state = StateWriting
	return nil
}

// RespondFile streams path's contents as the response body in bounded
// chunks across successive WRITING turns rather than loading it whole
// into memory (file-stream mode).
func (c *Conn) RespondFile(path string, status int, headers *message.Headers) error {
	if c.state != StateDispatch || c.current == nil {
		return errors.NewMalformedError("respond-file", "no request awaiting a response on this connection")
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.NewIOError("opening response file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.NewIOError("statting response file", err)
	}

	h := message.NewHeaders()
	if headers != nil {
		h.Merge(headers)
	}
	contentType := ""
	if !h.Has("Content-Type") {
		contentType = message.ContentTypeForExtension(path)
	}
	c.writeResponseHead(status, contentType, int(info.Size()), h, nil)
	c.fileSrc = f
	c.state = StateWriting
	return nil
}

func (c *Conn) writeResponseHead(status int, contentType string, contentLength int, headers *message.Headers, cookies *message.Cookies) {
	h := message.NewHeaders()
	if headers != nil {
		h.Merge(headers)
	}
	if contentType != "" && !h.Has("Content-Type") {
		h.Set("Content-Type", contentType)
	}
	h.Set("Content-Length", strconv.Itoa(contentLength))
	if !h.Has("Connection") {
		if c.currentKeepAlive {
			h.Set("Connection", "keep-alive")
		} else {
			h.Set("Connection", "close")
		}
	}
	if cookies != nil {
		for _, name := range cookies.Names() {
			v, _ := cookies.Get(name)
			h.Add("Set-Cookie", name+"="+v)
		}
	}
	if !c.currentKeepAlive {
		c.closeAfterWrite = true
	}

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
}

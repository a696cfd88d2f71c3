// Package server implements the non-blocking HTTP server engine: the
// per-connection state machine (C4), the listen-socket multiplexer (C5),
// and the plain/redirect/file-stream/multipart response encoders (C6).
// Nothing in this package spawns a goroutine or blocks on I/O; a caller
// drives it from its own readiness loop (select, epoll, or anything else)
// by calling Mux.ReadSockets/WriteSockets and Mux.ProcessEvents.
package server

import (
	"crypto/tls"
	"time"

	"github.com/lowmem/uhttp/pkg/constants"
	"github.com/lowmem/uhttp/pkg/wire"
)

// Options configures a Mux (server defaults).
type Options struct {
	// Address is the bind address ("" or "0.0.0.0" for all interfaces).
	Address string
	// Port is the bind port.
	Port int
	// TLSConfig, if non-nil, wraps every accepted connection with
	// tls.Server before it is handed to the engine. TLS policy itself
	// (certificates, cipher suites) is entirely the caller's concern —
	// the engine only checks netio.Conn.IsSecure().
	TLSConfig *tls.Config

	MaxWaitingClients    int
	KeepAliveTimeout     time.Duration
	KeepAliveMaxRequests int
	MaxHeadersLength     int
	MaxContentLength     int

	// Lenient accepts a bare LF as a line terminator instead of strict
	// CRLF. Off by default.
	Lenient bool

	// Codec overrides the JSON encoder/decoder used by wire.EncodeBody
	// for BodyData values passed to Conn.Respond.
	Codec wire.Codec
}

// DefaultOptions returns the server defaults.
func DefaultOptions() Options {
	return Options{
		MaxWaitingClients:    constants.DefaultMaxWaitingClients,
		KeepAliveTimeout:     constants.DefaultKeepAliveTimeout,
		KeepAliveMaxRequests: constants.DefaultKeepAliveMaxRequests,
		MaxHeadersLength:     constants.DefaultMaxHeadersLength,
		MaxContentLength:     constants.DefaultMaxContentLength,
	}
}

func (o Options) codec() wire.Codec {
	if o.Codec != nil {
		return o.Codec
	}
	return wire.DefaultCodec
}

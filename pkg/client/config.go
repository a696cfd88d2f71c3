// Package client implements the non-blocking HTTP client engine: the
// per-connection lifecycle state machine (C7), RFC 2617 digest
// authentication (C8), a per-host cookie jar, and optional SOCKS5
// upstream proxying. Like pkg/server, nothing here spawns a goroutine;
// Connect/Do poll the connection directly with a bounded timeout, while
// the granular WantsRead/WantsWrite/ProcessRead/ProcessWrite methods let
// a caller drive it from its own readiness multiplexer instead.
package client

import (
	"crypto/tls"
	"time"

	"github.com/lowmem/uhttp/pkg/constants"
	"github.com/lowmem/uhttp/pkg/wire"
)

// Options configures a Client (client defaults).
type Options struct {
	ConnectTimeout          time.Duration
	RequestTimeout          time.Duration
	IdleTimeout             time.Duration
	MaxResponseLength       int
	MaxResponseHeaderLength int

	// ResponseMemoryLimit caps how much of a response body the client
	// keeps in memory before spilling the remainder to a temp file
	// (pkg/buffer). Zero means constants.DefaultBodyMemLimit.
	ResponseMemoryLimit int64

	// Lenient accepts a bare LF as a line terminator instead of strict CRLF.
	Lenient bool

	// TLSConfig is used when Connect is called with secure=true. TLS
	// policy itself is entirely the caller's concern.
	TLSConfig *tls.Config

	// Codec overrides the JSON encoder/decoder used for wire.BodyData
	// request bodies and JSON response decoding.
	Codec wire.Codec

	// ProxyAddr, if set, routes Connect through a SOCKS5 proxy at this
	// "host:port" instead of dialing the target directly.
	ProxyAddr string

	// Username/Password enable automatic digest-auth retry
	// when a response challenges with 401 WWW-Authenticate: Digest.
	Username string
	Password string
}

// DefaultOptions returns the client defaults.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:          constants.DefaultConnectTimeout,
		RequestTimeout:          constants.DefaultRequestTimeout,
		IdleTimeout:             constants.DefaultKeepAliveTimeout,
		MaxResponseLength:       constants.DefaultMaxResponseLength,
		MaxResponseHeaderLength: constants.DefaultMaxResponseHeaderLength,
	}
}

func (o Options) codec() wire.Codec {
	if o.Codec != nil {
		return o.Codec
	}
	return wire.DefaultCodec
}

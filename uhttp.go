// Package uhttp is a compact, single-threaded, non-blocking HTTP/1.0 and
// HTTP/1.1 server and client engine for memory-constrained environments.
// Nothing in the engine spawns a goroutine or blocks on I/O; a caller
// drives it from its own readiness multiplexer. This file is a thin
// facade over pkg/server and pkg/client for callers who want the common
// constructors at the root import path.
package uhttp

import (
	"github.com/lowmem/uhttp/pkg/client"
	"github.com/lowmem/uhttp/pkg/message"
	"github.com/lowmem/uhttp/pkg/server"
	"github.com/lowmem/uhttp/pkg/wire"
)

// NewServer binds a listening Mux with the given options.
func NewServer(opts server.Options) (*server.Mux, error) {
	return server.New(opts)
}

// DefaultServerOptions returns the default server configuration.
func DefaultServerOptions() server.Options {
	return server.DefaultOptions()
}

// NewClient returns a disconnected Client with the given options.
func NewClient(opts client.Options) *client.Client {
	return client.New(opts)
}

// DefaultClientOptions returns the default client configuration.
func DefaultClientOptions() client.Options {
	return client.DefaultOptions()
}

// Re-exported body constructors, so a caller only needs this package for
// the common request/response shapes.
var (
	JSON  = wire.JSON
	Text  = wire.Text
	Bytes = wire.Bytes
	Empty = wire.Empty
)

// Headers and Cookies are re-exported for the same reason.
type (
	Headers = message.Headers
	Cookies = message.Cookies
)

// NewHeaders returns an empty Headers mapping.
func NewHeaders() *Headers { return message.NewHeaders() }

// NewCookies returns an empty Cookies mapping.
func NewCookies() *Cookies { return message.NewCookies() }

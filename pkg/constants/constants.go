// Package constants defines default limits and timeouts shared by the
// server and client halves of uhttp.
package constants

import "time"

// Server admission and keep-alive defaults.
const (
	DefaultMaxWaitingClients    = 5
	DefaultKeepAliveTimeout     = 30 * time.Second
	DefaultKeepAliveMaxRequests = 100
	DefaultMaxHeadersLength     = 4 * 1024
	DefaultMaxContentLength     = 512 * 1024
)

// Client defaults.
const (
	DefaultConnectTimeout          = 10 * time.Second
	DefaultRequestTimeout          = 30 * time.Second
	DefaultMaxResponseLength       = 1024 * 1024
	DefaultMaxResponseHeaderLength = 4 * 1024
)

// Buffer defaults for the spooling buffer.
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024 // 4MB before spilling to disk
)

// Multiplexer and I/O tuning.
const (
	// ReadChunkCap bounds a single non-blocking read so one connection
	// cannot monopolize a process_events turn ("bounded chunk cap").
	ReadChunkCap = 16 * 1024

	// OutboundSoftCap is the implementation-defined soft cap on a
	// connection's outbound buffer (Backpressure) past which
	// additional multipart frames are rejected rather than queued.
	OutboundSoftCap = 1 * 1024 * 1024

	// FileStreamChunk bounds a single file-stream write during a WRITING turn.
	FileStreamChunk = 32 * 1024
)

// Package buffer implements the disk-spooling body store used to hold an
// HTTP message body that is still being accumulated: small bodies stay in
// memory, large ones spill to a temp file past a caller-chosen threshold.
package buffer

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/lowmem/uhttp/pkg/errors"
)

// DefaultMemoryLimit is the spill threshold used when New is given one
// that is zero or negative.
const DefaultMemoryLimit = 4 * 1024 * 1024 // 4MB

// BodySpool accumulates bytes written to it, keeping them in a bytes.Buffer
// while the total stays under threshold and moving to a temp file once it
// doesn't. A single spool backs exactly one message body: respparser
// writes response bytes to it as they arrive and then calls Finalize to
// decide whether the caller gets the bytes directly or keeps the spool
// itself alive as the body's backing store (respparser.Response.Spooled).
type BodySpool struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	file      *os.File
	path      string
	size      int64
	threshold int64
	closed    bool
}

// New returns an empty BodySpool that spills to disk once more than
// threshold bytes have been written. threshold <= 0 means DefaultMemoryLimit.
func New(threshold int64) *BodySpool {
	if threshold <= 0 {
		threshold = DefaultMemoryLimit
	}
	return &BodySpool{threshold: threshold}
}

// Write appends p, spilling to a temp file the moment the in-memory total
// would exceed threshold.
func (b *BodySpool) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.NewIOError("body spool is closed", nil)
	}

	b.size += int64(len(p))

	if b.file == nil && int64(b.buf.Len()+len(p)) <= b.threshold {
		return b.buf.Write(p)
	}

	if b.file == nil {
		tmp, err := os.CreateTemp("", "uhttp-body-*.tmp")
		if err != nil {
			return 0, errors.NewIOError("creating spool temp file", err)
		}
		b.file = tmp
		b.path = tmp.Name()

		if b.buf.Len() > 0 {
			if _, err := tmp.Write(b.buf.Bytes()); err != nil {
				b.closeLocked()
				return 0, errors.NewIOError("writing buffered bytes to spool file", err)
			}
		}
		b.buf.Reset()
	}

	n, err := b.file.Write(p)
	if err != nil {
		return n, errors.NewIOError("writing to spool file", err)
	}
	return n, nil
}

// Finalize reports whether the body stayed in memory. When it did, body
// holds a copy of the accumulated bytes and the spool's own temp-file
// resources (there are none) need no further handling. When the body
// spilled, body is nil and the caller must keep the BodySpool itself
// around (as the backing store for a streamed read) and Close it once done.
func (b *BodySpool) Finalize() (body []byte, spilled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file != nil {
		return nil, true
	}
	return append([]byte(nil), b.buf.Bytes()...), false
}

// IsSpilled reports whether the spool has moved to a temp file.
func (b *BodySpool) IsSpilled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file != nil
}

// Size returns the total number of bytes written so far.
func (b *BodySpool) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Path returns the temp file path backing a spilled body, or "".
func (b *BodySpool) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.path
}

// Reader returns a fresh reader over the stored body, whether it stayed
// in memory or spilled to disk. The caller must Close it.
func (b *BodySpool) Reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.NewIOError("body spool is closed", nil)
	}

	if b.file != nil {
		if err := b.file.Sync(); err != nil {
			return nil, errors.NewIOError("syncing spool file", err)
		}
		f, err := os.Open(b.path)
		if err != nil {
			return nil, errors.NewIOError("opening spool file for reading", err)
		}
		return f, nil
	}
	return io.NopCloser(bytes.NewReader(b.buf.Bytes())), nil
}

// Close releases the backing temp file, if any, and removes it. Safe to
// call more than once.
func (b *BodySpool) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *BodySpool) closeLocked() error {
	if b.closed {
		return nil
	}
	b.closed = true

	if b.file != nil {
		err := b.file.Close()
		if removeErr := os.Remove(b.path); removeErr != nil && err == nil {
			err = errors.NewIOError("removing spool temp file", removeErr)
		}
		b.file = nil
		b.path = ""
		if err != nil {
			return errors.NewIOError("closing spool file", err)
		}
	}
	return nil
}

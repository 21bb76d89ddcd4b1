package media

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Device is a source of encoded audio chunks. Implementations own the
// underlying capture resource; closing the stream returned by Start
// must release it.
type Device interface {
	// Supports reports whether the device can capture in the given
	// media type.
	Supports(mimeType string) bool

	// DefaultEncoding is the media type used when none of the
	// preferred encodings are supported.
	DefaultEncoding() string

	// Start begins capture with the negotiated encoding and returns
	// the chunk stream. The stream ends when capture stops.
	Start(ctx context.Context, mimeType string) (io.ReadCloser, error)
}

// ReaderDevice adapts a live chunk stream (typically a streamed HTTP
// request body carrying browser capture output) into a Device. It is
// single-use: a second Start is rejected as a re-entrant capture.
type ReaderDevice struct {
	mimeType string

	mu      sync.Mutex
	stream  io.ReadCloser
	started bool
}

// NewReaderDevice wraps the given stream, which carries audio encoded
// as mimeType.
func NewReaderDevice(stream io.ReadCloser, mimeType string) *ReaderDevice {
	return &ReaderDevice{stream: stream, mimeType: mimeType}
}

func (d *ReaderDevice) Supports(mimeType string) bool {
	return mimeType == d.mimeType
}

func (d *ReaderDevice) DefaultEncoding() string {
	return d.mimeType
}

func (d *ReaderDevice) Start(ctx context.Context, mimeType string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil, ErrAlreadyRecording
	}
	if mimeType != d.mimeType {
		return nil, fmt.Errorf("device cannot capture %q", mimeType)
	}
	d.started = true
	return d.stream, nil
}

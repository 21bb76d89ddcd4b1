// Package media implements the audio capture unit: it negotiates an
// encoding with a capture device, buffers the chunk stream, and
// finalizes it into a blob on stop.
package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

var (
	// ErrPermissionDenied is returned when the capture device refuses
	// access. Devices wrap their platform error with this sentinel.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrAlreadyRecording guards re-entrant starts: recording is
	// single-shot and a second start while busy is rejected.
	ErrAlreadyRecording = errors.New("recording already in progress")

	// ErrNotRecording is returned by Stop without a prior Start.
	ErrNotRecording = errors.New("no recording in progress")
)

// preferredEncodings lists capture encodings in negotiation order.
// Opus containers come first; an unsupported list falls back to the
// device's default.
var preferredEncodings = []string{
	"audio/webm;codecs=opus",
	"audio/ogg;codecs=opus",
	"audio/webm",
}

// Blob is a finalized recording: encoded audio bytes tagged with the
// negotiated media type.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Recorder buffers a single capture session from a device. It is
// single-shot: Start acquires the device, Stop finalizes the blob and
// releases it. Close releases the device on teardown regardless of
// state, so a disposed session never leaks a device handle.
type Recorder struct {
	dev Device

	mu        sync.Mutex
	recording bool
	mimeType  string
	stream    io.ReadCloser
	done      chan struct{}

	// written by the copier goroutine, read only after <-done
	buf     bytes.Buffer
	copyErr error
}

// NewRecorder creates a recorder for the given device.
func NewRecorder(dev Device) *Recorder {
	return &Recorder{dev: dev}
}

// Recording reports whether a capture session is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// negotiate selects the first preferred encoding the device supports,
// falling back to the device default.
func (r *Recorder) negotiate() string {
	for _, enc := range preferredEncodings {
		if r.dev.Supports(enc) {
			return enc
		}
	}
	return r.dev.DefaultEncoding()
}

// Start negotiates an encoding and begins buffering chunks from the
// device. Starting while already recording returns ErrAlreadyRecording.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}

	mimeType := r.negotiate()
	stream, err := r.dev.Start(ctx, mimeType)
	if err != nil {
		return err
	}

	r.recording = true
	r.mimeType = mimeType
	r.stream = stream
	r.buf.Reset()
	r.copyErr = nil
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		_, err := io.Copy(&r.buf, stream)
		if err != nil && !errors.Is(err, io.ErrClosedPipe) {
			r.copyErr = err
		}
	}()

	return nil
}

// Stop finalizes the buffered chunks into a blob and releases the
// device. The blob is handed to the caller for upload or discard.
func (r *Recorder) Stop() (*Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return nil, ErrNotRecording
	}

	r.stream.Close()
	<-r.done
	r.recording = false
	r.stream = nil

	if r.copyErr != nil {
		return nil, r.copyErr
	}

	data := make([]byte, r.buf.Len())
	copy(data, r.buf.Bytes())
	r.buf.Reset()

	return &Blob{Data: data, MIMEType: r.mimeType}, nil
}

// Close releases the device if a capture session is still open. The
// buffered audio is discarded.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return nil
	}

	err := r.stream.Close()
	<-r.done
	r.recording = false
	r.stream = nil
	r.buf.Reset()
	return err
}

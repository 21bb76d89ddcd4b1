package upload

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fitwellhq/supportchat/internal/media"
	"github.com/fitwellhq/supportchat/internal/metrics"
)

// BlobStore uploads raw bytes and returns a backend reference. It is
// satisfied by the backend REST client.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, filename, mimeType string) (string, error)
}

// Uploader pushes recorded blobs to the backend and resolves the
// returned reference into a playable URL. No retry or chunking: a
// failed upload is returned to the caller, who keeps the blob.
type Uploader struct {
	store    BlobStore
	resolver *Resolver
}

// NewUploader creates an uploader backed by the given blob store.
func NewUploader(store BlobStore, resolver *Resolver) *Uploader {
	return &Uploader{store: store, resolver: resolver}
}

// extensions maps capture media types to file extensions.
var extensions = map[string]string{
	"audio/webm;codecs=opus": "webm",
	"audio/ogg;codecs=opus":  "ogg",
	"audio/webm":             "webm",
	"audio/ogg":              "ogg",
	"audio/mpeg":             "mp3",
	"audio/mp4":              "m4a",
}

func extensionFor(mimeType string) string {
	if ext, ok := extensions[mimeType]; ok {
		return ext
	}
	// strip parameters and guess from the subtype
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	if idx := strings.Index(mimeType, "/"); idx >= 0 {
		return mimeType[idx+1:]
	}
	return "bin"
}

// UploadBlob uploads a recorded blob under a generated voice filename
// and returns the resolved absolute URL.
func (u *Uploader) UploadBlob(ctx context.Context, blob *media.Blob) (string, error) {
	if blob == nil || len(blob.Data) == 0 {
		return "", fmt.Errorf("empty recording")
	}

	filename := fmt.Sprintf("voice_%s.%s", uuid.New().String(), extensionFor(blob.MIMEType))

	ref, err := u.store.Upload(ctx, blob.Data, filename, blob.MIMEType)
	if err != nil {
		metrics.UploadFailures.Inc()
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	metrics.UploadsTotal.Inc()

	return u.resolver.Resolve(ref), nil
}

// Resolve exposes the resolver for references that are already stored
// (catalog audio replies).
func (u *Uploader) Resolve(input any) string {
	return u.resolver.Resolve(input)
}

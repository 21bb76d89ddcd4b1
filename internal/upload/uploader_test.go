package upload

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fitwellhq/supportchat/internal/media"
)

type fakeBlobStore struct {
	filename string
	mimeType string
	ref      string
	err      error
}

func (f *fakeBlobStore) Upload(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	f.filename = filename
	f.mimeType = mimeType
	if f.err != nil {
		return "", f.err
	}
	return f.ref, nil
}

func TestUploadBlobResolvesReference(t *testing.T) {
	store := &fakeBlobStore{ref: "uploads/voice_abc.webm"}
	u := NewUploader(store, NewResolver(apiBase))

	blob := &media.Blob{Data: []byte("opus"), MIMEType: "audio/webm;codecs=opus"}
	got, err := u.UploadBlob(context.Background(), blob)
	if err != nil {
		t.Fatal(err)
	}

	want := apiBase + "/uploads/voice_abc.webm"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if !strings.HasPrefix(store.filename, "voice_") || !strings.HasSuffix(store.filename, ".webm") {
		t.Fatalf("unexpected upload filename %q", store.filename)
	}
	if store.mimeType != "audio/webm;codecs=opus" {
		t.Fatalf("unexpected mime type %q", store.mimeType)
	}
}

func TestUploadBlobFailure(t *testing.T) {
	store := &fakeBlobStore{err: errors.New("boom")}
	u := NewUploader(store, NewResolver(apiBase))

	blob := &media.Blob{Data: []byte("opus"), MIMEType: "audio/ogg"}
	if _, err := u.UploadBlob(context.Background(), blob); err == nil {
		t.Fatal("expected error")
	}
}

func TestUploadBlobEmpty(t *testing.T) {
	u := NewUploader(&fakeBlobStore{}, NewResolver(apiBase))

	if _, err := u.UploadBlob(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil blob")
	}
	if _, err := u.UploadBlob(context.Background(), &media.Blob{}); err == nil {
		t.Fatal("expected error for empty blob")
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		mimeType string
		want     string
	}{
		{"audio/webm;codecs=opus", "webm"},
		{"audio/ogg;codecs=opus", "ogg"},
		{"audio/mpeg", "mp3"},
		{"audio/flac", "flac"},
		{"nonsense", "bin"},
	}
	for _, tt := range tests {
		if got := extensionFor(tt.mimeType); got != tt.want {
			t.Fatalf("extensionFor(%q) = %q, want %q", tt.mimeType, got, tt.want)
		}
	}
}

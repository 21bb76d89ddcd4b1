package upload

import "testing"

const apiBase = "http://localhost:3002/api/v1"

func TestResolveShapes(t *testing.T) {
	r := NewResolver(apiBase)

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{
			"absolute http unchanged",
			"http://cdn.example.com/a.mp3",
			"http://cdn.example.com/a.mp3",
		},
		{
			"absolute https unchanged",
			"https://cdn.example.com/a.mp3",
			"https://cdn.example.com/a.mp3",
		},
		{
			"api-relative uploads path",
			"/api/v1/uploads/x.mp3",
			"http://localhost:3002/api/v1/uploads/x.mp3",
		},
		{
			"uploads segment anywhere",
			"/var/www/app/uploads/voice_9.ogg",
			apiBase + "/uploads/voice_9.ogg",
		},
		{
			"uploads-relative no leading slash",
			"uploads/voice_123.webm",
			apiBase + "/uploads/voice_123.webm",
		},
		{
			"bare filename",
			"voice_123.webm",
			apiBase + "/uploads/voice_123.webm",
		},
		{
			"path-like unknown prefix falls back to filename",
			"/tmp/out/final.mp3",
			apiBase + "/uploads/final.mp3",
		},
		{
			"backslashes normalized",
			"uploads\\voice_7.webm",
			apiBase + "/uploads/voice_7.webm",
		},
		{
			"empty string",
			"",
			"",
		},
		{
			"object with url field",
			map[string]any{"url": "uploads/a.webm"},
			apiBase + "/uploads/a.webm",
		},
		{
			"object with path field",
			map[string]any{"path": "/api/v1/uploads/b.mp3"},
			"http://localhost:3002/api/v1/uploads/b.mp3",
		},
		{
			"object with fileUrl field",
			map[string]any{"fileUrl": "c.ogg"},
			apiBase + "/uploads/c.ogg",
		},
		{
			"object with storage location field",
			map[string]any{"Location": "https://bucket.example.com/d.mp3"},
			"https://bucket.example.com/d.mp3",
		},
		{
			"nested data wrapper",
			map[string]any{"data": map[string]any{"url": "uploads/e.webm"}},
			apiBase + "/uploads/e.webm",
		},
		{
			"url field wins over path",
			map[string]any{"url": "uploads/first.webm", "path": "uploads/second.webm"},
			apiBase + "/uploads/first.webm",
		},
		{
			"unsupported input type",
			42,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.input)
			if got != tt.want {
				t.Fatalf("Resolve(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveIdempotent(t *testing.T) {
	r := NewResolver(apiBase)

	inputs := []string{
		"uploads/voice_123.webm",
		"/api/v1/uploads/x.mp3",
		"voice_1.ogg",
		"https://cdn.example.com/a.mp3",
	}
	for _, input := range inputs {
		once := r.Resolve(input)
		twice := r.Resolve(once)
		if once != twice {
			t.Fatalf("Resolve not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestResolveAlwaysAbsolute(t *testing.T) {
	r := NewResolver(apiBase)

	inputs := []string{
		"uploads/a.webm",
		"/api/v3/uploads/b.mp3",
		"weird///",
		"just-a-name",
		"dir/sub/file.ogg",
	}
	for _, input := range inputs {
		got := r.Resolve(input)
		if got == "" {
			continue // degenerate inputs may resolve to nothing
		}
		if len(got) < 7 || (got[:7] != "http://" && got[:8] != "https://") {
			t.Fatalf("Resolve(%q) = %q, not absolute", input, got)
		}
	}
}

func TestResolverHostStripsVersion(t *testing.T) {
	r := NewResolver("http://localhost:3002/api/v2/")
	got := r.Resolve("/api/v2/uploads/z.mp3")
	want := "http://localhost:3002/api/v2/uploads/z.mp3"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// Package upload normalizes audio/file references to fetchable URLs and
// pushes recorded blobs to the backend's upload endpoint.
package upload

import (
	"regexp"
	"strings"
)

// apiVersionRe matches the trailing API version segment of the base URL.
var apiVersionRe = regexp.MustCompile(`/api/v\d+$`)

// apiUploadsRe matches backend-relative upload paths like /api/v1/uploads/x.mp3.
var apiUploadsRe = regexp.MustCompile(`^/api/v\d+/uploads/`)

// Resolver rewrites URL-like references to absolute URLs under the API
// host. The chain is deliberately liberal: every non-empty input
// resolves to some fetchable URL, falling back to a filename-based
// guess rather than rejecting malformed references.
type Resolver struct {
	apiBase string // e.g. http://localhost:3002/api/v1
	host    string // apiBase with the version segment stripped
}

// NewResolver creates a resolver for the given API base URL (including
// the version segment).
func NewResolver(apiBase string) *Resolver {
	apiBase = strings.TrimRight(apiBase, "/")
	return &Resolver{
		apiBase: apiBase,
		host:    apiVersionRe.ReplaceAllString(apiBase, ""),
	}
}

// refKeys are the object property names that may carry a reference, in
// priority order. First match wins.
var refKeys = []string{"url", "path", "fileUrl", "Location"}

// extract pulls a reference string out of the supported input shapes:
// a plain string, or an object carrying the URL under a known property
// name, possibly nested one level under a "data" wrapper.
func extract(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range refKeys {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
		if nested, ok := v["data"]; ok {
			return extract(nested)
		}
	}
	return ""
}

// Resolve classifies a reference and rewrites it to an absolute URL.
// Rules are applied in order:
//
//  1. absolute http(s) URL          -> unchanged
//  2. /api/vN/uploads/... path      -> host + path
//  3. contains /uploads/ anywhere   -> apiBase + from the uploads segment
//  4. starts with uploads/          -> apiBase + "/" + value
//  5. anything else                 -> apiBase + "/uploads/" + last segment
//
// Empty input resolves to "".
func (r *Resolver) Resolve(input any) string {
	ref := strings.TrimSpace(extract(input))
	if ref == "" {
		return ""
	}

	// Windows-style separators show up in stored paths
	ref = strings.ReplaceAll(ref, "\\", "/")

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	if apiUploadsRe.MatchString(ref) {
		return r.host + ref
	}

	if idx := strings.Index(ref, "/uploads/"); idx >= 0 {
		return r.apiBase + ref[idx:]
	}

	if strings.HasPrefix(ref, "uploads/") {
		return r.apiBase + "/" + ref
	}

	// Bare filename fallback: take the last path segment
	name := ref
	if idx := strings.LastIndex(ref, "/"); idx >= 0 {
		name = ref[idx+1:]
	}
	if name == "" {
		return ""
	}
	return r.apiBase + "/uploads/" + name
}

package handlers

import (
	"context"
	"net/http"
	"time"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	// Check the realtime feed store
	feedStart := time.Now()
	if err := h.store.Ping(ctx); err != nil {
		checks["feed"] = Check{Status: "fail", Message: "connection failed"}
		allHealthy = false
	} else {
		checks["feed"] = Check{Status: "pass", Latency: time.Since(feedStart).String()}
	}

	// Check the directory cache
	if h.cache != nil {
		dirStart := time.Now()
		if err := h.cache.Ping(ctx); err != nil {
			checks["directory"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["directory"] = Check{Status: "pass", Latency: time.Since(dirStart).String()}
		}
	} else {
		checks["directory"] = Check{Status: "fail", Message: "not configured"}
		allHealthy = false
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	h.JSON(w, statusCode, resp)
}

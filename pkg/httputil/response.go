// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request-scoped middleware.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apexanalytical/labcms/pkg/errs"
)

// ErrorResponse is the JSON envelope for every pipeline failure.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Status     int    `json:"status"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Field      string `json:"field,omitempty"`
	RetryAfter int64  `json:"retryAfter,omitempty"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
}

// SuccessResponse is the JSON envelope for successful API responses.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// WriteCreated writes a 201 response with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: data})
}

// WriteMessage writes a 200 response with a message only
func WriteMessage(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: message})
}

// WriteError is the single terminal error responder. Every pipeline
// stage and handler funnels failures through here; no stage writes its
// own response shape.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	e := errs.From(err)
	status := e.Kind.StatusCode()

	if e.Kind == errs.KindRateLimit && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(e.RetryAfter-time.Now().Unix(), 10))
	}

	if !WantsJSON(r) {
		writeRetryPage(w, status)
		return
	}

	WriteJSON(w, status, ErrorResponse{
		Success:    false,
		Status:     status,
		Message:    e.Message,
		Type:       string(e.Kind),
		Field:      e.Field,
		RetryAfter: e.RetryAfter,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       r.URL.Path,
	})
}

// WantsJSON distinguishes programmatic API calls from browser
// navigation, by path prefix first and Accept header second.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "text/html") {
		return false
	}
	return true
}

// writeRetryPage renders a minimal retry prompt for browser traffic.
func writeRetryPage(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte("<!DOCTYPE html><html><head><title>Something went wrong</title></head>" +
		"<body><h1>Something went wrong</h1><p>Please try again in a moment.</p></body></html>"))
}

// ParseJSON decodes a JSON request body into dst, rejecting unknown
// payload shapes with a validation error.
func ParseJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errs.Validation("request body is required", "body")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errs.Validation("invalid JSON body", "body")
	}
	return nil
}

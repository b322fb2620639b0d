package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/apexanalytical/labcms/pkg/errs"
)

func TestWriteError_Envelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, errs.Validation("username is required", "body.username"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if resp.Success {
		t.Error("success = true, want false")
	}
	if resp.Status != http.StatusBadRequest {
		t.Errorf("status field = %d, want 400", resp.Status)
	}
	if resp.Type != "validation" {
		t.Errorf("type = %q, want validation", resp.Type)
	}
	if resp.Field != "body.username" {
		t.Errorf("field = %q, want body.username", resp.Field)
	}
	if resp.Path != "/api/auth/login" {
		t.Errorf("path = %q, want /api/auth/login", resp.Path)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339", resp.Timestamp)
	}
}

func TestWriteError_InternalHidesCause(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, errs.Internal(errors.New("pq: connection refused")))

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if strings.Contains(resp.Message, "pq:") {
		t.Errorf("message = %q, internal cause leaked to client", resp.Message)
	}
}

func TestWriteError_UnclassifiedBecomesInternal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, errors.New("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestWriteError_RateLimitHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	rec := httptest.NewRecorder()

	reset := time.Now().Add(10 * time.Minute).Unix()
	WriteError(rec, req, errs.RateLimit("too many requests", reset))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}

	seconds, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After not numeric: %v", err)
	}
	if seconds <= 0 || seconds > 600 {
		t.Errorf("Retry-After = %d, want seconds until reset", seconds)
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.RetryAfter != reset {
		t.Errorf("retryAfter = %d, want the unix reset time %d", resp.RetryAfter, reset)
	}
}

func TestWriteError_BrowserGetsRetryPage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()

	WriteError(rec, req, errs.RateLimit("too many requests", time.Now().Unix()))

	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want html for browser traffic", ct)
	}
	if !strings.Contains(rec.Body.String(), "try again") {
		t.Error("retry page should prompt the user to retry")
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		accept string
		want   bool
	}{
		{"api path", "/api/services", "text/html", true},
		{"browser navigation", "/services", "text/html,application/xhtml+xml", false},
		{"no accept header", "/services", "", true},
		{"json accept", "/services", "application/json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if got := WantsJSON(req); got != tt.want {
				t.Errorf("WantsJSON() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"name": "Hematology"})

	var resp SuccessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if !resp.Success {
		t.Error("success = false, want true")
	}
}

func TestParseJSON_RejectsMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader("{oops"))

	var dst map[string]interface{}
	err := ParseJSON(req, &dst)
	if !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("error = %v, want a validation error", err)
	}
}

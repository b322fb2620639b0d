package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind_StatusCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindFileUpload, http.StatusBadRequest},
		{KindAuthentication, http.StatusUnauthorized},
		{KindAuthorization, http.StatusForbidden},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindNotFound, http.StatusNotFound},
		{KindInternal, http.StatusInternalServerError},
		{Kind("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.kind.StatusCode(); got != tt.want {
			t.Errorf("StatusCode(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestFrom_PassesThroughPipelineErrors(t *testing.T) {
	original := Validation("name is required", "body.name")

	got := From(original)
	if got != original {
		t.Errorf("From() should return the original pipeline error")
	}
	if got.Kind != KindValidation {
		t.Errorf("Kind = %s, want %s", got.Kind, KindValidation)
	}
	if got.Field != "body.name" {
		t.Errorf("Field = %q, want %q", got.Field, "body.name")
	}
}

func TestFrom_WrapsUnknownErrors(t *testing.T) {
	cause := errors.New("db connection lost")

	got := From(cause)
	if got.Kind != KindInternal {
		t.Errorf("Kind = %s, want %s", got.Kind, KindInternal)
	}
	if got.Message != "internal server error" {
		t.Errorf("Message = %q, client-facing message must not leak the cause", got.Message)
	}
	if !errors.Is(got, cause) {
		t.Error("wrapped error should unwrap to the cause")
	}
}

func TestFrom_UnwrapsThroughWrapping(t *testing.T) {
	original := Authentication("token expired")
	wrapped := fmt.Errorf("handling request: %w", original)

	got := From(wrapped)
	if got.Kind != KindAuthentication {
		t.Errorf("Kind = %s, want %s", got.Kind, KindAuthentication)
	}
}

func TestIsKind(t *testing.T) {
	err := RateLimit("too many requests", 1700000000)

	if !IsKind(err, KindRateLimit) {
		t.Error("IsKind() should match rate limit errors")
	}
	if IsKind(err, KindValidation) {
		t.Error("IsKind() should not match a different kind")
	}
	if IsKind(errors.New("plain"), KindRateLimit) {
		t.Error("IsKind() should not match non-pipeline errors")
	}
	if err.RetryAfter != 1700000000 {
		t.Errorf("RetryAfter = %d, want 1700000000", err.RetryAfter)
	}
}

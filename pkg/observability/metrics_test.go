package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/apexanalytical/labcms/pkg/audit"
)

func TestMetrics_MiddlewareCountsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/services", nil))

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "418"))
	if got != 1 {
		t.Errorf("requests counter = %v, want 1", got)
	}
}

func TestMetrics_HandlerServesRegistry(t *testing.T) {
	m := NewMetrics()
	m.SecurityEventsTotal.WithLabelValues("auth.invalid_token").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "labcms_security_events_total") {
		t.Error("scrape output should include the security events counter")
	}
}

func TestMeteredAuditLogger_CountsAndDelegates(t *testing.T) {
	m := NewMetrics()
	log := NewMeteredAuditLogger(audit.NopLogger{}, m)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	log.SecurityEvent(audit.EventTypeAuthInvalidToken, req, "invalid token")
	log.SecurityEvent(audit.EventTypeAuthInvalidToken, req, "invalid token")
	log.SecurityEvent(audit.EventTypeRateLimitExceeded, req, "quota hit")

	got := testutil.ToFloat64(m.SecurityEventsTotal.WithLabelValues("auth.invalid_token"))
	if got != 2 {
		t.Errorf("invalid_token counter = %v, want 2", got)
	}
	got = testutil.ToFloat64(m.RateLimitAllowsTotal.WithLabelValues("any", "rejected"))
	if got != 1 {
		t.Errorf("ratelimit rejected counter = %v, want 1", got)
	}
}

func TestMeteredAuditLogger_CountsUploads(t *testing.T) {
	m := NewMetrics()
	log := NewMeteredAuditLogger(audit.NopLogger{}, m)

	log.Log(&audit.Event{EventType: audit.EventTypeUploadAccepted, Status: audit.EventStatusSuccess})
	log.Log(&audit.Event{EventType: audit.EventTypeUploadRejected, Status: audit.EventStatusDenied})

	if got := testutil.ToFloat64(m.UploadsTotal.WithLabelValues("accepted")); got != 1 {
		t.Errorf("accepted counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UploadsTotal.WithLabelValues("rejected")); got != 1 {
		t.Errorf("rejected counter = %v, want 1", got)
	}
}

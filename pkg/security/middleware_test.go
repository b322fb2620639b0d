package security

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apexanalytical/labcms/pkg/audit"
)

// recordingLogger captures event types for assertions
type recordingLogger struct {
	audit.NopLogger
	types []audit.EventType
}

func (l *recordingLogger) SecurityEvent(eventType audit.EventType, r *http.Request, message string) {
	l.types = append(l.types, eventType)
}

func (l *recordingLogger) SecurityEventField(eventType audit.EventType, r *http.Request, message, field, value string) {
	l.types = append(l.types, eventType)
}

func (l *recordingLogger) sawEvent(eventType audit.EventType) bool {
	for _, et := range l.types {
		if et == eventType {
			return true
		}
	}
	return false
}

func TestSanitizeMiddleware_RewritesBody(t *testing.T) {
	var decoded map[string]interface{}
	handler := SanitizeMiddleware(NewSanitizer())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&decoded); err != nil {
			t.Fatalf("decoding sanitized body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"name":"<script>alert(1)</script>Microbiology"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/services", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decoded["name"]; got != "Microbiology" {
		t.Errorf("handler saw name = %q, want sanitized %q", got, "Microbiology")
	}
}

func TestSanitizeMiddleware_StashesTrees(t *testing.T) {
	var trees *RequestTrees
	handler := SanitizeMiddleware(NewSanitizer())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trees = TreesFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/x?q=hello", strings.NewReader(`{"a":"b"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if trees == nil {
		t.Fatal("sanitized trees missing from context")
	}
	if got := trees.Query.Get("q"); got != "hello" {
		t.Errorf("query q = %q, want %q", got, "hello")
	}
}

func TestSanitizeMiddleware_MalformedBodyPassesThrough(t *testing.T) {
	var raw []byte
	handler := SanitizeMiddleware(NewSanitizer())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// The handler's own decoder owns rejecting malformed JSON.
	if string(raw) != `{not json` {
		t.Errorf("body = %q, want original malformed payload", raw)
	}
}

func TestInjectionGuard_RejectsSQLBody(t *testing.T) {
	log := &recordingLogger{}
	handler := SanitizeMiddleware(NewSanitizer())(
		InjectionGuard(NewDetector(), log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not run for an injection payload")
		})))

	body := `{"username":"admin' OR 1=1 --"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !log.sawEvent(audit.EventTypeSQLInjection) {
		t.Error("expected a sql_injection security event")
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	if resp["type"] != "validation" {
		t.Errorf("type = %v, want validation", resp["type"])
	}
	if resp["field"] != "body.username" {
		t.Errorf("field = %v, want body.username", resp["field"])
	}
}

func TestInjectionGuard_RejectsNoSQLQuery(t *testing.T) {
	log := &recordingLogger{}
	handler := InjectionGuard(NewDetector(), log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/services?$where=1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !log.sawEvent(audit.EventTypeNoSQLInjection) {
		t.Error("expected a nosql_injection security event")
	}
}

func TestInjectionGuard_CleanRequestProceeds(t *testing.T) {
	called := false
	handler := SanitizeMiddleware(NewSanitizer())(
		InjectionGuard(NewDetector(), audit.NopLogger{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})))

	req := httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader(`{"name":"Hematology"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("clean request should reach the handler")
	}
}

func TestUserAgentGuard(t *testing.T) {
	tests := []struct {
		name       string
		userAgent  string
		wantStatus int
		wantEvent  audit.EventType
	}{
		{"missing agent", "", http.StatusBadRequest, audit.EventTypeMissingAgent},
		{"sqlmap", "sqlmap/1.7.2#stable", http.StatusForbidden, audit.EventTypeSuspiciousAgent},
		{"nikto", "Mozilla/5.00 (Nikto/2.1.6)", http.StatusForbidden, audit.EventTypeSuspiciousAgent},
		{"browser", "Mozilla/5.0 (X11; Linux x86_64)", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			handler := UserAgentGuard(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
			if tt.userAgent != "" {
				req.Header.Set("User-Agent", tt.userAgent)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantEvent != "" && !log.sawEvent(tt.wantEvent) {
				t.Errorf("expected a %s security event", tt.wantEvent)
			}
		})
	}
}

func TestContentTypeGuard(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{"get without content type", http.MethodGet, "", http.StatusOK},
		{"delete without content type", http.MethodDelete, "", http.StatusOK},
		{"post json", http.MethodPost, "application/json", http.StatusOK},
		{"post json with charset", http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"post multipart", http.MethodPost, "multipart/form-data; boundary=x", http.StatusOK},
		{"post missing", http.MethodPost, "", http.StatusBadRequest},
		{"post xml", http.MethodPost, "application/xml", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := ContentTypeGuard(audit.NopLogger{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/x", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

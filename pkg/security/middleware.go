package security

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/errs"
	"github.com/apexanalytical/labcms/pkg/httputil"
)

// scannerAgents are user-agent signatures of well-known attack tooling.
var scannerAgents = []*regexp.Regexp{
	regexp.MustCompile(`(?i)sqlmap`),
	regexp.MustCompile(`(?i)nikto`),
	regexp.MustCompile(`(?i)nessus`),
	regexp.MustCompile(`(?i)burp`),
	regexp.MustCompile(`(?i)nmap`),
	regexp.MustCompile(`(?i)masscan`),
	regexp.MustCompile(`(?i)zap`),
	regexp.MustCompile(`(?i)acunetix`),
}

// SanitizeMiddleware parses the request's input trees, strips unsafe
// HTML from every string leaf, and rewrites the request in place so
// every later stage only sees sanitized values. It never rejects.
func SanitizeMiddleware(sanitizer *Sanitizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trees, err := FromRequest(r)
			if err != nil {
				httputil.WriteError(w, r, errs.Validation("unreadable request body", "body"))
				return
			}

			sanitizer.SanitizeTrees(trees)

			if err := trees.RestoreBody(r); err != nil {
				httputil.WriteError(w, r, errs.Internal(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTrees(r.Context(), trees)))
		})
	}
}

// InjectionGuard scans the sanitized trees for SQL and NoSQL injection
// signatures. The first match records a security event and fails the
// request; there is no partial fallback.
func InjectionGuard(detector *Detector, log audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trees := TreesFromContext(r.Context())
			if trees == nil {
				// Sanitizer did not run on this route; scan what the
				// request line alone carries.
				t, err := FromRequest(r)
				if err != nil {
					httputil.WriteError(w, r, errs.Validation("unreadable request body", "body"))
					return
				}
				if err := t.RestoreBody(r); err != nil {
					httputil.WriteError(w, r, errs.Internal(err))
					return
				}
				trees = t
			}

			if m := detector.Scan(trees); m != nil {
				eventType := audit.EventTypeSQLInjection
				message := "SQL injection attempt detected"
				if m.NoSQL {
					eventType = audit.EventTypeNoSQLInjection
					message = "NoSQL injection attempt detected"
				}
				log.SecurityEventField(eventType, r, message, m.Path, m.Value)
				httputil.WriteError(w, r, m.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserAgentGuard rejects requests with no User-Agent header and
// requests from known scanner tooling.
func UserAgentGuard(log audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userAgent := r.UserAgent()

			if userAgent == "" {
				log.SecurityEvent(audit.EventTypeMissingAgent, r, "missing User-Agent header")
				httputil.WriteError(w, r, errs.Validation("User-Agent header is required", "header.user-agent"))
				return
			}

			for _, pattern := range scannerAgents {
				if pattern.MatchString(userAgent) {
					log.SecurityEvent(audit.EventTypeSuspiciousAgent, r, "suspicious User-Agent detected")
					httputil.WriteError(w, r, errs.Authorization("access denied"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allowedContentTypes for mutating requests.
var allowedContentTypes = []string{
	"application/json",
	"multipart/form-data",
	"application/x-www-form-urlencoded",
}

// ContentTypeGuard requires mutating requests to declare one of the
// allowed content types.
func ContentTypeGuard(log audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				httputil.WriteError(w, r, errs.Validation("Content-Type header is required", "header.content-type"))
				return
			}

			for _, allowed := range allowedContentTypes {
				if strings.Contains(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.SecurityEvent(audit.EventTypeInvalidContentType, r, "unsupported Content-Type: "+contentType)
			httputil.WriteError(w, r, errs.Validation("unsupported Content-Type", "header.content-type"))
		})
	}
}

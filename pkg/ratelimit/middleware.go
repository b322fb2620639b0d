package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/config"
	"github.com/apexanalytical/labcms/pkg/errs"
	"github.com/apexanalytical/labcms/pkg/httputil"
)

// KeyFunc derives the counter key for a request. The default keys on
// the client network address.
type KeyFunc func(r *http.Request) string

// Limiter enforces one named quota over a counter store
type Limiter struct {
	name   string
	window time.Duration
	max    int
	store  Store
	log    audit.Logger
	keyFn  KeyFunc

	// skipSuccessful uncounts requests that complete below 400,
	// used on the auth limiter so only failed attempts burn quota.
	skipSuccessful bool
	// exempt short-circuits the limiter for matching requests.
	exempt func(r *http.Request) bool
}

// Option configures a Limiter
type Option func(*Limiter)

// WithKeyFunc overrides the client key derivation
func WithKeyFunc(fn KeyFunc) Option {
	return func(l *Limiter) { l.keyFn = fn }
}

// WithSkipSuccessful uncounts requests that complete with a status
// below 400
func WithSkipSuccessful() Option {
	return func(l *Limiter) { l.skipSuccessful = true }
}

// WithExempt skips the limiter entirely for matching requests
func WithExempt(fn func(r *http.Request) bool) Option {
	return func(l *Limiter) { l.exempt = fn }
}

// New creates a named limiter over the given store
func New(name string, cfg config.LimiterConfig, store Store, log audit.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		name:   name,
		window: cfg.Window,
		max:    cfg.Max,
		store:  store,
		log:    log,
		keyFn:  func(r *http.Request) string { return "ip:" + audit.ClientIP(r) },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewAPILimiter builds the general API limiter; health checks are exempt.
func NewAPILimiter(cfg config.LimiterConfig, store Store, log audit.Logger) *Limiter {
	return New("api", cfg, store, log, WithExempt(func(r *http.Request) bool {
		return r.URL.Path == "/health" || r.URL.Path == "/api/health"
	}))
}

// NewAuthLimiter builds the login limiter; successful attempts are not counted.
func NewAuthLimiter(cfg config.LimiterConfig, store Store, log audit.Logger) *Limiter {
	return New("auth", cfg, store, log, WithSkipSuccessful())
}

// NewUploadLimiter builds the file upload limiter
func NewUploadLimiter(cfg config.LimiterConfig, store Store, log audit.Logger) *Limiter {
	return New("upload", cfg, store, log)
}

// NewAdminLimiter builds the admin operations limiter
func NewAdminLimiter(cfg config.LimiterConfig, store Store, log audit.Logger) *Limiter {
	return New("admin", cfg, store, log)
}

// NewPasswordResetLimiter builds the password reset limiter
func NewPasswordResetLimiter(cfg config.LimiterConfig, store Store, log audit.Logger) *Limiter {
	return New("password_reset", cfg, store, log)
}

// Middleware wraps next with quota enforcement. Store failures fail
// open: the request proceeds and the error is logged.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.exempt != nil && l.exempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := l.name + ":" + l.keyFn(r)

		count, reset, err := l.store.Increment(r.Context(), key, l.window)
		if err != nil {
			l.log.SecurityEvent(audit.EventTypeRateLimitStoreErr, r,
				"rate limit store error, failing open: "+err.Error())
			next.ServeHTTP(w, r)
			return
		}

		if count > l.max {
			l.rejected(w, r, reset)
			return
		}

		remaining := l.max - count
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.max))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

		if !l.skipSuccessful {
			next.ServeHTTP(w, r)
			return
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		if sw.status < http.StatusBadRequest {
			if err := l.store.Decrement(r.Context(), key); err != nil {
				l.log.SecurityEvent(audit.EventTypeRateLimitStoreErr, r,
					"rate limit uncount error: "+err.Error())
			}
		}
	})
}

func (l *Limiter) rejected(w http.ResponseWriter, r *http.Request, reset time.Time) {
	l.log.SecurityEvent(audit.EventTypeRateLimitExceeded, r,
		fmt.Sprintf("rate limit exceeded on %s limiter", l.name))

	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.max))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

	httputil.WriteError(w, r, errs.RateLimit("too many requests, please try again later", reset.Unix()))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

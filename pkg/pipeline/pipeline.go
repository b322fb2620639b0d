// Package pipeline is the composition root of the admission chain.
// It fixes the stage order every request traverses before reaching a
// handler: headers/CORS and body limits on the outside, then
// sanitization, injection detection, rate limiting, and per-route-class
// authentication and authorization. Each stage may short-circuit with a
// terminal response through the shared error responder.
package pipeline

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/auth"
	"github.com/apexanalytical/labcms/pkg/authz"
	"github.com/apexanalytical/labcms/pkg/config"
	"github.com/apexanalytical/labcms/pkg/httputil"
	"github.com/apexanalytical/labcms/pkg/observability"
	"github.com/apexanalytical/labcms/pkg/ratelimit"
	"github.com/apexanalytical/labcms/pkg/security"
)

// Pipeline wires every admission stage once and hands out composed
// chains per route class.
type Pipeline struct {
	cfg *config.Config
	log audit.Logger

	sanitizer *security.Sanitizer
	detector  *security.Detector

	apiLimiter           *ratelimit.Limiter
	authLimiter          *ratelimit.Limiter
	uploadLimiter        *ratelimit.Limiter
	adminLimiter         *ratelimit.Limiter
	passwordResetLimiter *ratelimit.Limiter

	authn *auth.Middleware
	authz *authz.Authorizer

	logger  *logrus.Logger
	metrics *observability.Metrics
}

// New builds the pipeline over the shared counter store and identity
// store. The store decides single-instance vs distributed rate
// limiting; the pipeline does not know which it got.
func New(cfg *config.Config, store ratelimit.Store, users auth.IdentityStore,
	tokens *auth.TokenManager, log audit.Logger, logger *logrus.Logger,
	metrics *observability.Metrics) *Pipeline {

	return &Pipeline{
		cfg:                  cfg,
		log:                  log,
		sanitizer:            security.NewSanitizer(),
		detector:             security.NewDetector(),
		apiLimiter:           ratelimit.NewAPILimiter(cfg.RateLimit.API, store, log),
		authLimiter:          ratelimit.NewAuthLimiter(cfg.RateLimit.Auth, store, log),
		uploadLimiter:        ratelimit.NewUploadLimiter(cfg.RateLimit.Upload, store, log),
		adminLimiter:         ratelimit.NewAdminLimiter(cfg.RateLimit.Admin, store, log),
		passwordResetLimiter: ratelimit.NewPasswordResetLimiter(cfg.RateLimit.PasswordReset, store, log),
		authn:                auth.NewMiddleware(tokens, users, log),
		authz:                authz.New(log),
		logger:               logger,
		metrics:              metrics,
	}
}

// Outer wraps the router with the request-scoped plumbing that runs
// before route matching: recovery, request IDs, logging, metrics,
// hardening headers, CORS, and the body size ceiling.
func (p *Pipeline) Outer(handler http.Handler) http.Handler {
	chain := httputil.Chain(
		httputil.RecoveryMiddleware(p.logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(p.logger),
		p.metrics.Middleware,
		httputil.SecurityHeadersMiddleware,
		httputil.CORSMiddleware(p.cfg.CORSAllowedOrigins),
		httputil.MaxBytesMiddleware(p.cfg.Server.MaxBodyBytes),
	)
	return chain(handler)
}

// RouterMiddleware is the ordered admission chain applied to every
// matched route: user-agent and content-type screening, sanitization,
// injection detection, then the general API limiter.
func (p *Pipeline) RouterMiddleware() []mux.MiddlewareFunc {
	return []mux.MiddlewareFunc{
		security.UserAgentGuard(p.log),
		security.ContentTypeGuard(p.log),
		security.SanitizeMiddleware(p.sanitizer),
		security.InjectionGuard(p.detector, p.log),
		p.apiLimiter.Middleware,
	}
}

// AuthRoute wraps login-class handlers with the strict auth limiter;
// successful attempts do not burn quota.
func (p *Pipeline) AuthRoute(handler http.Handler) http.Handler {
	return p.authLimiter.Middleware(handler)
}

// PasswordResetRoute wraps password reset handlers
func (p *Pipeline) PasswordResetRoute(handler http.Handler) http.Handler {
	return p.passwordResetLimiter.Middleware(handler)
}

// Admin wraps back-office handlers: admin limiter, then
// authentication, then the admin role check.
func (p *Pipeline) Admin(handler http.Handler) http.Handler {
	return httputil.Chain(
		p.adminLimiter.Middleware,
		p.authn.Handler,
		p.authz.RequireAdmin(),
	)(handler)
}

// Superadmin wraps handlers restricted to the highest-privilege role
func (p *Pipeline) Superadmin(handler http.Handler) http.Handler {
	return httputil.Chain(
		p.adminLimiter.Middleware,
		p.authn.Handler,
		p.authz.RequireSuperadmin(),
	)(handler)
}

// Upload wraps file-bearing admin handlers with the upload limiter in
// place of the admin one.
func (p *Pipeline) Upload(handler http.Handler) http.Handler {
	return httputil.Chain(
		p.uploadLimiter.Middleware,
		p.authn.Handler,
		p.authz.RequireAdmin(),
	)(handler)
}

// OwnerOrAdmin wraps handlers where the caller must own the target
// resource unless they are an admin.
func (p *Pipeline) OwnerOrAdmin(ownerParam string, handler http.Handler) http.Handler {
	return httputil.Chain(
		p.authn.Handler,
		p.authz.RequireOwnerOrAdmin(ownerParam),
	)(handler)
}

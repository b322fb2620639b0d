package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/contextkeys"
	"github.com/apexanalytical/labcms/pkg/errs"
	"github.com/apexanalytical/labcms/pkg/httputil"
)

// Middleware authenticates the request's bearer credential. Every
// failure path emits a security event before the uniform 401 response;
// success attaches the resolved identity and claims to the context.
type Middleware struct {
	tokens *TokenManager
	users  IdentityStore
	log    audit.Logger
}

// NewMiddleware creates the authentication middleware
func NewMiddleware(tokens *TokenManager, users IdentityStore, log audit.Logger) *Middleware {
	return &Middleware{tokens: tokens, users: users, log: log}
}

// Handler wraps next with authentication
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Header must be present and Bearer-shaped.
		token, ok := bearerToken(r)
		if !ok {
			m.log.SecurityEvent(audit.EventTypeAuthMissingHeader, r,
				"authentication failed: missing or malformed authorization header")
			httputil.WriteError(w, r, errs.Authentication("access denied: invalid authorization format"))
			return
		}

		// 2-3. Signature, expiry and issuance-age checks.
		claims, err := m.tokens.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				m.log.SecurityEvent(audit.EventTypeAuthExpiredToken, r,
					"authentication failed: token expired")
				httputil.WriteError(w, r, errs.Authentication("token expired, please login again"))
			case errors.Is(err, ErrTokenStale):
				m.log.SecurityEvent(audit.EventTypeAuthStaleToken, r,
					"authentication failed: token issued too long ago")
				httputil.WriteError(w, r, errs.Authentication("token too old, please login again"))
			default:
				m.log.SecurityEvent(audit.EventTypeAuthInvalidToken, r,
					"authentication failed: invalid token")
				httputil.WriteError(w, r, errs.Authentication("invalid token, please login again"))
			}
			return
		}

		// 4. The claimed subject must still exist.
		user, err := m.users.FindByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				m.log.SecurityEvent(audit.EventTypeAuthUnknownUser, r,
					"authentication failed: user not found")
				httputil.WriteError(w, r, errs.Authentication("user not found"))
				return
			}
			httputil.WriteError(w, r, errs.Internal(err))
			return
		}

		// 5. Disabled identities never authenticate.
		if !user.Active {
			m.log.SecurityEvent(audit.EventTypeAuthDisabledUser, r,
				"authentication failed: user account disabled")
			httputil.WriteError(w, r, errs.Authentication("user account is disabled"))
			return
		}

		// 6. The embedded role must match the current one, so a role
		// change after issuance invalidates outstanding tokens.
		if claims.Role != user.Role {
			m.log.SecurityEvent(audit.EventTypeAuthRoleDrift, r,
				"authentication failed: token role does not match current role")
			httputil.WriteError(w, r, errs.Authentication("token invalid due to role change, please login again"))
			return
		}

		// 7. Success.
		event := audit.BuildEvent(audit.EventTypeAuthSuccess, audit.EventStatusSuccess, r)
		event.UserID = user.ID
		event.Username = user.Username
		event.Role = string(user.Role)
		event.Message = "user authenticated"
		m.log.Log(event)

		ctx := contextkeys.WithAuth(r.Context(), &AuthContext{User: user, Claims: claims})
		ctx = contextkeys.WithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the credential from "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

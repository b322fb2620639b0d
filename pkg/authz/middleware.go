// Package authz enforces role- and ownership-based access rules on
// authenticated requests. Every decision, grant or deny, is logged as
// an audit event.
package authz

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/auth"
	"github.com/apexanalytical/labcms/pkg/errs"
	"github.com/apexanalytical/labcms/pkg/httputil"
	"github.com/apexanalytical/labcms/pkg/security"
)

// Authorizer builds the access-check middleware family
type Authorizer struct {
	log audit.Logger
}

// New creates an authorizer
func New(log audit.Logger) *Authorizer {
	return &Authorizer{log: log}
}

// RequireRole allows only identities whose role is in the allowed set.
// An absent identity is itself a failure.
func (a *Authorizer) RequireRole(allowed ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.FromRequest(r)
			if authCtx == nil || authCtx.User == nil {
				a.deny(r, nil, "authorization attempted without authenticated identity")
				httputil.WriteError(w, r, errs.Authentication("authentication required"))
				return
			}

			for _, role := range allowed {
				if authCtx.User.Role == role {
					a.grant(r, authCtx.User, "role check passed")
					next.ServeHTTP(w, r)
					return
				}
			}

			a.deny(r, authCtx.User, "insufficient role")
			httputil.WriteError(w, r, errs.Authorization(
				fmt.Sprintf("access denied, required roles: %s", joinRoles(allowed))))
		})
	}
}

// RequireAdmin allows admin and superadmin identities
func (a *Authorizer) RequireAdmin() func(http.Handler) http.Handler {
	return a.RequireRole(auth.RoleAdmin, auth.RoleSuperadmin)
}

// RequireSuperadmin allows only the highest-privilege role
func (a *Authorizer) RequireSuperadmin() func(http.Handler) http.Handler {
	return a.RequireRole(auth.RoleSuperadmin)
}

// RequireOwnerOrAdmin allows admins, and otherwise requires the
// identity's id to equal the resource-owner id taken from the named
// path parameter (or, for JSON bodies, the sanitized body field of the
// same name).
func (a *Authorizer) RequireOwnerOrAdmin(ownerParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.FromRequest(r)
			if authCtx == nil || authCtx.User == nil {
				a.deny(r, nil, "authorization attempted without authenticated identity")
				httputil.WriteError(w, r, errs.Authentication("authentication required"))
				return
			}

			user := authCtx.User
			if user.Role.IsAdmin() {
				a.grant(r, user, "admin access to owned resource")
				next.ServeHTTP(w, r)
				return
			}

			ownerID, ok := ownerIDFromRequest(r, ownerParam)
			if ok && ownerID == user.ID {
				a.grant(r, user, "owner access to resource")
				next.ServeHTTP(w, r)
				return
			}

			a.deny(r, user, "not owner of resource")
			httputil.WriteError(w, r, errs.Authorization("access denied: you can only access your own resources"))
		})
	}
}

// ownerIDFromRequest extracts the resource-owner id from path
// parameters first, then from a sanitized JSON body field.
func ownerIDFromRequest(r *http.Request, ownerParam string) (int64, bool) {
	if raw, ok := mux.Vars(r)[ownerParam]; ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return id, true
		}
		return 0, false
	}

	trees := treesBody(r)
	if trees == nil {
		return 0, false
	}
	switch v := trees[ownerParam].(type) {
	case float64:
		return int64(v), true
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}

// treesBody returns the sanitized JSON body object, or nil
func treesBody(r *http.Request) map[string]interface{} {
	trees := security.TreesFromContext(r.Context())
	if trees == nil {
		return nil
	}
	if body, ok := trees.Body.(map[string]interface{}); ok {
		return body
	}
	return nil
}

func (a *Authorizer) grant(r *http.Request, user *auth.User, message string) {
	event := audit.BuildEvent(audit.EventTypeAuthzGranted, audit.EventStatusSuccess, r)
	event.UserID = user.ID
	event.Username = user.Username
	event.Role = string(user.Role)
	event.Message = message
	a.log.Log(event)
}

func (a *Authorizer) deny(r *http.Request, user *auth.User, message string) {
	event := audit.BuildEvent(audit.EventTypeAuthzDenied, audit.EventStatusDenied, r)
	if user != nil {
		event.UserID = user.ID
		event.Username = user.Username
		event.Role = string(user.Role)
	}
	event.Message = message
	a.log.Log(event)
}

func joinRoles(roles []auth.Role) string {
	parts := make([]string, len(roles))
	for i, role := range roles {
		parts[i] = string(role)
	}
	return strings.Join(parts, ", ")
}

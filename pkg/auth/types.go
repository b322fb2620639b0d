// Package auth verifies bearer credentials and resolves them to user
// identities. Verification is stateless per request: signature, age,
// and role consistency are all re-checked every time.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/apexanalytical/labcms/pkg/contextkeys"
)

// Role is the closed set of privilege levels
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// IsAdmin reports whether r carries admin-level privileges
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// User is the persisted identity the pipeline reads. Disabled users
// (Active=false) never authenticate successfully regardless of
// credential validity.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrUserNotFound is returned by identity stores when no user exists
// for the given key.
var ErrUserNotFound = errors.New("user not found")

// IdentityStore is the read-only persistence collaborator the pipeline
// depends on.
type IdentityStore interface {
	// FindByID returns the user with the given id, or ErrUserNotFound.
	FindByID(ctx context.Context, id int64) (*User, error)

	// FindByUsername returns the user with the given username, or
	// ErrUserNotFound. Used by the login handler only.
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// AuthContext carries the resolved identity and decoded claims for the
// rest of the request.
type AuthContext struct {
	User   *User
	Claims *Claims
}

// FromRequest extracts the auth context set by the middleware, or nil
// on unauthenticated requests.
func FromRequest(r *http.Request) *AuthContext {
	return FromContext(r.Context())
}

// FromContext extracts the auth context, or nil
func FromContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(contextkeys.AuthKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// Package api contains the HTTP handlers mounted behind the admission
// pipeline: login, health, and the admin content endpoints.
package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/auth"
	"github.com/apexanalytical/labcms/pkg/errs"
	"github.com/apexanalytical/labcms/pkg/httputil"
)

// AuthHandlers serves the login endpoint
type AuthHandlers struct {
	users  auth.IdentityStore
	tokens *auth.TokenManager
	log    audit.Logger
	logger *logrus.Logger
}

// NewAuthHandlers creates the auth handlers
func NewAuthHandlers(users auth.IdentityStore, tokens *auth.TokenManager, log audit.Logger, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{users: users, tokens: tokens, log: log, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Login handles POST /api/auth/login. Invalid username and invalid
// password are indistinguishable to the client.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, r, errs.Validation("username and password are required", "body"))
		return
	}

	user, err := h.users.FindByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			h.failedLogin(w, r, req.Username)
			return
		}
		httputil.WriteError(w, r, errs.Internal(err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.failedLogin(w, r, req.Username)
		return
	}

	if !user.Active {
		h.log.SecurityEvent(audit.EventTypeAuthDisabledUser, r,
			"login rejected: user account disabled")
		httputil.WriteError(w, r, errs.Authentication("user account is disabled"))
		return
	}

	token, err := h.tokens.Sign(user)
	if err != nil {
		httputil.WriteError(w, r, errs.Internal(err))
		return
	}

	event := audit.BuildEvent(audit.EventTypeAuthSuccess, audit.EventStatusSuccess, r)
	event.UserID = user.ID
	event.Username = user.Username
	event.Role = string(user.Role)
	event.Message = "login succeeded"
	h.log.Log(event)

	httputil.WriteSuccess(w, loginResponse{Token: token, User: user})
}

func (h *AuthHandlers) failedLogin(w http.ResponseWriter, r *http.Request, username string) {
	event := audit.BuildEvent(audit.EventTypeAuthLoginFailed, audit.EventStatusFailure, r)
	event.Username = username
	event.Message = "login failed: invalid credentials"
	h.log.Log(event)

	httputil.WriteError(w, r, errs.Authentication("invalid username or password"))
}

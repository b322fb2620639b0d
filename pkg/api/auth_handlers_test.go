package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/auth"
)

// fakeUsers serves identities from a map, keyed by id
type fakeUsers struct {
	users map[int64]*auth.User
}

func (s *fakeUsers) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, auth.ErrUserNotFound
}

func (s *fakeUsers) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

const testSecret = "0123456789abcdef0123456789abcdef"

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return string(hash)
}

func newLoginFixture(t *testing.T) (*AuthHandlers, *fakeUsers, *auth.TokenManager) {
	t.Helper()
	users := &fakeUsers{users: map[int64]*auth.User{
		7: {ID: 7, Username: "mgarcia", PasswordHash: mustHash(t, "correct horse"),
			Role: auth.RoleAdmin, Active: true},
	}}
	tokens := auth.NewTokenManager(testSecret, 7*24*time.Hour)
	logger := logrus.New()
	logger.SetOutput(httptest.NewRecorder().Body)
	return NewAuthHandlers(users, tokens, audit.NopLogger{}, logger), users, tokens
}

func postLogin(h *AuthHandlers, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	h, _, tokens := newLoginFixture(t)

	rec := postLogin(h, `{"username":"mgarcia","password":"correct horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Token string     `json:"token"`
			User  *auth.User `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatal("token missing from login response")
	}

	claims, err := tokens.Verify(resp.Data.Token)
	if err != nil {
		t.Fatalf("issued token failed verification: %v", err)
	}
	if claims.UserID != 7 || claims.Role != auth.RoleAdmin {
		t.Errorf("claims = %+v, want id 7 role admin", claims)
	}
}

func TestLogin_ResponseOmitsPasswordHash(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	rec := postLogin(h, `{"username":"mgarcia","password":"correct horse"}`)
	if strings.Contains(rec.Body.String(), "$2a$") {
		t.Error("password hash leaked into the login response")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	rec := postLogin(h, `{"username":"mgarcia","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogin_UnknownUserSameResponse(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	wrongPassword := postLogin(h, `{"username":"mgarcia","password":"wrong"}`)
	unknownUser := postLogin(h, `{"username":"nobody","password":"wrong"}`)

	// Unknown username and wrong password must be indistinguishable.
	if wrongPassword.Code != unknownUser.Code {
		t.Errorf("status codes differ: %d vs %d", wrongPassword.Code, unknownUser.Code)
	}

	var a, b map[string]interface{}
	json.Unmarshal(wrongPassword.Body.Bytes(), &a)
	json.Unmarshal(unknownUser.Body.Bytes(), &b)
	if a["message"] != b["message"] {
		t.Errorf("messages differ: %q vs %q", a["message"], b["message"])
	}
}

func TestLogin_DisabledUser(t *testing.T) {
	h, users, _ := newLoginFixture(t)
	users.users[7].Active = false

	rec := postLogin(h, `{"username":"mgarcia","password":"correct horse"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	for _, body := range []string{`{}`, `{"username":"mgarcia"}`, `{"password":"x"}`} {
		rec := postLogin(h, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s status = %d, want 400", body, rec.Code)
		}
	}
}

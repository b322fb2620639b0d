package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the signed contents of a credential: subject identity id,
// the role at issuance, and the standard timestamps.
type Claims struct {
	UserID int64  `json:"id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// Token verification failure classes. The middleware distinguishes
// expiry from malformation in its error messages.
var (
	ErrTokenMalformed = errors.New("token malformed or signature invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenStale     = errors.New("token issued too long ago")
)

// TokenManager signs and verifies HS256 credentials
type TokenManager struct {
	secret []byte
	maxAge time.Duration
	// now is swappable for tests
	now func() time.Time
}

// NewTokenManager creates a token manager. The secret must already be
// validated by config (at least 32 characters).
func NewTokenManager(secret string, maxAge time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Sign issues a credential for the user with the role current at
// issuance embedded.
func (tm *TokenManager) Sign(user *User) (string, error) {
	now := tm.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry, then enforces the issuance
// age ceiling: a leaked long-lived token fails here even when its
// signature still validates.
func (tm *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.IssuedAt == nil {
		return nil, ErrTokenMalformed
	}
	if tm.now().Sub(claims.IssuedAt.Time) > tm.maxAge {
		return nil, ErrTokenStale
	}
	if !claims.Role.Valid() {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

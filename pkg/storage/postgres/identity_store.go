// Package postgres implements the persistence collaborators the
// pipeline and the admin handlers read from.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Postgres driver
	_ "github.com/lib/pq"

	"github.com/apexanalytical/labcms/pkg/auth"
)

// Open connects to Postgres and verifies the connection
func Open(url string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

// IdentityStore reads user identities. The pipeline only ever reads;
// identity mutation happens elsewhere.
type IdentityStore struct {
	db *sql.DB
}

// NewIdentityStore creates an identity store over db
func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// FindByID returns the user with the given id, or auth.ErrUserNotFound
func (s *IdentityStore) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, active, created_at
		 FROM users WHERE id = $1`, id))
}

// FindByUsername returns the user with the given username, or auth.ErrUserNotFound
func (s *IdentityStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, active, created_at
		 FROM users WHERE username = $1`, username))
}

func (s *IdentityStore) scanUser(row *sql.Row) (*auth.User, error) {
	var user auth.User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &user, nil
}

var _ auth.IdentityStore = (*IdentityStore)(nil)

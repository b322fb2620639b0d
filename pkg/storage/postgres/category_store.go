package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Category groups services on the public site
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryStore is the category repository behind the admin handlers
type CategoryStore struct {
	db *sql.DB
}

// NewCategoryStore creates a category store over db
func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// List returns all categories ordered by position
func (s *CategoryStore) List(ctx context.Context) ([]*Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, position, created_at, updated_at
		 FROM categories ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Position, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, &cat)
	}
	return categories, rows.Err()
}

// Get returns the category with the given id, or ErrNotFound
func (s *CategoryStore) Get(ctx context.Context, id int64) (*Category, error) {
	var cat Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, position, created_at, updated_at
		 FROM categories WHERE id = $1`, id).
		Scan(&cat.ID, &cat.Name, &cat.Position, &cat.CreatedAt, &cat.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return &cat, nil
}

// Create inserts a category and fills in its id and timestamps
func (s *CategoryStore) Create(ctx context.Context, cat *Category) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, position, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		cat.Name, cat.Position).
		Scan(&cat.ID, &cat.CreatedAt, &cat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating category: %w", err)
	}
	return nil
}

// Update rewrites a category's mutable fields
func (s *CategoryStore) Update(ctx context.Context, cat *Category) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = $1, position = $2, updated_at = NOW() WHERE id = $3`,
		cat.Name, cat.Position, cat.ID)
	if err != nil {
		return fmt.Errorf("updating category: %w", err)
	}
	return checkAffected(res)
}

// Delete removes a category. Services referencing it keep their
// category_id; referential cleanup is the schema's concern.
func (s *CategoryStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	return checkAffected(res)
}

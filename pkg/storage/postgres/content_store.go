package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Service is one published laboratory service entry
type Service struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CategoryID  int64     `json:"category_id"`
	ImagePath   string    `json:"image_path,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ErrNotFound is returned when no record exists for the given id
var ErrNotFound = errors.New("record not found")

// ServiceStore is the content repository behind the admin handlers
type ServiceStore struct {
	db *sql.DB
}

// NewServiceStore creates a service store over db
func NewServiceStore(db *sql.DB) *ServiceStore {
	return &ServiceStore{db: db}
}

// List returns all services ordered by position
func (s *ServiceStore) List(ctx context.Context) ([]*Service, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, category_id, COALESCE(image_path, ''), position, created_at, updated_at
		 FROM services ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	defer rows.Close()

	var services []*Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.CategoryID,
			&svc.ImagePath, &svc.Position, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning service: %w", err)
		}
		services = append(services, &svc)
	}
	return services, rows.Err()
}

// Get returns the service with the given id, or ErrNotFound
func (s *ServiceStore) Get(ctx context.Context, id int64) (*Service, error) {
	var svc Service
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, category_id, COALESCE(image_path, ''), position, created_at, updated_at
		 FROM services WHERE id = $1`, id).
		Scan(&svc.ID, &svc.Name, &svc.Description, &svc.CategoryID,
			&svc.ImagePath, &svc.Position, &svc.CreatedAt, &svc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting service: %w", err)
	}
	return &svc, nil
}

// Create inserts a service and fills in its id and timestamps
func (s *ServiceStore) Create(ctx context.Context, svc *Service) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO services (name, description, category_id, image_path, position, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		svc.Name, svc.Description, svc.CategoryID, svc.ImagePath, svc.Position).
		Scan(&svc.ID, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	return nil
}

// Update rewrites a service's mutable fields
func (s *ServiceStore) Update(ctx context.Context, svc *Service) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE services SET name = $1, description = $2, category_id = $3,
		 image_path = NULLIF($4, ''), position = $5, updated_at = NOW()
		 WHERE id = $6`,
		svc.Name, svc.Description, svc.CategoryID, svc.ImagePath, svc.Position, svc.ID)
	if err != nil {
		return fmt.Errorf("updating service: %w", err)
	}
	return checkAffected(res)
}

// Delete removes a service
func (s *ServiceStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting service: %w", err)
	}
	return checkAffected(res)
}

// Reorder sets the position of each listed service in one transaction
func (s *ServiceStore) Reorder(ctx context.Context, orderedIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting reorder: %w", err)
	}
	defer tx.Rollback()

	for position, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE services SET position = $1, updated_at = NOW() WHERE id = $2`,
			position, id); err != nil {
			return fmt.Errorf("reordering service %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func checkAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Package postgres implements the item store on PostgreSQL. Attribute
// payloads are stored as JSONB; listing order follows creation time with the
// identifier as a tiebreaker.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
	"github.com/itemgrid/itemgrid/internal/app/storage"
)

// Store implements storage.ItemStore backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.ItemStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateItem(ctx context.Context, it item.Item) (item.Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now

	attributesJSON, err := json.Marshal(it.Attributes)
	if err != nil {
		return item.Item{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_items (id, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, it.ID, attributesJSON, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return item.Item{}, fmt.Errorf("item %s: %w", it.ID, storage.ErrExists)
		}
		return item.Item{}, err
	}
	return it, nil
}

func (s *Store) UpdateItem(ctx context.Context, it item.Item) (item.Item, error) {
	existing, err := s.GetItem(ctx, it.ID)
	if err != nil {
		return item.Item{}, err
	}

	it.CreatedAt = existing.CreatedAt
	it.UpdatedAt = time.Now().UTC()

	attributesJSON, err := json.Marshal(it.Attributes)
	if err != nil {
		return item.Item{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_items
		SET attributes = $2, updated_at = $3
		WHERE id = $1
	`, it.ID, attributesJSON, it.UpdatedAt)
	if err != nil {
		return item.Item{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return item.Item{}, fmt.Errorf("item %s: %w", it.ID, storage.ErrNotFound)
	}
	return it, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (item.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, attributes, created_at, updated_at
		FROM app_items
		WHERE id = $1
	`, id)

	it, err := scanItem(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return item.Item{}, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
		}
		return item.Item{}, err
	}
	return it, nil
}

func (s *Store) ListItems(ctx context.Context) ([]item.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attributes, created_at, updated_at
		FROM app_items
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []item.Item
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM app_items WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func scanItem(scan func(dest ...any) error) (item.Item, error) {
	var (
		it            item.Item
		attributesRaw []byte
	)
	if err := scan(&it.ID, &attributesRaw, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return item.Item{}, err
	}
	if len(attributesRaw) > 0 {
		if err := json.Unmarshal(attributesRaw, &it.Attributes); err != nil {
			return item.Item{}, fmt.Errorf("decode attributes for item %s: %w", it.ID, err)
		}
	}
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return it, nil
}

// isUniqueViolation reports whether err is a primary key collision
// (PostgreSQL error class 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mediagateway/internal/model"
	"mediagateway/internal/repository"
)

// PolicyPostgres is a PostgreSQL implementation of repository.PolicyResolver.
// It uses database/sql with parameterized queries and contains no business logic.
type PolicyPostgres struct {
	db *sql.DB
}

// NewPolicyPostgres creates a new PolicyPostgres repository.
func NewPolicyPostgres(db *sql.DB) *PolicyPostgres {
	return &PolicyPostgres{db: db}
}

var _ repository.PolicyResolver = (*PolicyPostgres)(nil)

// IsNoRowsError reports whether err means the queried row does not exist.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, repository.ErrRecordNotFound) ||
		errors.Is(err, repository.ErrPolicyNotFound)
}

// Resolve fetches the media record for a logical ID.
func (r *PolicyPostgres) Resolve(ctx context.Context, recordID string) (*model.MediaRecord, error) {
	const q = `
		SELECT id, owner_id, category, storage_key
		FROM media_records
		WHERE id = $1
	`
	var (
		rec      model.MediaRecord
		category string
	)
	err := r.db.QueryRowContext(ctx, q, recordID).Scan(
		&rec.ID,
		&rec.OwnerID,
		&category,
		&rec.StorageKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrRecordNotFound
		}
		return nil, err
	}

	c, ok := model.ParseCategory(category)
	if !ok {
		return nil, fmt.Errorf("record %s has unknown category %q", rec.ID, category)
	}
	rec.Category = c
	return &rec, nil
}

// GetLimits loads the size limit and content type allow-list for a category.
func (r *PolicyPostgres) GetLimits(ctx context.Context, category model.Category) (*model.CategoryPolicy, error) {
	const q = `
		SELECT p.max_size_bytes, t.content_type
		FROM category_policies p
		LEFT JOIN category_content_types t ON t.category = p.category
		WHERE p.category = $1
		ORDER BY t.content_type
	`
	rows, err := r.db.QueryContext(ctx, q, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		found   bool
		maxSize int64
		types   []string
	)
	for rows.Next() {
		var ct sql.NullString
		if err := rows.Scan(&maxSize, &ct); err != nil {
			return nil, err
		}
		found = true
		if ct.Valid {
			types = append(types, ct.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, repository.ErrPolicyNotFound
	}
	return model.NewCategoryPolicy(category, maxSize, types...), nil
}

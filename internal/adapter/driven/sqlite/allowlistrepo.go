package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/originguard/internal/domain/model"
	"github.com/ericfisherdev/originguard/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AllowListStore = (*AllowListRepo)(nil)

const entryColumns = `id, origin, added_by, updated_by, created_at, updated_at`

// AllowListRepo is the SQLite implementation of the AllowListStore port interface.
type AllowListRepo struct {
	db  *DB
	now func() time.Time
}

// NewAllowListRepo creates a new AllowListRepo backed by the given DB.
func NewAllowListRepo(db *DB) *AllowListRepo {
	return &AllowListRepo{db: db, now: time.Now}
}

// List returns all entries, newest first.
func (r *AllowListRepo) List(ctx context.Context) ([]model.Entry, error) {
	const query = `SELECT ` + entryColumns + ` FROM allowlist_entries ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list allow-list entries: %w", err)
	}
	defer rows.Close()

	entries := []model.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan allow-list entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allow-list entries: %w", err)
	}

	return entries, nil
}

// Add inserts a new origin. Returns ErrConflict if the origin already exists.
// Add is not an upsert.
func (r *AllowListRepo) Add(ctx context.Context, origin, addedBy string) (model.Entry, error) {
	const query = `INSERT INTO allowlist_entries (origin, added_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) RETURNING ` + entryColumns

	now := formatTime(r.now())
	entry, err := scanEntry(r.db.Writer.QueryRowContext(ctx, query, origin, addedBy, addedBy, now, now))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Entry{}, fmt.Errorf("add origin %s: %w", origin, driven.ErrConflict)
		}
		return model.Entry{}, fmt.Errorf("add origin %s: %w", origin, err)
	}

	return *entry, nil
}

// Update replaces oldOrigin with newOrigin, keeping the entry's creation
// time. Returns ErrNotFound if oldOrigin does not exist and ErrConflict if
// newOrigin is already held by another entry.
func (r *AllowListRepo) Update(ctx context.Context, oldOrigin, newOrigin, updatedBy string) (model.Entry, error) {
	const query = `UPDATE allowlist_entries SET origin = ?, updated_by = ?, updated_at = ?
		WHERE origin = ? RETURNING ` + entryColumns

	entry, err := scanEntry(r.db.Writer.QueryRowContext(ctx, query, newOrigin, updatedBy, formatTime(r.now()), oldOrigin))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, fmt.Errorf("update origin %s: %w", oldOrigin, driven.ErrNotFound)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return model.Entry{}, fmt.Errorf("update origin %s to %s: %w", oldOrigin, newOrigin, driven.ErrConflict)
		}
		return model.Entry{}, fmt.Errorf("update origin %s: %w", oldOrigin, err)
	}

	return *entry, nil
}

// Remove deletes an origin and returns the removed entry. Returns ErrNotFound
// if the origin does not exist.
func (r *AllowListRepo) Remove(ctx context.Context, origin string) (model.Entry, error) {
	const query = `DELETE FROM allowlist_entries WHERE origin = ? RETURNING ` + entryColumns

	entry, err := scanEntry(r.db.Writer.QueryRowContext(ctx, query, origin))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, fmt.Errorf("remove origin %s: %w", origin, driven.ErrNotFound)
	}
	if err != nil {
		return model.Entry{}, fmt.Errorf("remove origin %s: %w", origin, err)
	}

	return *entry, nil
}

// Ping checks that the reader connection is usable.
func (r *AllowListRepo) Ping(ctx context.Context) error {
	if err := r.db.Reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*model.Entry, error) {
	var entry model.Entry
	var createdAt, updatedAt string

	err := s.Scan(&entry.ID, &entry.Origin, &entry.AddedBy, &entry.UpdatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	entry.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	entry.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &entry, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
)

// ReferenceRepository stores enumeration members (type code → description).
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository creates a new reference repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// Upsert inserts or overwrites one entry.
func (r *ReferenceRepository) Upsert(ctx context.Context, entry domain.ReferenceEntry) error {
	query := r.db.Rebind(`INSERT INTO metasys_enums (id, description, enumset) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET description = excluded.description, enumset = excluded.enumset`)

	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.Description, entry.EnumSet); err != nil {
		return fmt.Errorf("failed to upsert reference entry %d: %w", entry.ID, err)
	}
	return nil
}

// Get returns the entry for a type code.
func (r *ReferenceRepository) Get(ctx context.Context, id int64) (*domain.ReferenceEntry, error) {
	query := r.db.Rebind(`SELECT id, description, enumset FROM metasys_enums WHERE id = ?`)

	var entry domain.ReferenceEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reference entry %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get reference entry %d: %w", id, err)
	}
	return &entry, nil
}

// CountByEnumSet returns how many entries each enumeration set contributed.
func (r *ReferenceRepository) CountByEnumSet(ctx context.Context) (map[int64]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT enumset, COUNT(*) FROM metasys_enums GROUP BY enumset ORDER BY enumset`)
	if err != nil {
		return nil, fmt.Errorf("failed to count reference entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]int)
	for rows.Next() {
		var (
			enumset int64
			n       int
		)
		if scanErr := rows.Scan(&enumset, &n); scanErr != nil {
			return nil, fmt.Errorf("failed to scan reference count: %w", scanErr)
		}
		out[enumset] = n
	}
	return out, rows.Err()
}

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
)

const (
	objectsTable        = "metasys_objects"
	networkDevicesTable = "metasys_network_devices"
)

// recordColumns are shared by both entity tables.
const recordColumns = `id, parent_id, name, item_reference, discovered, last_crawl, last_error,
	last_sync, successes, errors, response`

// NoiseMarkers exclude programming, trend and alarm objects from enrichment.
var NoiseMarkers = []string{"Programming", "Trend", "Alarm"}

func tableFor(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindObject:
		return objectsTable, nil
	case domain.KindNetworkDevice:
		return networkDevicesTable, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}
}

func selectColumns(kind domain.Kind) string {
	if kind == domain.KindObject {
		return recordColumns + ", type"
	}
	return recordColumns
}

// EnrichFilter narrows the enrichment working set.
type EnrichFilter struct {
	Prefix           string
	OnlyUnsuccessful bool
}

// PublishFilter narrows the publish selection.
type PublishFilter struct {
	Prefix string
	// Buildings limits the selection to item references of these building codes.
	Buildings []string
	// PendingOnly selects objects crawled since their last sync.
	PendingOnly bool
}

// EntityRepository stores discovered objects and network devices.
type EntityRepository struct {
	db *sqlx.DB
}

// NewEntityRepository creates a new entity repository.
func NewEntityRepository(db *sqlx.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// InsertDiscovered inserts the items of one listing page in a single transaction.
// Rows that already exist are left untouched. It returns the ids actually inserted.
func (r *EntityRepository) InsertDiscovered(
	ctx context.Context, kind domain.Kind, items []domain.Discovered, at time.Time,
) ([]string, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var query string
	if kind == domain.KindObject {
		query = `INSERT INTO ` + table + ` (id, parent_id, name, item_reference, discovered, type)
			VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`
	} else {
		query = `INSERT INTO ` + table + ` (id, parent_id, name, item_reference, discovered)
			VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`
	}
	query = r.db.Rebind(query)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := make([]string, 0, len(items))
	for _, item := range items {
		args := []any{item.ID, item.ParentID, item.Name, item.ItemReference, at.UTC()}
		if kind == domain.KindObject {
			args = append(args, item.Type)
		}

		res, execErr := tx.ExecContext(ctx, query, args...)
		if execErr != nil {
			return nil, fmt.Errorf("failed to insert %s %s: %w", kind, item.ID, execErr)
		}
		n, affErr := res.RowsAffected()
		if affErr != nil {
			return nil, fmt.Errorf("failed to read rows affected: %w", affErr)
		}
		if n > 0 {
			inserted = append(inserted, item.ID)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit discovered page: %w", err)
	}
	return inserted, nil
}

// ListEnrichable returns the rows eligible for a deep fetch, ordered by item reference.
func (r *EntityRepository) ListEnrichable(
	ctx context.Context, kind domain.Kind, filter EnrichFilter,
) ([]domain.Enrichable, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.Prefix != "" {
		where = append(where, `item_reference LIKE ? ESCAPE '\'`)
		args = append(args, likePrefix(filter.Prefix))
	}
	for _, marker := range NoiseMarkers {
		where = append(where, `item_reference NOT LIKE ? ESCAPE '\'`, `name NOT LIKE ? ESCAPE '\'`)
		args = append(args, likeContains(marker), likeContains(marker))
	}
	if filter.OnlyUnsuccessful {
		where = append(where, `successes = 0`)
	}

	query := r.db.Rebind(`SELECT ` + selectColumns(kind) + ` FROM ` + table +
		` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY item_reference, id`)

	if kind == domain.KindObject {
		var rows []*domain.Object
		if err = r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("failed to list enrichable objects: %w", err)
		}
		out := make([]domain.Enrichable, len(rows))
		for i, row := range rows {
			out[i] = row
		}
		return out, nil
	}

	var rows []*domain.NetworkDevice
	if err = r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list enrichable network devices: %w", err)
	}
	out := make([]domain.Enrichable, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out, nil
}

// RecordSuccess stores a successful deep fetch: last_crawl, successes+1 and the payload.
func (r *EntityRepository) RecordSuccess(
	ctx context.Context, kind domain.Kind, id string, at time.Time, payload string,
) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`UPDATE ` + table + `
		SET last_crawl = ?, successes = successes + 1, response = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, at.UTC(), payload, id)
	return execRequireRows(result, err, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound))
}

// RecordFailure stores a failed deep fetch: last_error and errors+1.
func (r *EntityRepository) RecordFailure(ctx context.Context, kind domain.Kind, id string, at time.Time) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`UPDATE ` + table + `
		SET last_error = ?, errors = errors + 1
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, at.UTC(), id)
	return execRequireRows(result, err, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound))
}

// ListPublishable returns objects matching filter. Rows without a successful crawl
// are returned too; the publisher decides what to skip.
func (r *EntityRepository) ListPublishable(ctx context.Context, filter PublishFilter) ([]*domain.Object, error) {
	var (
		where []string
		args  []any
	)
	if filter.Prefix != "" {
		where = append(where, `item_reference LIKE ? ESCAPE '\'`)
		args = append(args, likePrefix(filter.Prefix))
	}
	if len(filter.Buildings) > 0 {
		ors := make([]string, len(filter.Buildings))
		for i, b := range filter.Buildings {
			ors[i] = `item_reference LIKE ? ESCAPE '\'`
			args = append(args, likeContains(":"+b+"-"))
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if filter.PendingOnly {
		where = append(where, `last_crawl IS NOT NULL AND (last_sync IS NULL OR last_sync < last_crawl)`)
	}

	query := `SELECT ` + selectColumns(domain.KindObject) + ` FROM ` + objectsTable
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query = r.db.Rebind(query + ` ORDER BY item_reference, id`)

	var rows []*domain.Object
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list publishable objects: %w", err)
	}
	if rows == nil {
		rows = []*domain.Object{}
	}
	return rows, nil
}

// MarkSynced sets last_sync for an object.
func (r *EntityRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	query := r.db.Rebind(`UPDATE ` + objectsTable + ` SET last_sync = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, at.UTC(), id)
	return execRequireRows(result, err, fmt.Errorf("object %s: %w", id, ErrNotFound))
}

// Flush deletes every object and network device. Reference entries are kept.
func (r *EntityRepository) Flush(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, table := range []string{objectsTable, networkDevicesTable} {
		res, execErr := tx.ExecContext(ctx, `DELETE FROM `+table)
		if execErr != nil {
			return 0, fmt.Errorf("failed to flush %s: %w", table, execErr)
		}
		n, affErr := res.RowsAffected()
		if affErr != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", affErr)
		}
		total += n
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit flush: %w", err)
	}
	return total, nil
}

// Summary counts rows per crawl state for one kind.
type Summary struct {
	Total    int `db:"total"`
	Crawled  int `db:"crawled"`
	Failed   int `db:"failed"`
	Synced   int `db:"synced"`
	Pending  int `db:"pending"`
	Untested int `db:"untested"`
}

// Summarize returns crawl state counts for kind.
func (r *EntityRepository) Summarize(ctx context.Context, kind domain.Kind) (*Summary, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := `SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN successes > 0 THEN 1 ELSE 0 END), 0) AS crawled,
		COALESCE(SUM(CASE WHEN successes = 0 AND errors > 0 THEN 1 ELSE 0 END), 0) AS failed,
		COALESCE(SUM(CASE WHEN last_sync IS NOT NULL THEN 1 ELSE 0 END), 0) AS synced,
		COALESCE(SUM(CASE WHEN last_crawl IS NOT NULL AND (last_sync IS NULL OR last_sync < last_crawl)
			THEN 1 ELSE 0 END), 0) AS pending,
		COALESCE(SUM(CASE WHEN successes = 0 AND errors = 0 THEN 1 ELSE 0 END), 0) AS untested
		FROM ` + table

	var s Summary
	if err = r.db.GetContext(ctx, &s, query); err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", kind, err)
	}
	return &s, nil
}

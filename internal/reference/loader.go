// Package reference loads Metasys enumeration sets into the reference table.
package reference

import (
	"context"
	"fmt"
	"time"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metasys"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/pace"
)

// Source reads enumeration members.
type Source interface {
	ListEnumSetMembers(ctx context.Context, enumSetID int64, page, pageSize int) (*metasys.EnumPage, error)
}

// Store upserts reference entries. Each call is its own commit.
type Store interface {
	Upsert(ctx context.Context, entry domain.ReferenceEntry) error
}

// Result summarizes a load.
type Result struct {
	Pages  int
	Stored int
}

// Loader copies one enumeration set at a time.
type Loader struct {
	source  Source
	store   Store
	log     logger.Logger
	metrics *metrics.Pipeline
	sleep   pace.Sleeper
}

// Option configures a Loader.
type Option func(*Loader)

// WithMetrics counts stored entries on p.
func WithMetrics(p *metrics.Pipeline) Option {
	return func(l *Loader) { l.metrics = p }
}

// WithSleeper replaces the delay between pages.
func WithSleeper(s pace.Sleeper) Option {
	return func(l *Loader) { l.sleep = s }
}

// NewLoader creates a Loader.
func NewLoader(source Source, store Store, log logger.Logger, opts ...Option) *Loader {
	l := &Loader{
		source: source,
		store:  store,
		log:    log.With(logger.Component("reference")),
		sleep:  pace.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadReferenceSet pages through the members of enumSetID and upserts each one.
// The first failing page or store write aborts the load.
func (l *Loader) LoadReferenceSet(ctx context.Context, enumSetID int64, pageSize int, delay time.Duration) (*Result, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	log := l.log.With(logger.Int64("enumset", enumSetID))

	res := &Result{}
	for page := 1; ; page++ {
		p, err := l.source.ListEnumSetMembers(ctx, enumSetID, page, pageSize)
		if err != nil {
			return res, err
		}
		res.Pages++

		for _, member := range p.Items {
			entry := domain.ReferenceEntry{ID: member.ID, Description: member.Description, EnumSet: enumSetID}
			if err = l.store.Upsert(ctx, entry); err != nil {
				return res, fmt.Errorf("store reference entry %d: %w", member.ID, err)
			}
			res.Stored++
			l.metrics.Reference()
			log.Info("reference entry stored",
				logger.Int64("id", member.ID),
				logger.String("description", member.Description),
			)
		}

		if !p.HasNext() {
			break
		}
		if err = l.sleep(ctx, delay); err != nil {
			return res, err
		}
	}

	log.Info("Reference set loaded", logger.Int("pages", res.Pages), logger.Int("stored", res.Stored))
	return res, nil
}

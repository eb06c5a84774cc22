// Package enrichment fetches the detail payload of each selected entity and
// records the outcome one entity at a time.
package enrichment

import (
	"context"
	"fmt"
	"time"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/database"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/pace"
)

// Source fetches a detail payload.
type Source interface {
	GetObject(ctx context.Context, id string) ([]byte, error)
}

// Store selects entities and records outcomes.
type Store interface {
	ListEnrichable(ctx context.Context, kind domain.Kind, filter database.EnrichFilter) ([]domain.Enrichable, error)
	RecordSuccess(ctx context.Context, kind domain.Kind, id string, at time.Time, payload string) error
	RecordFailure(ctx context.Context, kind domain.Kind, id string, at time.Time) error
}

// Options selects the working set.
type Options struct {
	Kind   domain.Kind
	Prefix string
	// OnlyUnsuccessful restricts the walk to entities that never succeeded.
	// Entities that failed after an earlier success are only revisited by a refresh run.
	OnlyUnsuccessful bool
	ItemDelay        time.Duration
}

// Result summarizes an enrichment run.
type Result struct {
	Selected  int
	Succeeded int
	Failed    int
}

// Walker runs enrichment.
type Walker struct {
	source  Source
	store   Store
	log     logger.Logger
	metrics *metrics.Pipeline
	sleep   pace.Sleeper
	now     func() time.Time
}

// Option configures a Walker.
type Option func(*Walker)

// WithMetrics records outcomes on p.
func WithMetrics(p *metrics.Pipeline) Option {
	return func(w *Walker) { w.metrics = p }
}

// WithSleeper replaces the delay between entities.
func WithSleeper(s pace.Sleeper) Option {
	return func(w *Walker) { w.sleep = s }
}

// WithClock overrides the outcome timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Walker) { w.now = now }
}

// NewWalker creates an enrichment walker.
func NewWalker(source Source, store Store, log logger.Logger, opts ...Option) *Walker {
	w := &Walker{
		source: source,
		store:  store,
		log:    log.With(logger.Component("enrichment")),
		sleep:  pace.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enrich deep-fetches every selected entity in order. Fetch and validation failures
// are recorded and the walk continues; only store failures and cancellation abort it.
func (w *Walker) Enrich(ctx context.Context, opts Options) (*Result, error) {
	log := w.log.With(logger.String("kind", string(opts.Kind)))

	selected, err := w.store.ListEnrichable(ctx, opts.Kind, database.EnrichFilter{
		Prefix:           opts.Prefix,
		OnlyUnsuccessful: opts.OnlyUnsuccessful,
	})
	if err != nil {
		return nil, fmt.Errorf("select entities: %w", err)
	}

	res := &Result{Selected: len(selected)}
	log.Info("Starting enrichment",
		logger.Int("selected", len(selected)),
		logger.String("prefix", opts.Prefix),
		logger.Bool("only_unsuccessful", opts.OnlyUnsuccessful),
	)

	for i, entity := range selected {
		if i > 0 {
			if err = w.sleep(ctx, opts.ItemDelay); err != nil {
				return res, err
			}
		}

		ok, enrichErr := w.enrichOne(ctx, log, opts.Kind, entity)
		if enrichErr != nil {
			return res, enrichErr
		}
		if ok {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	log.Info("Enrichment finished",
		logger.Int("selected", res.Selected),
		logger.Int("succeeded", res.Succeeded),
		logger.Int("failed", res.Failed),
	)
	return res, nil
}

// enrichOne returns whether the fetch succeeded. A non-nil error means the outcome
// could not be stored.
func (w *Walker) enrichOne(ctx context.Context, log logger.Logger, kind domain.Kind, entity domain.Enrichable) (bool, error) {
	id := entity.Key()
	payload, fetchErr := w.source.GetObject(ctx, id)
	if fetchErr == nil {
		fetchErr = Validate(payload)
	}

	// Cancellation is not the entity's fault.
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	at := w.now()
	if fetchErr != nil {
		if err := w.store.RecordFailure(ctx, kind, id, at); err != nil {
			return false, fmt.Errorf("record failure for %s: %w", id, err)
		}
		entity.RecordFailure(at)
		w.metrics.Enriched(string(kind), false)
		log.Error("entity enrichment failed",
			logger.EntityID(id),
			logger.String("name", entity.DisplayName()),
			logger.String("item_reference", entity.Reference()),
			logger.Int("attempts", entity.Attempts()),
			logger.Error(fetchErr),
		)
		return false, nil
	}

	body := string(payload)
	if err := w.store.RecordSuccess(ctx, kind, id, at, body); err != nil {
		return false, fmt.Errorf("record success for %s: %w", id, err)
	}
	entity.RecordSuccess(at, body)
	w.metrics.Enriched(string(kind), true)
	log.Info("entity enriched",
		logger.EntityID(id),
		logger.String("item_reference", entity.Reference()),
		logger.Int("successes", entity.SuccessCount()),
	)
	return true, nil
}

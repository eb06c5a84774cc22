// Package publisher sends enriched objects to the BAS metadata sink.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/bas"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/buildingmap"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/database"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
)

//go:generate mockgen -destination=mocks/sink.go -package=mocks github.com/entraeiendom/entraos-metasys-crawler-cli/internal/publisher Sink

// Sink receives records for one real estate.
type Sink interface {
	Send(ctx context.Context, realEstate string, rec *bas.Record) error
}

// Store selects objects and records sync times.
type Store interface {
	ListPublishable(ctx context.Context, filter database.PublishFilter) ([]*domain.Object, error)
	MarkSynced(ctx context.Context, id string, at time.Time) error
}

// Options selects what to publish. With neither field set only objects crawled
// since their last sync are published.
type Options struct {
	Prefix     string
	RealEstate string
}

// Result summarizes a publish run.
type Result struct {
	Selected  int
	Published int
	Skipped   int
}

// Publisher runs the publish step.
type Publisher struct {
	store     Store
	types     *TypeCache
	sink      Sink
	buildings buildingmap.Map
	strict    bool
	tracker   metrics.SyncTracker
	metrics   *metrics.Pipeline
	log       logger.Logger
	now       func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithStrictBuildings makes unmapped buildings fatal instead of resolving to buildingmap.Unknown.
func WithStrictBuildings(strict bool) Option {
	return func(p *Publisher) { p.strict = strict }
}

// WithBuildingMap replaces the canonical building map.
func WithBuildingMap(m buildingmap.Map) Option {
	return func(p *Publisher) { p.buildings = m }
}

// WithTracker records per real estate statistics.
func WithTracker(t metrics.SyncTracker) Option {
	return func(p *Publisher) { p.tracker = t }
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithClock overrides the sync timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// New creates a Publisher.
func New(store Store, types *TypeCache, sink Sink, log logger.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		store:     store,
		types:     types,
		sink:      sink,
		buildings: buildingmap.Canonical,
		tracker:   metrics.NopTracker{},
		log:       log.With(logger.Component("publisher")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends every selected object. Source payloads carrying an error message
// are skipped; any other failure stops the run at that object.
func (p *Publisher) Publish(ctx context.Context, opts Options) (*Result, error) {
	filter := database.PublishFilter{
		Prefix:      opts.Prefix,
		PendingOnly: opts.Prefix == "" && opts.RealEstate == "",
	}
	if opts.RealEstate != "" {
		filter.Buildings = p.buildings.BuildingsFor(opts.RealEstate)
		if len(filter.Buildings) == 0 {
			return nil, fmt.Errorf("no buildings are mapped to real estate %q", opts.RealEstate)
		}
	}

	objects, err := p.store.ListPublishable(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("select objects: %w", err)
	}

	res := &Result{Selected: len(objects)}
	p.log.Info("Starting publish",
		logger.Int("selected", len(objects)),
		logger.String("prefix", opts.Prefix),
		logger.String("real_estate", opts.RealEstate),
		logger.Bool("pending_only", filter.PendingOnly),
	)

	for _, obj := range objects {
		published, pubErr := p.publishOne(ctx, obj, opts.RealEstate)
		if pubErr != nil {
			return res, pubErr
		}
		if published {
			res.Published++
		} else {
			res.Skipped++
		}
	}

	if err = p.tracker.UpdateLastSync(ctx, p.now()); err != nil {
		p.log.Warn("Could not store last sync time", logger.Error(err))
	}

	p.log.Info("Publish finished",
		logger.Int("selected", res.Selected),
		logger.Int("published", res.Published),
		logger.Int("skipped", res.Skipped),
	)
	return res, nil
}

// publishOne returns whether obj was sent. An error is fatal for the run.
func (p *Publisher) publishOne(ctx context.Context, obj *domain.Object, onlyRealEstate string) (bool, error) {
	log := p.log.With(logger.EntityID(obj.ID), logger.String("item_reference", obj.ItemReference))

	if obj.Successes == 0 || obj.Response == nil {
		p.skip(ctx, log, "", "not crawled")
		return false, nil
	}

	item, err := parsePayload(*obj.Response)
	if errors.Is(err, errSourceMessage) {
		re, _ := p.buildings.RealEstateFor(obj.ItemReference, false)
		log.Warn("Stored payload is an error message", logger.Error(err))
		p.skip(ctx, log, re, "source error message")
		return false, nil
	}
	if err != nil {
		return false, p.fail(ctx, log, "", fmt.Errorf("object %s: %w", obj.ID, err))
	}

	realEstate, err := p.buildings.RealEstateFor(obj.ItemReference, p.strict)
	if err != nil {
		return false, p.fail(ctx, log, "", fmt.Errorf("object %s: %w", obj.ID, err))
	}
	if onlyRealEstate != "" && realEstate != onlyRealEstate {
		log.Debug("Object belongs to another real estate", logger.String("real_estate", realEstate))
		return false, nil
	}

	typeDescription, err := p.types.Lookup(ctx, int64(obj.Type))
	if err != nil {
		return false, fmt.Errorf("object %s: %w", obj.ID, err)
	}

	rec, err := buildRecord(obj, realEstate, typeDescription, item)
	if err != nil {
		return false, p.fail(ctx, log, realEstate, err)
	}

	if err = p.sink.Send(ctx, realEstate, rec); err != nil {
		return false, p.fail(ctx, log, realEstate, err)
	}

	if err = p.store.MarkSynced(ctx, obj.ID, p.now()); err != nil {
		return false, fmt.Errorf("mark %s synced: %w", obj.ID, err)
	}

	p.metrics.Record(metrics.OutcomePublished)
	p.track(ctx, metrics.OutcomePublished, realEstate)
	log.Info("record published", logger.String("real_estate", realEstate))
	return true, nil
}

func (p *Publisher) skip(ctx context.Context, log logger.Logger, realEstate, reason string) {
	p.metrics.Record(metrics.OutcomeSkipped)
	if realEstate != "" {
		p.track(ctx, metrics.OutcomeSkipped, realEstate)
	}
	log.Info("record skipped", logger.String("reason", reason))
}

func (p *Publisher) fail(ctx context.Context, log logger.Logger, realEstate string, err error) error {
	p.metrics.Record(metrics.OutcomeError)
	if realEstate != "" {
		p.track(ctx, metrics.OutcomeError, realEstate)
	}
	log.Error("Publish aborted", logger.Error(err))
	return err
}

// track is best effort; statistics never fail a publish.
func (p *Publisher) track(ctx context.Context, outcome, realEstate string) {
	_ = p.tracker.Increment(ctx, outcome, realEstate)
}

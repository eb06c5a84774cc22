// Package discovery pages through the Metasys listings and records every entity
// not seen before.
package discovery

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

// Lister reads listing pages from the source API.
type Lister interface {
	ListObjects(ctx context.Context, page, objectType, pageSize int) (*metasys.Page, error)
	ListNetworkDevices(ctx context.Context, page, pageSize int) (*metasys.Page, error)
}

// Store persists discovered entities.
type Store interface {
	InsertDiscovered(ctx context.Context, kind domain.Kind, items []domain.Discovered, at time.Time) ([]string, error)
}

// Options selects what to discover.
type Options struct {
	Kind domain.Kind
	// Type is the object type code; ignored for network devices.
	Type      int
	PageSize  int
	PageDelay time.Duration
}

// Result summarizes a discovery run.
type Result struct {
	Pages    int
	Seen     int
	Inserted int
}

// Walker runs discovery.
type Walker struct {
	lister  Lister
	store   Store
	log     logger.Logger
	metrics *metrics.Pipeline
	sleep   pace.Sleeper
	now     func() time.Time
}

// Option configures a Walker.
type Option func(*Walker)

// WithMetrics records pages and inserts on p.
func WithMetrics(p *metrics.Pipeline) Option {
	return func(w *Walker) { w.metrics = p }
}

// WithSleeper replaces the delay between pages.
func WithSleeper(s pace.Sleeper) Option {
	return func(w *Walker) { w.sleep = s }
}

// WithClock overrides the discovered timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Walker) { w.now = now }
}

// NewWalker creates a discovery walker.
func NewWalker(lister Lister, store Store, log logger.Logger, opts ...Option) *Walker {
	w := &Walker{
		lister: lister,
		store:  store,
		log:    log.With(logger.Component("discovery")),
		sleep:  pace.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Discover fetches pages starting at 1 until the listing has no next page. Every
// error aborts the run; pages already committed stay committed.
func (w *Walker) Discover(ctx context.Context, opts Options) (*Result, error) {
	if opts.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", opts.PageSize)
	}

	log := w.log.With(logger.String("kind", string(opts.Kind)))
	if opts.Kind == domain.KindObject {
		log = log.With(logger.Int("type", opts.Type))
	}

	res := &Result{}
	for page := 1; ; page++ {
		p, err := w.fetch(ctx, opts, page)
		if err != nil {
			return res, err
		}
		res.Pages++
		res.Seen += len(p.Items)
		w.metrics.PageFetched(string(opts.Kind), len(p.Items))

		inserted, err := w.store.InsertDiscovered(ctx, opts.Kind, toDiscovered(p.Items, opts), w.now())
		if err != nil {
			return res, fmt.Errorf("store page %d: %w", page, err)
		}
		res.Inserted += len(inserted)
		w.metrics.Inserted(string(opts.Kind), len(inserted))
		logPage(log, p.Items, inserted)

		if !p.HasNext() {
			break
		}
		if err = w.sleep(ctx, opts.PageDelay); err != nil {
			return res, err
		}
	}

	log.Info("Discovery finished",
		logger.Int("pages", res.Pages),
		logger.Int("seen", res.Seen),
		logger.Int("inserted", res.Inserted),
	)
	return res, nil
}

func (w *Walker) fetch(ctx context.Context, opts Options, page int) (*metasys.Page, error) {
	switch opts.Kind {
	case domain.KindObject:
		return w.lister.ListObjects(ctx, page, opts.Type, opts.PageSize)
	case domain.KindNetworkDevice:
		return w.lister.ListNetworkDevices(ctx, page, opts.PageSize)
	default:
		return nil, fmt.Errorf("cannot discover kind %q", opts.Kind)
	}
}

func toDiscovered(items []metasys.ListItem, opts Options) []domain.Discovered {
	out := make([]domain.Discovered, len(items))
	for i, item := range items {
		out[i] = domain.Discovered{
			ID:            item.ID,
			ParentID:      item.ParentID(),
			Name:          item.Name,
			ItemReference: item.ItemReference,
		}
		if opts.Kind == domain.KindObject {
			out[i].Type = opts.Type
		}
	}
	return out
}

func logPage(log logger.Logger, items []metasys.ListItem, inserted []string) {
	fresh := make(map[string]struct{}, len(inserted))
	for _, id := range inserted {
		fresh[id] = struct{}{}
	}
	for _, item := range items {
		if _, ok := fresh[item.ID]; ok {
			log.Info("entity discovered",
				logger.EntityID(item.ID),
				logger.String("item_reference", item.ItemReference),
			)
			continue
		}
		log.Debug("entity already discovered", logger.EntityID(item.ID))
	}
}

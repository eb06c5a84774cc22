// Package app assembles the crawler components from one Config. Dependencies are
// built on first use so each command only needs the configuration it touches.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/auth"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/bas"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/buildingmap"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/classify"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/config"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/database"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/discovery"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/enrichment"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/fetcher"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/httpclient"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metasys"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/publisher"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/reference"
)

// App owns the shared resources of one process.
type App struct {
	Config  *config.Config
	Log     logger.Logger
	Metrics *metrics.Pipeline

	db         *sqlx.DB
	redis      *redis.Client
	entities   *database.EntityRepository
	references *database.ReferenceRepository
	metasys    *metasys.Client
	sink       *bas.Client
	tracker    metrics.SyncTracker

	// HTTPClient overrides the clients built from configuration. Tests point it at httptest servers.
	HTTPClient *http.Client
}

// New creates an App. Nothing is connected yet.
func New(cfg *config.Config, log logger.Logger) *App {
	return &App{Config: cfg, Log: log, Metrics: metrics.NewPipeline()}
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

// DB connects to the store, migrating it first when auto_migrate is set.
func (a *App) DB(ctx context.Context) (*sqlx.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	if err := a.Config.ValidateDatabase(); err != nil {
		return nil, err
	}
	dbCfg := a.Config.Database
	if dbCfg.AutoMigrate {
		if err := database.MigrateUp(dbCfg.Driver, dbCfg.DSN, a.Log); err != nil {
			return nil, err
		}
	}
	db, err := database.Connect(ctx, dbCfg.Driver, dbCfg.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// Entities returns the entity repository.
func (a *App) Entities(ctx context.Context) (*database.EntityRepository, error) {
	if a.entities == nil {
		db, err := a.DB(ctx)
		if err != nil {
			return nil, err
		}
		a.entities = database.NewEntityRepository(db)
	}
	return a.entities, nil
}

// References returns the reference table repository.
func (a *App) References(ctx context.Context) (*database.ReferenceRepository, error) {
	if a.references == nil {
		db, err := a.DB(ctx)
		if err != nil {
			return nil, err
		}
		a.references = database.NewReferenceRepository(db)
	}
	return a.references, nil
}

func (a *App) httpClient(cfg *httpclient.ClientConfig) *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return httpclient.NewClient(cfg)
}

// Metasys returns the source API client.
func (a *App) Metasys() (*metasys.Client, error) {
	if a.metasys != nil {
		return a.metasys, nil
	}
	if err := a.Config.ValidateMetasys(); err != nil {
		return nil, err
	}
	mc := a.Config.Metasys
	client := a.httpClient(&httpclient.ClientConfig{Timeout: mc.Timeout})
	bearer := auth.NewMetasysBearer(mc.BaseURL, mc.Username, mc.Password, client, a.Log)
	a.metasys = metasys.NewClient(mc.BaseURL, fetcher.New(client, bearer, fetcher.WithTimeout(mc.Timeout)))
	return a.metasys, nil
}

// Sink returns the BAS metadata client.
func (a *App) Sink() (*bas.Client, error) {
	if a.sink != nil {
		return a.sink, nil
	}
	if err := a.Config.ValidateEntraOS(); err != nil {
		return nil, err
	}
	ec := a.Config.EntraOS
	client := a.httpClient(&httpclient.ClientConfig{Timeout: ec.Timeout})
	sso := auth.NewEntraSSO(ec.SSOURL, ec.AppID, ec.AppName, ec.Secret, client, a.Log)
	a.sink = bas.NewClient(ec.BASBaseURL, fetcher.New(client, sso, fetcher.WithTimeout(ec.Timeout)))
	return a.sink, nil
}

// Redis returns the Redis client, or nil when no URL is configured.
func (a *App) Redis(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil || a.Config.Redis.URL == "" {
		return a.redis, nil
	}
	opts, err := redis.ParseURL(a.Config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if a.Config.Redis.Password != "" {
		opts.Password = a.Config.Redis.Password
	}
	if a.Config.Redis.DB != 0 {
		opts.DB = a.Config.Redis.DB
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	return client, nil
}

// Tracker returns the sync statistics tracker. Without Redis it discards everything.
func (a *App) Tracker(ctx context.Context) (metrics.SyncTracker, error) {
	if a.tracker != nil {
		return a.tracker, nil
	}
	client, err := a.Redis(ctx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		a.tracker = metrics.NopTracker{}
	} else {
		a.tracker = metrics.NewRedisTracker(client, a.Log.With(logger.Component("tracker")))
	}
	return a.tracker, nil
}

// Discovery builds a discovery walker logging to log.
func (a *App) Discovery(ctx context.Context, log logger.Logger) (*discovery.Walker, error) {
	source, err := a.Metasys()
	if err != nil {
		return nil, err
	}
	store, err := a.Entities(ctx)
	if err != nil {
		return nil, err
	}
	return discovery.NewWalker(source, store, log, discovery.WithMetrics(a.Metrics)), nil
}

// Enrichment builds an enrichment walker logging to log.
func (a *App) Enrichment(ctx context.Context, log logger.Logger) (*enrichment.Walker, error) {
	source, err := a.Metasys()
	if err != nil {
		return nil, err
	}
	store, err := a.Entities(ctx)
	if err != nil {
		return nil, err
	}
	return enrichment.NewWalker(source, store, log, enrichment.WithMetrics(a.Metrics)), nil
}

// Publisher builds a publisher logging to log.
func (a *App) Publisher(ctx context.Context, log logger.Logger) (*publisher.Publisher, error) {
	sink, err := a.Sink()
	if err != nil {
		return nil, err
	}
	store, err := a.Entities(ctx)
	if err != nil {
		return nil, err
	}
	refs, err := a.References(ctx)
	if err != nil {
		return nil, err
	}
	types, err := publisher.NewTypeCache(refs, a.Config.Publisher.TypeCacheSize)
	if err != nil {
		return nil, err
	}
	tracker, err := a.Tracker(ctx)
	if err != nil {
		return nil, err
	}
	return publisher.New(store, types, sink, log,
		publisher.WithStrictBuildings(a.Config.Publisher.StrictBuildings),
		publisher.WithTracker(tracker),
		publisher.WithMetrics(a.Metrics),
	), nil
}

// ReferenceLoader builds a reference loader.
func (a *App) ReferenceLoader(ctx context.Context) (*reference.Loader, error) {
	source, err := a.Metasys()
	if err != nil {
		return nil, err
	}
	store, err := a.References(ctx)
	if err != nil {
		return nil, err
	}
	return reference.NewLoader(source, store, a.Log, reference.WithMetrics(a.Metrics)), nil
}

// Classifier returns a classifier with the built-in rules.
func (a *App) Classifier() *classify.Classifier {
	return classify.New(a.Log, classify.DefaultRules(buildingmap.Canonical)...)
}

// PushMetrics pushes the run counters when a Pushgateway is configured. Failures
// are logged only.
func (a *App) PushMetrics(ctx context.Context) {
	mc := a.Config.Metrics
	if mc.PushgatewayURL == "" {
		return
	}
	if err := a.Metrics.Push(ctx, mc.PushgatewayURL, mc.JobName); err != nil {
		a.Log.Warn("Could not push metrics", logger.String("gateway", mc.PushgatewayURL), logger.Error(err))
	}
}

package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/discovery"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/enrichment"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/publisher"
)

// PipelineResult summarizes one discover, enrich and publish pass.
type PipelineResult struct {
	RunID     string
	Discovery []*discovery.Result
	Enrich    *enrichment.Result
	Publish   *publisher.Result
}

// RunPipeline discovers the configured object types, enriches the objects that never
// succeeded and publishes everything pending. The first failing stage ends the pass.
func (a *App) RunPipeline(ctx context.Context) (*PipelineResult, error) {
	res := &PipelineResult{RunID: uuid.NewString()}
	log := a.Log.With(logger.RunID(res.RunID))
	cc := a.Config.Crawler

	log.Info("Pipeline pass started", logger.Any("object_types", a.Config.Scheduler.ObjectTypes))
	defer a.PushMetrics(context.WithoutCancel(ctx))

	started := time.Now()
	walker, err := a.Discovery(ctx, log)
	if err != nil {
		return res, err
	}
	for _, typ := range a.Config.Scheduler.ObjectTypes {
		dr, discErr := walker.Discover(ctx, discovery.Options{
			Kind: domain.KindObject, Type: typ, PageSize: cc.PageSize, PageDelay: cc.PageDelay,
		})
		res.Discovery = append(res.Discovery, dr)
		if discErr != nil {
			a.Metrics.StageDone(metrics.StageDiscover, started, discErr)
			return res, discErr
		}
	}
	a.Metrics.StageDone(metrics.StageDiscover, started, nil)

	started = time.Now()
	enricher, err := a.Enrichment(ctx, log)
	if err != nil {
		return res, err
	}
	res.Enrich, err = enricher.Enrich(ctx, enrichment.Options{
		Kind: domain.KindObject, OnlyUnsuccessful: true, ItemDelay: cc.ItemDelay,
	})
	a.Metrics.StageDone(metrics.StageEnrich, started, err)
	if err != nil {
		return res, err
	}

	started = time.Now()
	pub, err := a.Publisher(ctx, log)
	if err != nil {
		return res, err
	}
	res.Publish, err = pub.Publish(ctx, publisher.Options{})
	a.Metrics.StageDone(metrics.StagePublish, started, err)
	if err != nil {
		return res, err
	}

	log.Info("Pipeline pass finished",
		logger.Int("enriched", res.Enrich.Succeeded),
		logger.Int("enrich_failed", res.Enrich.Failed),
		logger.Int("published", res.Publish.Published),
		logger.Int("skipped", res.Publish.Skipped),
	)
	return res, nil
}

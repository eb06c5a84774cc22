package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
)

func TestPipeline_Counters(t *testing.T) {
	p := metrics.NewPipeline()

	p.PageFetched("objects", 3)
	p.PageFetched("objects", 3)
	p.Inserted("objects", 6)
	p.Enriched("objects", true)
	p.Enriched("objects", false)
	p.Enriched("objects", false)
	p.Record(metrics.OutcomePublished)
	p.Reference()

	assert.InDelta(t, 2, testutil.ToFloat64(p.PagesFetched.WithLabelValues("objects")), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(p.EntitiesSeen.WithLabelValues("objects")), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(p.EntitiesInserted.WithLabelValues("objects")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(p.Enrichments.WithLabelValues("objects", "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.Published.WithLabelValues("published")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.ReferenceStored), 0)
}

func TestPipeline_StageDone(t *testing.T) {
	p := metrics.NewPipeline()

	p.StageDone(metrics.StagePublish, time.Now(), errors.New("boom"))
	assert.InDelta(t, 0, testutil.ToFloat64(p.LastSuccess.WithLabelValues(metrics.StagePublish)), 0)

	p.StageDone(metrics.StagePublish, time.Now(), nil)
	assert.Greater(t, testutil.ToFloat64(p.LastSuccess.WithLabelValues(metrics.StagePublish)), float64(0))
}

func TestPipeline_NilSafe(t *testing.T) {
	var p *metrics.Pipeline
	assert.NotPanics(t, func() {
		p.PageFetched("objects", 1)
		p.Enriched("objects", true)
		p.Record(metrics.OutcomeSkipped)
		p.StageDone(metrics.StageDiscover, time.Now(), nil)
	})
	require.NoError(t, p.Push(context.Background(), "http://unused", "job"))
}

func TestPipeline_Push(t *testing.T) {
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := metrics.NewPipeline()
	p.Reference()
	require.NoError(t, p.Push(context.Background(), ts.URL, "metasys_crawler"))
	assert.Equal(t, "/metrics/job/metasys_crawler", path)
}

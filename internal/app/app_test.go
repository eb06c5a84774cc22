package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/app"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/bas"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/config"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metrics"
)

const goodDetail = `{"item":{"id":"o1","description":"VAV maks","units":"unitEnumSet.percent",` +
	`"itemReference":"GP-SXD9E-113:SOKP16-NAE4/FCB.434_121-1OU001.VAVmaks4"}}`

// metasysServer serves login, a one-page listing and two detail payloads, one of
// which is an error message.
func metasysServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, `{"accessToken":"m-tok","expires":%q}`, time.Now().Add(time.Hour).UTC().Format(time.RFC3339))
	})
	mux.HandleFunc("GET /objects", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer m-tok", r.Header.Get("Authorization"))
		assert.Equal(t, "165", r.URL.Query().Get("type"))
		_, _ = fmt.Fprint(w, `{"items":[
			{"id":"o1","parentUrl":"https://metasys/api/v2/objects/p1","itemReference":"GP-SXD9E-113:SOKP16-NAE4/FCB.434_121-1OU001.VAVmaks4","name":"VAVmaks4"},
			{"id":"o2","parentUrl":"","itemReference":"GP-SXD9E-113:SOKP16-NAE4/X","name":"X"}
		],"next":null,"total":2}`)
	})
	mux.HandleFunc("GET /objects/o1", func(w http.ResponseWriter, _ *http.Request) { _, _ = fmt.Fprint(w, goodDetail) })
	mux.HandleFunc("GET /objects/o2", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"message":"Object not found"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type sinkRecorder struct {
	mu      sync.Mutex
	records []bas.Record
	paths   []string
}

func sinkServer(t *testing.T, rec *sinkRecorder) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sso/logon", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, `<applicationtoken><params><applicationtokenID>sso-tok</applicationtokenID><expires>%d</expires></params></applicationtoken>`,
			time.Now().Add(time.Hour).Unix())
	})
	mux.HandleFunc("POST /metadata/bas/realestate/{re}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sso-tok", r.Header.Get("Authorization"))
		var body bas.Record
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rec.mu.Lock()
		rec.records = append(rec.records, body)
		rec.paths = append(rec.paths, r.URL.Path)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, metasysURL, sinkURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Metasys: config.MetasysConfig{BaseURL: metasysURL, Username: "u", Password: "p"},
		EntraOS: config.EntraOSConfig{
			SSOURL: sinkURL + "/sso/logon", BASBaseURL: sinkURL,
			AppID: "app", AppName: "crawler", Secret: "s",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite", DSN: "file:" + filepath.Join(t.TempDir(), "crawler.db"), AutoMigrate: true,
		},
		Crawler: config.CrawlerConfig{PageDelay: time.Millisecond, ItemDelay: time.Millisecond},
	}
	cfg.SetDefaults()
	return cfg
}

func TestRunPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	sink := &sinkRecorder{}
	cfg := testConfig(t, metasysServer(t).URL, sinkServer(t, sink).URL)

	a := app.New(cfg, logger.NewNop())
	a.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	t.Cleanup(func() { _ = a.Close() })

	refs, err := a.References(ctx)
	require.NoError(t, err)
	require.NoError(t, refs.Upsert(ctx, domain.ReferenceEntry{ID: 165, Description: "Analog Value", EnumSet: 508}))

	res, err := a.RunPipeline(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Discovery, 1)
	assert.Equal(t, 2, res.Discovery[0].Inserted)
	assert.Equal(t, 1, res.Enrich.Succeeded)
	assert.Equal(t, 1, res.Enrich.Failed)
	assert.Equal(t, 1, res.Publish.Published)

	require.Len(t, sink.records, 1)
	got := sink.records[0]
	assert.Equal(t, "/metadata/bas/realestate/kjorbo", sink.paths[0])
	assert.Equal(t, "o1", got.ID)
	assert.Equal(t, "Analog Value", got.Type)
	assert.Equal(t, "VAV maks", got.Description)
	assert.Equal(t, "VAVmaks4", got.TFM)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, "p1", *got.ParentID)
	payload, err := bas.DecodeResponse(got.Response)
	require.NoError(t, err)
	assert.JSONEq(t, goodDetail, string(payload))

	// Nothing new upstream: nothing is discovered or published again, the failed
	// object is retried.
	res, err = a.RunPipeline(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Discovery[0].Inserted)
	assert.Equal(t, 1, res.Enrich.Selected)
	assert.Equal(t, 0, res.Publish.Published)
	assert.Len(t, sink.records, 1)

	entities, err := a.Entities(ctx)
	require.NoError(t, err)
	summary, err := entities.Summarize(ctx, domain.KindObject)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Synced)
}

func TestRunPipeline_ConfigErrorBeforeIO(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()

	a := app.New(cfg, logger.NewNop())
	_, err := a.RunPipeline(context.Background())

	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTracker(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.SetDefaults()
	tr, err := app.New(cfg, logger.NewNop()).Tracker(ctx)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopTracker{}, tr)

	mr := miniredis.RunT(t)
	cfg.Redis.URL = "redis://" + mr.Addr()
	a := app.New(cfg, logger.NewNop())
	t.Cleanup(func() { _ = a.Close() })
	tr, err = a.Tracker(ctx)
	require.NoError(t, err)
	assert.IsType(t, &metrics.RedisTracker{}, tr)
}

package enrichment_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/database"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/enrichment"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/pace"
)

type fakeSource struct {
	payloads map[string]string
	errs     map[string]error
	calls    []string
}

func (f *fakeSource) GetObject(_ context.Context, id string) ([]byte, error) {
	f.calls = append(f.calls, id)
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	return []byte(f.payloads[id]), nil
}

// memStore keeps objects keyed by id and applies the same selection rules as the SQL store.
type memStore struct {
	objects []*domain.Object
	failOn  string
}

func (s *memStore) find(id string) *domain.Object {
	for _, o := range s.objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (s *memStore) ListEnrichable(_ context.Context, _ domain.Kind, f database.EnrichFilter) ([]domain.Enrichable, error) {
	var out []domain.Enrichable
	for _, o := range s.objects {
		if f.Prefix != "" && !strings.HasPrefix(o.ItemReference, f.Prefix) {
			continue
		}
		if f.OnlyUnsuccessful && o.Successes > 0 {
			continue
		}
		// Copies, like rows scanned from a database.
		c := *o
		out = append(out, &c)
	}
	return out, nil
}

func (s *memStore) RecordSuccess(_ context.Context, _ domain.Kind, id string, at time.Time, payload string) error {
	if id == s.failOn {
		return errors.New("db down")
	}
	s.find(id).RecordSuccess(at, payload)
	return nil
}

func (s *memStore) RecordFailure(_ context.Context, _ domain.Kind, id string, at time.Time) error {
	if id == s.failOn {
		return errors.New("db down")
	}
	s.find(id).RecordFailure(at)
	return nil
}

func object(id, ref string, successes int) *domain.Object {
	return &domain.Object{Record: domain.Record{ID: id, ItemReference: ref, Successes: successes}, Type: 165}
}

func newWalker(src enrichment.Source, store enrichment.Store, at time.Time, sleeper *pace.Recorder) *enrichment.Walker {
	return enrichment.NewWalker(src, store, logger.NewNop(),
		enrichment.WithSleeper(sleeper.Sleep),
		enrichment.WithClock(func() time.Time { return at }),
	)
}

func TestEnrich_ContinuesOnError(t *testing.T) {
	store := &memStore{objects: []*domain.Object{
		object("a", "GP:SOKP16-NAE1/a", 0),
		object("b", "GP:SOKP16-NAE1/b", 0),
		object("c", "GP:SOKP16-NAE1/c", 0),
	}}
	src := &fakeSource{
		payloads: map[string]string{"a": `{"item":{}}`, "c": `{"message":"Object not found"}`},
		errs:     map[string]error{"b": errors.New("timeout")},
	}
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	var sleeper pace.Recorder

	res, err := newWalker(src, store, at, &sleeper).Enrich(context.Background(), enrichment.Options{
		Kind: domain.KindObject, ItemDelay: 2 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, &enrichment.Result{Selected: 3, Succeeded: 1, Failed: 2}, res)
	assert.Equal(t, []string{"a", "b", "c"}, src.calls)
	assert.Len(t, sleeper.Delays, 2)

	a := store.find("a")
	assert.Equal(t, 1, a.Successes)
	require.NotNil(t, a.Response)
	assert.JSONEq(t, `{"item":{}}`, *a.Response)
	assert.Nil(t, a.LastError)
}

func TestEnrich_FailureBookkeeping(t *testing.T) {
	prevCrawl := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	obj := object("a", "GP:SOKP16-NAE1/a", 1)
	obj.LastCrawl = &prevCrawl
	obj.Errors = 4
	store := &memStore{objects: []*domain.Object{obj}}
	src := &fakeSource{errs: map[string]error{"a": errors.New("503")}}
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	_, err := newWalker(src, store, at, &pace.Recorder{}).Enrich(context.Background(), enrichment.Options{Kind: domain.KindObject})
	require.NoError(t, err)

	assert.Equal(t, 5, obj.Errors)
	require.NotNil(t, obj.LastError)
	assert.True(t, at.Equal(*obj.LastError))
	assert.Equal(t, 1, obj.Successes)
	assert.True(t, prevCrawl.Equal(*obj.LastCrawl))
	assert.Equal(t, obj.Successes+obj.Errors, obj.Attempts())
}

func TestEnrich_FailureLogLine(t *testing.T) {
	obj := object("a", "GP:SOKP16-NAE1/a", 0)
	obj.Name = "Tilluft"
	obj.Errors = 2
	store := &memStore{objects: []*domain.Object{obj}}
	src := &fakeSource{errs: map[string]error{"a": errors.New("503")}}
	core, logs := observer.New(zapcore.InfoLevel)

	w := enrichment.NewWalker(src, store, logger.FromZap(zap.New(core)),
		enrichment.WithSleeper((&pace.Recorder{}).Sleep))
	_, err := w.Enrich(context.Background(), enrichment.Options{Kind: domain.KindObject})
	require.NoError(t, err)

	entries := logs.FilterMessage("entity enrichment failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "a", fields["entity_id"])
	assert.Equal(t, "Tilluft", fields["name"])
	assert.EqualValues(t, 3, fields["attempts"])
	assert.Equal(t, "503", fields["error"])
}

func TestEnrich_OnlyUnsuccessful(t *testing.T) {
	store := &memStore{objects: []*domain.Object{
		object("never", "GP:SOKP16-NAE1/a", 0),
		object("once", "GP:SOKP16-NAE1/b", 1),
	}}
	src := &fakeSource{payloads: map[string]string{"never": `{"item":{}}`}}

	res, err := newWalker(src, store, time.Now(), &pace.Recorder{}).Enrich(context.Background(),
		enrichment.Options{Kind: domain.KindObject, OnlyUnsuccessful: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Selected)
	assert.Equal(t, []string{"never"}, src.calls)
}

func TestEnrich_Prefix(t *testing.T) {
	store := &memStore{objects: []*domain.Object{
		object("a", "GP:SOKP16-NAE1/a", 0),
		object("b", "GP:OSBG14-NAE1/b", 0),
	}}
	src := &fakeSource{payloads: map[string]string{"b": `{"item":{}}`}}

	_, err := newWalker(src, store, time.Now(), &pace.Recorder{}).Enrich(context.Background(),
		enrichment.Options{Kind: domain.KindObject, Prefix: "GP:OSBG14"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, src.calls)
}

func TestEnrich_StoreFailureAborts(t *testing.T) {
	store := &memStore{
		objects: []*domain.Object{object("a", "x", 0), object("b", "y", 0)},
		failOn:  "a",
	}
	src := &fakeSource{payloads: map[string]string{"a": `{"item":{}}`, "b": `{"item":{}}`}}

	_, err := newWalker(src, store, time.Now(), &pace.Recorder{}).Enrich(context.Background(),
		enrichment.Options{Kind: domain.KindObject})
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, src.calls)
}

func TestEnrich_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &memStore{objects: []*domain.Object{object("a", "x", 0)}}
	src := &fakeSource{errs: map[string]error{"a": context.Canceled}}
	cancel()

	_, err := newWalker(src, store, time.Now(), &pace.Recorder{}).Enrich(ctx, enrichment.Options{Kind: domain.KindObject})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.find("a").Errors, "cancellation is not counted as a failure")
}

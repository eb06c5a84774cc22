package discovery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/discovery"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metasys"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/pace"
)

type fakeLister struct {
	pages     []*metasys.Page
	fetched   []int
	types     []int
	failAt    int
	devices   bool
	pageSizes []int
}

func (f *fakeLister) page(page int) (*metasys.Page, error) {
	f.fetched = append(f.fetched, page)
	if page == f.failAt {
		return nil, errors.New("connection reset")
	}
	if page > len(f.pages) {
		return nil, errors.New("fetched past the last page")
	}
	return f.pages[page-1], nil
}

func (f *fakeLister) ListObjects(_ context.Context, page, objectType, pageSize int) (*metasys.Page, error) {
	f.types = append(f.types, objectType)
	f.pageSizes = append(f.pageSizes, pageSize)
	return f.page(page)
}

func (f *fakeLister) ListNetworkDevices(_ context.Context, page, pageSize int) (*metasys.Page, error) {
	f.devices = true
	f.pageSizes = append(f.pageSizes, pageSize)
	return f.page(page)
}

// memStore mimics INSERT ... ON CONFLICT DO NOTHING.
type memStore struct {
	rows    map[string]domain.Discovered
	inserts int
	fail    bool
}

func newMemStore() *memStore { return &memStore{rows: map[string]domain.Discovered{}} }

func (s *memStore) InsertDiscovered(_ context.Context, _ domain.Kind, items []domain.Discovered, _ time.Time) ([]string, error) {
	if s.fail {
		return nil, errors.New("db down")
	}
	var inserted []string
	for _, it := range items {
		if _, ok := s.rows[it.ID]; ok {
			continue
		}
		s.rows[it.ID] = it
		s.inserts++
		inserted = append(inserted, it.ID)
	}
	return inserted, nil
}

func strPtr(s string) *string { return &s }

func twoPages() []*metasys.Page {
	return []*metasys.Page{
		{
			Items: []metasys.ListItem{
				{ID: "3C30ACE2-9AD2-4C14-BB3E-480B99A3E9EE", ParentURL: "https://host/api/v2/objects/p1", Name: "a", ItemReference: "GP:SOKP16-NAE1/a"},
				{ID: "2", ParentURL: "https://host/api/v2/objects/p1", Name: "b"},
				{ID: "3", Name: "c"},
			},
			Next: strPtr("https://host/api/v2/objects?page=2"),
		},
		{
			Items: []metasys.ListItem{{ID: "4"}, {ID: "5"}, {ID: "7B599BFB-3A4A-4F75-85E4-D746FA4EA6E0"}},
			Next:  nil,
		},
	}
}

func TestDiscover_TwoPages(t *testing.T) {
	lister := &fakeLister{pages: twoPages()}
	store := newMemStore()
	var sleeper pace.Recorder

	w := discovery.NewWalker(lister, store, logger.NewNop(), discovery.WithSleeper(sleeper.Sleep))
	res, err := w.Discover(context.Background(), discovery.Options{
		Kind: domain.KindObject, Type: 165, PageSize: 3, PageDelay: time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, lister.fetched, "stops at the page with a null next")
	assert.Equal(t, 6, store.inserts)
	assert.Equal(t, &discovery.Result{Pages: 2, Seen: 6, Inserted: 6}, res)
	assert.Equal(t, []int{165, 165}, lister.types)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.Delays, "one delay between two pages")

	first := store.rows["3C30ACE2-9AD2-4C14-BB3E-480B99A3E9EE"]
	require.NotNil(t, first.ParentID)
	assert.Equal(t, "p1", *first.ParentID)
	assert.Equal(t, 165, first.Type)
	assert.Nil(t, store.rows["3"].ParentID)
	assert.Contains(t, store.rows, "7B599BFB-3A4A-4F75-85E4-D746FA4EA6E0")
}

func TestDiscover_Idempotent(t *testing.T) {
	store := newMemStore()
	w := discovery.NewWalker(&fakeLister{pages: twoPages()}, store, logger.NewNop(),
		discovery.WithSleeper((&pace.Recorder{}).Sleep))

	opts := discovery.Options{Kind: domain.KindObject, Type: 165, PageSize: 3}
	_, err := w.Discover(context.Background(), opts)
	require.NoError(t, err)

	w = discovery.NewWalker(&fakeLister{pages: twoPages()}, store, logger.NewNop(),
		discovery.WithSleeper((&pace.Recorder{}).Sleep))
	res, err := w.Discover(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 6, store.inserts)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 6, res.Seen)
}

func TestDiscover_SinglePageNoDelay(t *testing.T) {
	lister := &fakeLister{pages: []*metasys.Page{{Items: []metasys.ListItem{{ID: "nd1"}}}}}
	var sleeper pace.Recorder

	w := discovery.NewWalker(lister, newMemStore(), logger.NewNop(), discovery.WithSleeper(sleeper.Sleep))
	_, err := w.Discover(context.Background(), discovery.Options{Kind: domain.KindNetworkDevice, PageSize: 100})
	require.NoError(t, err)

	assert.True(t, lister.devices)
	assert.Equal(t, []int{1}, lister.fetched)
	assert.Empty(t, sleeper.Delays)
}

func TestDiscover_FetchErrorAborts(t *testing.T) {
	lister := &fakeLister{pages: twoPages(), failAt: 2}
	store := newMemStore()

	w := discovery.NewWalker(lister, store, logger.NewNop(), discovery.WithSleeper((&pace.Recorder{}).Sleep))
	res, err := w.Discover(context.Background(), discovery.Options{Kind: domain.KindObject, Type: 165, PageSize: 3})
	require.Error(t, err)

	assert.Equal(t, 3, store.inserts, "first page stays committed")
	assert.Equal(t, 1, res.Pages)
}

func TestDiscover_StoreErrorAborts(t *testing.T) {
	lister := &fakeLister{pages: twoPages()}
	store := newMemStore()
	store.fail = true

	w := discovery.NewWalker(lister, store, logger.NewNop(), discovery.WithSleeper((&pace.Recorder{}).Sleep))
	_, err := w.Discover(context.Background(), discovery.Options{Kind: domain.KindObject, Type: 165, PageSize: 3})
	require.Error(t, err)
	assert.Equal(t, []int{1}, lister.fetched)
}

func TestDiscover_InvalidPageSize(t *testing.T) {
	w := discovery.NewWalker(&fakeLister{}, newMemStore(), logger.NewNop())
	_, err := w.Discover(context.Background(), discovery.Options{Kind: domain.KindObject})
	require.Error(t, err)
}

func TestDiscover_LogsTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	store := newMemStore()
	store.rows["2"] = domain.Discovered{ID: "2"}

	w := discovery.NewWalker(&fakeLister{pages: twoPages()}, store, logger.FromZap(zap.New(core)),
		discovery.WithSleeper((&pace.Recorder{}).Sleep))
	_, err := w.Discover(context.Background(), discovery.Options{Kind: domain.KindObject, Type: 165, PageSize: 3})
	require.NoError(t, err)

	assert.Equal(t, 5, logs.FilterMessage("entity discovered").Len())
	assert.Equal(t, 1, logs.FilterMessage("entity already discovered").Len())
}

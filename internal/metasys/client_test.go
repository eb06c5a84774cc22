package metasys_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/fetcher"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metasys"
)

func newClient(t *testing.T, h http.HandlerFunc) *metasys.Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return metasys.NewClient(ts.URL+"/api/v2/", fetcher.New(ts.Client(), nil))
}

func TestListObjects(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/objects", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "165", q.Get("type"))
		assert.Equal(t, "100", q.Get("pageSize"))
		assert.Equal(t, "name", q.Get("sort"))
		_, _ = w.Write([]byte(`{"total":7,"next":null,"items":[
			{"id":"3C30ACE2-9AD2-4C14-BB3E-480B99A3E9EE","parentUrl":"https://host/api/v2/objects/bdecf964-a50c-4a44-a586-7e8d95d3d246","itemReference":"GP-SXD9E-113:SOKP16-NAE4/FCB.x","name":"VAV"},
			{"id":"root","parentUrl":"","itemReference":"GP","name":"Site"}]}`))
	})

	p, err := c.ListObjects(context.Background(), 2, 165, 100)
	require.NoError(t, err)
	assert.False(t, p.HasNext())
	assert.Equal(t, 7, p.Total)
	require.Len(t, p.Items, 2)

	parent := p.Items[0].ParentID()
	require.NotNil(t, parent)
	assert.Equal(t, "bdecf964-a50c-4a44-a586-7e8d95d3d246", *parent)
	assert.Nil(t, p.Items[1].ParentID())
}

func TestListNetworkDevices(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/networkDevices", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(`{"items":[{"id":"nd1","name":"NAE4"}],"next":"https://host/api/v2/networkDevices?page=2"}`))
	})

	p, err := c.ListNetworkDevices(context.Background(), 1, 50)
	require.NoError(t, err)
	assert.True(t, p.HasNext())
}

func TestListEnumSetMembers(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/enumSets/508/members", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("pageSize"))
		_, _ = w.Write([]byte(`{"items":[{"id":165,"description":"Analog Value"},{"id":129}],"next":null}`))
	})

	p, err := c.ListEnumSetMembers(context.Background(), 508, 1, 1000)
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
	assert.Equal(t, int64(165), p.Items[0].ID)
	assert.Empty(t, p.Items[1].Description)
}

func TestCountObjects(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		_, _ = w.Write([]byte(`{"total":4211,"items":[],"next":"x"}`))
	})

	n, err := c.CountObjects(context.Background(), 165)
	require.NoError(t, err)
	assert.Equal(t, 4211, n)
}

func TestListObjects_BadJSON(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err := c.ListObjects(context.Background(), 1, 165, 10)
	require.Error(t, err)
}

func TestGetObject(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/objects/abc", r.URL.Path)
		_, _ = w.Write([]byte(`{"item":{"id":"abc"}}`))
	})
	body, err := c.GetObject(context.Background(), "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":{"id":"abc"}}`, string(body))
}

package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pathfinder-workers/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLite_InMemory(t *testing.T) {
	client, err := NewSQLite(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))

	_, err = client.DB.ExecContext(ctx, `CREATE TABLE t (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = client.DB.ExecContext(ctx, `INSERT INTO t (id) VALUES ('a')`)
	require.NoError(t, err)

	var n int
	require.NoError(t, client.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNewSQLite_EmptyPath(t *testing.T) {
	_, err := NewSQLite(config.SQLiteConfig{})
	assert.Error(t, err)
}

func TestNewRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	assert.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func newFakeElasticsearch(t *testing.T, indices map[string]bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodHead && r.URL.Path != "/" {
			if indices[r.URL.Path[1:]] {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"version":{"number":"8.11.0"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestElasticsearch_PingAndIndexExists(t *testing.T) {
	srv := newFakeElasticsearch(t, map[string]bool{"corpus_chunks": true})

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))

	ok, err := client.IndexExists(ctx, "corpus_chunks")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.IndexExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

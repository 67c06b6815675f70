package artifact

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name  string
	path  string
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(ctx context.Context) (string, error) {
	s.calls++
	return s.path, s.err
}

func TestLocalProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	got, err := (&LocalProvider{Path: path}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = (&LocalProvider{Path: filepath.Join(dir, "missing.json")}).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = (&LocalProvider{Path: dir}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestChainLocalWins(t *testing.T) {
	local := &stubProvider{name: "local", path: "/models/a.json"}
	remote := &stubProvider{name: "remote", path: "/cache/a.json"}

	var seen []string
	chain := NewChain(nil, local, remote)
	chain.Observe(func(provider string, err error) { seen = append(seen, provider) })

	path, err := chain.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/models/a.json", path)
	assert.Equal(t, 0, remote.calls)
	assert.Equal(t, []string{"local"}, seen)
	assert.Equal(t, []string{"local", "remote"}, chain.Providers())
}

func TestChainFallsBack(t *testing.T) {
	local := &stubProvider{name: "local", err: ErrNotFound}
	remote := &stubProvider{name: "remote", path: "/cache/a.json"}

	path, err := NewChain(nil, local, remote).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/cache/a.json", path)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 1, remote.calls)
}

func TestChainAllFail(t *testing.T) {
	boom := errors.New("boom")
	local := &stubProvider{name: "local", err: ErrNotFound}
	remote := &stubProvider{name: "remote", err: boom}

	_, err := NewChain(nil, local, remote).Resolve(context.Background())
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "local")
	assert.Contains(t, err.Error(), "remote")
}

func TestChainEmpty(t *testing.T) {
	_, err := NewChain(nil).Resolve(context.Background())
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestRemoteURL(t *testing.T) {
	p := &RemoteProvider{Repository: "acme/shipping-model", Filename: "pipeline.json"}
	u, err := p.URL()
	require.NoError(t, err)
	assert.Equal(t, "https://huggingface.co/acme/shipping-model/resolve/main/pipeline.json", u)

	_, err = (&RemoteProvider{}).URL()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoteDownloadsAndCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/acme/model/resolve/main/pipeline.json", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"name":"remote"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := &RemoteProvider{
		BaseURL:    srv.URL,
		Repository: "acme/model",
		Filename:   "pipeline.json",
		CacheDir:   dir,
		Token:      "secret",
	}

	path, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pipeline.json"), path)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"remote"}`, string(body))

	_, err = p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestRemoteRetriesTransientFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := &RemoteProvider{
		BaseURL:        srv.URL,
		Repository:     "acme/model",
		Filename:       "pipeline.json",
		CacheDir:       t.TempDir(),
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
	}
	_, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestRemoteGivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := &RemoteProvider{
		BaseURL:        srv.URL,
		Repository:     "acme/model",
		Filename:       "pipeline.json",
		CacheDir:       t.TempDir(),
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	}
	_, err := p.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRemoteNotFoundIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := &RemoteProvider{
		BaseURL:    srv.URL,
		Repository: "acme/model",
		Filename:   "pipeline.json",
		CacheDir:   t.TempDir(),
	}
	_, err := p.Fetch(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

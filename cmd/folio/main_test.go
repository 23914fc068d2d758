package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/folio/pkg/cache"
	"github.com/umputun/folio/pkg/domain"
	"github.com/umputun/folio/pkg/feed"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test</title>
<item><title>First</title><link>https://example.com/1</link><description>one</description></item>
<item><title>Second</title><link>https://example.com/2</link><description>two</description></item>
</channel></rss>`

func TestRun_MissingConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := run(ctx, Opts{Config: "non-existent-config.yml"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config")
}

func TestRun_InvalidConfig(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "invalid-config.yml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("invalid: yaml: content: ["), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := run(ctx, Opts{Config: cfgFile})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config")
}

func TestRun_ServerStartStop(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(testRSS))
	}))
	defer upstream.Close()

	port := freePort(t)
	cfgFile := filepath.Join(t.TempDir(), "config.yml")
	cfg := fmt.Sprintf(`
server:
  listen: "127.0.0.1:%d"
playbook:
  url: %s/playbook
thoughts:
  url: %s/thoughts
  fallback_link: https://example.com
`, port, upstream.URL, upstream.URL)
	require.NoError(t, os.WriteFile(cfgFile, []byte(cfg), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, Opts{Config: cfgFile, Warmup: true}) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/ping")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && string(body) == "pong"
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(2), hits.Load(), "both feeds fetched by warm-up")

	resp, err := http.Get(base + "/api/playbook-feed")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"totalPosts":2`)
	assert.Contains(t, string(body), `"cached":true`)
	assert.Equal(t, int32(2), hits.Load(), "served from warm cache")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server shutdown timeout")
	}
}

func TestRun_ListenOverride(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := run(ctx, Opts{Listen: "bad-address:-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}

func TestWarmup(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(testRSS))
	}))
	defer upstream.Close()

	store := cache.New(time.Minute)
	parser := feed.NewParser(time.Second, "")

	t.Run("all feeds refreshed", func(t *testing.T) {
		playbook := feed.NewService(domain.Source{Name: "playbook", URL: upstream.URL + "/ok"}, feed.PlaybookProfile, parser, store)
		err := warmup(context.Background(), playbook)
		require.NoError(t, err)

		res, err := playbook.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, feed.StateFreshHit, res.State)
		assert.Len(t, res.Posts, 2)
	})

	t.Run("failed feed reported, others refreshed", func(t *testing.T) {
		good := feed.NewService(domain.Source{Name: "good", URL: upstream.URL + "/good"}, feed.LegacyProfile, parser, store)
		bad := feed.NewService(domain.Source{Name: "bad", URL: upstream.URL + "/broken"}, feed.LegacyProfile, parser, store)

		err := warmup(context.Background(), bad, good)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "warm-up of bad feed")

		_, ok := store.Get(good.Source().CacheKey())
		assert.True(t, ok, "good feed cached")
		_, ok = store.Get(bad.Source().CacheKey())
		assert.False(t, ok, "bad feed not cached")
	})
}

func TestSetupLog(t *testing.T) {
	t.Run("debug mode enabled", func(t *testing.T) {
		SetupLog(true)
	})

	t.Run("debug mode disabled", func(t *testing.T) {
		SetupLog(false)
	})

	t.Run("with secrets", func(t *testing.T) {
		SetupLog(true, "secret1", "secret2")
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/folio/pkg/cache"
	"github.com/umputun/folio/pkg/domain"
	"github.com/umputun/folio/pkg/feed/mocks"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func makeItems(n int) []domain.FeedItem {
	res := make([]domain.FeedItem, n)
	for i := range res {
		res[i] = domain.FeedItem{Title: fmt.Sprintf("item %d", i+1), Link: fmt.Sprintf("https://example.com/%d", i+1),
			Description: "excerpt", Published: "Mon, 02 Jan 2006 15:04:05 -0700"}
	}
	return res
}

var testSource = domain.Source{Name: "playbook", URL: "https://example.com/feed"}

func TestService_Load(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	start := clock.Now()
	fail := false
	fetcher := &mocks.FetcherMock{FetchFunc: func(ctx context.Context, url string) ([]domain.FeedItem, error) {
		assert.Equal(t, "https://example.com/feed", url)
		if fail {
			return nil, fmt.Errorf("%w: connection refused", ErrFetchFailed)
		}
		return makeItems(14), nil
	}}
	store := cache.New(10 * time.Minute)
	svc := NewService(testSource, PlaybookProfile, fetcher, store, WithClock(clock.Now))

	// cold cache, fetch and store
	res, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRefreshed, res.State)
	assert.False(t, res.Cached)
	assert.Len(t, res.Posts, 14)
	assert.Equal(t, start, res.LastFetch)
	assert.NoError(t, res.Err)
	assert.Len(t, fetcher.FetchCalls(), 1)
	first := res.Posts

	// within ttl, served from cache, no fetch
	clock.Advance(5 * time.Minute)
	res, err = svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFreshHit, res.State)
	assert.True(t, res.Cached)
	assert.Equal(t, first, res.Posts)
	assert.Equal(t, start, res.LastFetch)
	assert.Len(t, fetcher.FetchCalls(), 1)

	// expired and upstream down, stale data returned unchanged
	clock.Advance(6 * time.Minute)
	fail = true
	res, err = svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateStaleFallback, res.State)
	assert.False(t, res.Cached)
	assert.Equal(t, first, res.Posts)
	assert.Equal(t, start, res.LastFetch)
	assert.ErrorIs(t, res.Err, ErrFetchFailed)
	assert.Len(t, fetcher.FetchCalls(), 2)

	// stale entry is not evicted, next request within the failure window gets it again
	res, err = svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateStaleFallback, res.State)
	assert.Equal(t, first, res.Posts)
	assert.Len(t, fetcher.FetchCalls(), 3, "expired entry triggers a fetch on every request")
	entry, ok := store.Get(testSource.CacheKey())
	require.True(t, ok)
	assert.Equal(t, start, entry.Timestamp)

	// upstream back, refreshed
	fail = false
	res, err = svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRefreshed, res.State)
	assert.Equal(t, clock.Now(), res.LastFetch)
}

func TestService_Load_EmptyFallback(t *testing.T) {
	fetcher := &mocks.FetcherMock{FetchFunc: func(ctx context.Context, url string) ([]domain.FeedItem, error) {
		return nil, errors.New("upstream exploded")
	}}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := cache.New(time.Minute)
	svc := NewService(testSource, PlaybookProfile, fetcher, store, WithClock(func() time.Time { return now }))

	res, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateEmptyFallback, res.State)
	assert.NotNil(t, res.Posts)
	assert.Empty(t, res.Posts)
	assert.Equal(t, now, res.LastFetch)
	assert.ErrorIs(t, res.Err, ErrNoData)
	assert.ErrorIs(t, res.Err, ErrFetchFailed, "plain fetcher errors are classified as fetch failures")
	assert.Empty(t, store.Keys(), "failed fetch writes nothing")
}

func TestService_Load_StampsFetchCompletion(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	start := clock.Now()
	fail := false
	fetcher := &mocks.FetcherMock{FetchFunc: func(ctx context.Context, url string) ([]domain.FeedItem, error) {
		clock.Advance(3 * time.Second) // slow upstream
		if fail {
			return nil, errors.New("down")
		}
		return []domain.FeedItem{{Title: "no date", Content: "body"}}, nil
	}}
	store := cache.New(10 * time.Minute)
	svc := NewService(testSource, PlaybookProfile, fetcher, store, WithClock(clock.Now))

	res, err := svc.Load(context.Background())
	require.NoError(t, err)
	fetched := start.Add(3 * time.Second)
	assert.Equal(t, StateRefreshed, res.State)
	assert.Equal(t, fetched, res.LastFetch)
	assert.Equal(t, "2024-05-01T12:00:03.000Z", res.Posts[0].PubDate)

	entry, ok := store.Get(testSource.CacheKey())
	require.True(t, ok)
	assert.Equal(t, fetched, entry.Timestamp)
	assert.Equal(t, fetched.Add(10*time.Minute), entry.ExpiresAt)

	// still fresh 10 minutes after the fetch started, as the ttl runs from completion
	clock.Advance(10*time.Minute - 2*time.Second)
	res, err = svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFreshHit, res.State)

	// refresh stamps completion time too
	require.NoError(t, svc.Refresh(context.Background()))
	entry, _ = store.Get(testSource.CacheKey())
	assert.Equal(t, clock.Now(), entry.Timestamp)

	// empty fallback reports the time the failed attempt finished
	fail = true
	other := NewService(domain.Source{Name: "other", URL: "https://example.com/other"}, PlaybookProfile, fetcher, store,
		WithClock(clock.Now))
	res, err = other.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateEmptyFallback, res.State)
	assert.Equal(t, clock.Now(), res.LastFetch)
}

func TestService_Load_Critical(t *testing.T) {
	fetcher := &mocks.FetcherMock{FetchFunc: func(ctx context.Context, url string) ([]domain.FeedItem, error) {
		panic("normalization bug")
	}}
	svc := NewService(testSource, PlaybookProfile, fetcher, cache.New(time.Minute))

	res, err := svc.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCritical)
	assert.Contains(t, err.Error(), "normalization bug")
	assert.NotNil(t, res.Posts)
	assert.Empty(t, res.Posts)
}

func TestService_Load_Timeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(testRSS))
	}))
	defer upstream.Close()

	src := domain.Source{Name: "playbook", URL: upstream.URL}
	svc := NewService(src, PlaybookProfile, NewParser(50*time.Millisecond, ""), cache.New(time.Minute))
	res, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateEmptyFallback, res.State)
	assert.Empty(t, res.Posts)

	page := Paginate(res.Posts, DefaultPage, DefaultLimit)
	assert.Empty(t, page.Posts)
	assert.False(t, page.HasMore)
	assert.Equal(t, 0, page.TotalPosts)
}

func TestService_Load_RealParser(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testRSS))
	}))
	defer upstream.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	src := domain.Source{Name: "playbook", URL: upstream.URL}
	svc := NewService(src, PlaybookProfile, NewParser(time.Second, ""), cache.New(time.Minute),
		WithClock(func() time.Time { return now }))

	res, err := svc.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Posts, 2)
	assert.Equal(t, domain.Post{Title: "Test Article 1", Link: "http://example.com/article1",
		ContentSnippet: "Article 1 description", PubDate: "Mon, 02 Jan 2006 15:04:05 -0700"}, res.Posts[0])
	assert.Equal(t, domain.Post{Title: "Untitled Post", Link: "#",
		ContentSnippet: "<p>Body only</p>...", PubDate: "2024-05-01T12:00:00.000Z"}, res.Posts[1])
}

func TestService_Refresh(t *testing.T) {
	calls := 0
	fetcher := &mocks.FetcherMock{FetchFunc: func(ctx context.Context, url string) ([]domain.FeedItem, error) {
		calls++
		if calls > 2 {
			return nil, errors.New("down")
		}
		return makeItems(calls), nil
	}}
	store := cache.New(time.Hour)
	svc := NewService(testSource, PlaybookProfile, fetcher, store)

	require.NoError(t, svc.Refresh(context.Background()))
	require.NoError(t, svc.Refresh(context.Background()), "refresh ignores freshness")
	entry, ok := store.Get(testSource.CacheKey())
	require.True(t, ok)
	assert.Len(t, entry.Posts, 2)

	err := svc.Refresh(context.Background())
	require.ErrorIs(t, err, ErrFetchFailed)
	entry, ok = store.Get(testSource.CacheKey())
	require.True(t, ok)
	assert.Len(t, entry.Posts, 2, "failed refresh keeps previous entry")
}

func TestService_SeparateKeys(t *testing.T) {
	fetcher := &mocks.FetcherMock{FetchFunc: func(ctx context.Context, url string) ([]domain.FeedItem, error) {
		return makeItems(12), nil
	}}
	store := cache.New(time.Minute)
	playbook := NewService(domain.Source{Name: "playbook", URL: "https://a.example.com/feed"}, PlaybookProfile, fetcher, store)
	thoughts := NewService(domain.Source{Name: "thoughts", URL: "https://b.example.com/feed"}, LegacyProfile, fetcher, store)

	res, err := playbook.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Posts, 12)

	res, err = thoughts.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRefreshed, res.State, "thoughts has its own key")
	assert.Len(t, res.Posts, 10)
	assert.Len(t, store.Keys(), 2)
}

func TestService_ConcurrentMisses(t *testing.T) {
	fetcher := &mocks.FetcherMock{FetchFunc: func(ctx context.Context, url string) ([]domain.FeedItem, error) {
		time.Sleep(10 * time.Millisecond)
		return makeItems(3), nil
	}}
	svc := NewService(testSource, PlaybookProfile, fetcher, cache.New(time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Load(context.Background())
			assert.NoError(t, err)
			assert.Len(t, res.Posts, 3)
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, len(fetcher.FetchCalls()), 1)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "fresh_hit", StateFreshHit.String())
	assert.Equal(t, "refreshed", StateRefreshed.String())
	assert.Equal(t, "stale_fallback", StateStaleFallback.String())
	assert.Equal(t, "empty_fallback", StateEmptyFallback.String())
	assert.Equal(t, "state(42)", State(42).String())
}

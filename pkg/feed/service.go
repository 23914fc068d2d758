package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/folio/pkg/cache"
	"github.com/umputun/folio/pkg/domain"
)

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher

var (
	// ErrNoData reported when the fetch failed and nothing was cached before
	ErrNoData = errors.New("no feed data available")
	// ErrCritical reported when something unexpected broke the load, e.g. a panic in normalization
	ErrCritical = errors.New("critical feed error")
)

// Fetcher retrieves raw items of a feed
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]domain.FeedItem, error)
}

// Store keeps the last fetched posts per key
type Store interface {
	Get(key string) (cache.Entry, bool)
	Put(key string, posts []domain.Post, now time.Time) cache.Entry
}

// State tells how a load was served
type State int

// load states, all terminal
const (
	StateFreshHit State = iota
	StateRefreshed
	StateStaleFallback
	StateEmptyFallback
)

func (s State) String() string {
	switch s {
	case StateFreshHit:
		return "fresh_hit"
	case StateRefreshed:
		return "refreshed"
	case StateStaleFallback:
		return "stale_fallback"
	case StateEmptyFallback:
		return "empty_fallback"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result of a load. Posts is never nil.
type Result struct {
	Posts     []domain.Post
	State     State
	Cached    bool      // served from a fresh cache entry
	LastFetch time.Time // fetch time of the served data
	Err       error     // absorbed fetch error for stale and empty fallbacks
}

// Service serves posts of a single feed with lazy, TTL-bound refresh and tiered fallback.
// There is no single-flight, concurrent misses fetch independently and the last write wins.
type Service struct {
	source  domain.Source
	profile Profile
	fetcher Fetcher
	store   Store
	now     func() time.Time
}

// Option customizes a Service
type Option func(*Service)

// WithClock sets the time source, used for TTL checks and missing publish dates
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService makes a service for the source, posts normalized with the profile
func NewService(src domain.Source, prof Profile, fetcher Fetcher, store Store, opts ...Option) *Service {
	s := &Service{source: src, profile: prof, fetcher: fetcher, store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Source returns the feed served by the service
func (s *Service) Source() domain.Source {
	return s.source
}

// Load returns the posts of the feed: fresh cache, refreshed from upstream,
// stale cache or empty list, in that order of preference. Fetch failures are absorbed
// into Result.Err; the returned error is set only for critical failures and wraps ErrCritical.
func (s *Service) Load(ctx context.Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			lgr.Printf("[ERROR] critical error loading %s feed: %v", s.source.Name, r)
			res, err = Result{Posts: []domain.Post{}}, fmt.Errorf("%w: %v", ErrCritical, r)
		}
	}()

	key := s.source.CacheKey()

	prev, found := s.store.Get(key)
	if found && prev.Fresh(s.now()) {
		lgr.Printf("[DEBUG] using cached %s feed, %d posts", s.source.Name, len(prev.Posts))
		return Result{Posts: prev.Posts, State: StateFreshHit, Cached: true, LastFetch: prev.Timestamp}, nil
	}

	lgr.Printf("[DEBUG] fetching fresh %s feed from %s", s.source.Name, s.source.URL)
	entry, fetchErr := s.refresh(ctx, key)
	if fetchErr == nil {
		lgr.Printf("[INFO] cached %d posts of %s feed until %s", len(entry.Posts), s.source.Name,
			entry.ExpiresAt.Format(time.RFC3339))
		return Result{Posts: entry.Posts, State: StateRefreshed, LastFetch: entry.Timestamp}, nil
	}

	if found {
		lgr.Printf("[WARN] using stale cached %s feed from %s, %v", s.source.Name,
			prev.Timestamp.Format(time.RFC3339), fetchErr)
		return Result{Posts: prev.Posts, State: StateStaleFallback, LastFetch: prev.Timestamp, Err: fetchErr}, nil
	}

	lgr.Printf("[WARN] no cached %s feed, returning empty list, %v", s.source.Name, fetchErr)
	return Result{
		Posts:     []domain.Post{},
		State:     StateEmptyFallback,
		LastFetch: s.now(), // time of the failed attempt
		Err:       fmt.Errorf("%w: %w", ErrNoData, fetchErr),
	}, nil
}

// Refresh fetches the feed and replaces the cache entry regardless of its freshness
func (s *Service) Refresh(ctx context.Context) error {
	entry, err := s.refresh(ctx, s.source.CacheKey())
	if err != nil {
		return err
	}
	lgr.Printf("[INFO] refreshed %s feed, %d posts", s.source.Name, len(entry.Posts))
	return nil
}

// refresh makes a single fetch attempt and stores the normalized posts on success.
// The entry is stamped with the time the fetch completed.
func (s *Service) refresh(ctx context.Context, key string) (cache.Entry, error) {
	items, err := s.fetcher.Fetch(ctx, s.source.URL)
	if err != nil {
		if !errors.Is(err, ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		return cache.Entry{}, err
	}
	fetched := s.now()
	return s.store.Put(key, Normalize(items, s.profile, fetched), fetched), nil
}

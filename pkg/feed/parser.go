package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/umputun/folio/pkg/domain"
)

// DefaultTimeout limits a single upstream fetch
const DefaultTimeout = 15 * time.Second

// DefaultUserAgent identifies the fetcher to the upstream
const DefaultUserAgent = "Mozilla/5.0 (compatible; RSS-Parser)"

// ErrFetchFailed wraps every failure to get a usable feed document from the upstream
var ErrFetchFailed = errors.New("feed fetch failed")

// Parser fetches and parses RSS/Atom/JSON feeds
type Parser struct {
	client    *http.Client
	userAgent string
}

// NewParser creates a new feed parser, zero values mean defaults
func NewParser(timeout time.Duration, userAgent string) *Parser {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch retrieves the feed at url and returns its raw items.
// All errors are wrapped with ErrFetchFailed.
func (p *Parser) Fetch(ctx context.Context, url string) ([]domain.FeedItem, error) {
	body, err := p.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed %s: %w", ErrFetchFailed, url, err)
	}

	items := make([]domain.FeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		items = append(items, domain.FeedItem{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
			Published:   publishedOf(item),
		})
	}
	return items, nil
}

// fetch retrieves content from a URL, any non-2xx status is an error
func (p *Parser) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)
	addFeedHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// publishedOf returns the publish date as written in the feed, falls back to updated date
func publishedOf(item *gofeed.Item) string {
	if item.Published != "" {
		return item.Published
	}
	return item.Updated
}

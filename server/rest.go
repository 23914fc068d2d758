package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/umputun/folio/pkg/domain"
	"github.com/umputun/folio/pkg/feed"
)

// feedResponse is a page of the playbook feed
type feedResponse struct {
	Posts       []domain.Post `json:"posts"`
	HasMore     bool          `json:"hasMore"`
	CurrentPage int           `json:"currentPage"`
	TotalPosts  int           `json:"totalPosts"`
	Cached      bool          `json:"cached"`
	LastFetch   int64         `json:"lastFetch"` // unix milliseconds
}

// feedErrorResponse keeps the shape of an empty page so the frontend needs no error branch
type feedErrorResponse struct {
	Error       string        `json:"error"`
	Message     string        `json:"message"`
	Posts       []domain.Post `json:"posts"`
	HasMore     bool          `json:"hasMore"`
	CurrentPage int           `json:"currentPage"`
	TotalPosts  int           `json:"totalPosts"`
}

// feedStatus is the cache state of a feed reported by status endpoint
type feedStatus struct {
	Name      string     `json:"name"`
	Key       string     `json:"key"`
	Cached    bool       `json:"cached"`
	Fresh     bool       `json:"fresh"`
	Posts     int        `json:"posts"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// thoughts fallback post, served when the legacy feed has nothing to show
const (
	fallbackTitle       = "Welcome to My Thoughts"
	fallbackDescription = "Exploring ideas at the intersection of technology, entrepreneurship, and human behavior. More posts coming soon!"
)

var errMethodNotAllowed = errors.New("Method not allowed") //nolint:staticcheck // message is part of the API contract

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	now := s.cfg.Now()
	feeds := []feedStatus{}
	for _, l := range []FeedLoader{s.playbook, s.thoughts} {
		if l == nil {
			continue
		}
		src := l.Source()
		st := feedStatus{Name: src.Name, Key: src.CacheKey()}
		if s.entries != nil {
			if e, ok := s.entries.Get(st.Key); ok {
				st.Cached, st.Fresh, st.Posts = true, e.Fresh(now), len(e.Posts)
				st.Timestamp, st.ExpiresAt = &e.Timestamp, &e.ExpiresAt
			}
		}
		feeds = append(feeds, st)
	}

	status := map[string]interface{}{
		"status":  "ok",
		"version": s.cfg.Version,
		"time":    now.UTC(),
		"feeds":   feeds,
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// playbookFeedHandler serves a page of the playbook feed.
// GET /api/playbook-feed?page=1&limit=6
func (s *Server) playbookFeedHandler(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	// catches panics of pagination, encoding and loaders without own recovery,
	// rest.Recoverer would answer them with a plain text body instead of the feed error shape
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[ERROR] critical error in playbook feed endpoint: %v", rec)
			renderFeedError(w, r)
		}
	}()

	page := queryInt(r, "page", feed.DefaultPage)
	limit := queryInt(r, "limit", s.cfg.PageSize)

	res, err := s.playbook.Load(r.Context())
	if err != nil {
		log.Printf("[ERROR] critical error in playbook feed endpoint: %v", err)
		renderFeedError(w, r)
		return
	}

	p := feed.Paginate(res.Posts, page, limit)
	log.Printf("[DEBUG] playbook page %d, limit %d: %d of %d posts, %s", page, limit, len(p.Posts), p.TotalPosts, res.State)

	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.cfg.MaxAge.Seconds())))
	RenderJSON(w, r, http.StatusOK, feedResponse{
		Posts:       p.Posts,
		HasMore:     p.HasMore,
		CurrentPage: p.CurrentPage,
		TotalPosts:  p.TotalPosts,
		Cached:      res.Cached,
		LastFetch:   res.LastFetch.UnixMilli(),
	})
}

// thoughtsFeedHandler serves the legacy unpaginated feed. Always 200 with at least one post,
// the fixed fallback post replaces an empty or failed feed.
// GET /api/substack-feed
func (s *Server) thoughtsFeedHandler(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	posts := func() (res []domain.Post) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[ERROR] critical error in thoughts feed endpoint: %v", rec)
				res = nil
			}
		}()
		loaded, err := s.thoughts.Load(r.Context())
		if err != nil {
			log.Printf("[ERROR] critical error in thoughts feed endpoint: %v", err)
			return nil
		}
		return loaded.Posts
	}()

	if len(posts) == 0 {
		log.Printf("[WARN] thoughts feed is empty, serving fallback post")
		posts = []domain.Post{{
			Title:          fallbackTitle,
			ContentSnippet: fallbackDescription,
			Link:           s.cfg.FallbackLink,
			PubDate:        s.cfg.Now().UTC().Format(feed.DateLayout),
		}}
	}

	legacy := make([]domain.LegacyPost, 0, len(posts))
	for _, p := range posts {
		legacy = append(legacy, p.Legacy())
	}
	RenderJSON(w, r, http.StatusOK, legacy)
}

// allowGet answers preflight and rejects methods other than GET, returns true if handler should proceed
func allowGet(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodGet:
		return true
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return false
	default:
		RenderError(w, r, errMethodNotAllowed, http.StatusMethodNotAllowed)
		return false
	}
}

func renderFeedError(w http.ResponseWriter, r *http.Request) {
	RenderJSON(w, r, http.StatusInternalServerError, feedErrorResponse{
		Error:       "RSS feed temporarily unavailable",
		Message:     "Please try again in a few moments",
		Posts:       []domain.Post{},
		HasMore:     false,
		CurrentPage: 1,
		TotalPosts:  0,
	})
}

// queryInt returns a positive or negative integer query param, missing, invalid or zero value gives def
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(name)))
	if err != nil || v == 0 {
		return def
	}
	return v
}

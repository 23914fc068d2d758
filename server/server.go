package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/folio/pkg/cache"
	"github.com/umputun/folio/pkg/domain"
	"github.com/umputun/folio/pkg/feed"
)

//go:generate moq -out mocks/feed_loader.go -pkg mocks -skip-ensure -fmt goimports . FeedLoader

// Server represents HTTP server instance
type Server struct {
	cfg      Config
	playbook FeedLoader
	thoughts FeedLoader
	entries  EntryGetter

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Config holds server settings
type Config struct {
	Listen       string
	Timeout      time.Duration
	StaticDir    string        // built frontend served at /, optional
	MaxAge       time.Duration // browser cache max-age of playbook responses
	PageSize     int           // default playbook page size
	FallbackLink string        // link of the thoughts fallback post
	Version      string
	Debug        bool
	Now          func() time.Time // time source for status and fallback dates, time.Now if nil
}

// FeedLoader serves posts of a single feed
type FeedLoader interface {
	Load(ctx context.Context) (feed.Result, error)
	Source() domain.Source
}

// EntryGetter gives read access to cached feed entries
type EntryGetter interface {
	Get(key string) (cache.Entry, bool)
}

// New initializes a new server instance
func New(cfg Config, playbook, thoughts FeedLoader, entries EntryGetter) *Server {
	if cfg.PageSize <= 0 {
		cfg.PageSize = feed.DefaultLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{
		cfg:      cfg,
		playbook: playbook,
		thoughts: thoughts,
		entries:  entries,
		router:   routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[INFO] starting server on %s", s.cfg.Listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.Timeout,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.lock.Lock()
		defer s.lock.Unlock()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("folio", "umputun", s.cfg.Version))
	s.router.Use(rest.Ping)

	if s.cfg.Debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(64 * 1024)) // only small GET requests expected
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api").Route(func(r *routegroup.Bundle) {
		r.Use(corsHeaders)
		// method checks are done by handlers, they answer OPTIONS and 405 with json
		r.HandleFunc("/playbook-feed", s.playbookFeedHandler)
		r.HandleFunc("/substack-feed", s.thoughtsFeedHandler)
		r.HandleFunc("GET /v1/status", s.statusHandler)
	})

	if s.cfg.StaticDir != "" {
		fs, err := rest.NewFileServer("/", s.cfg.StaticDir, rest.FsOptSPA)
		if err != nil {
			log.Printf("[WARN] can't serve static files from %s: %v", s.cfg.StaticDir, err)
			return
		}
		s.router.Handle("/", fs)
	}
}

// corsHeaders allows cross-origin GET access to the api
func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}

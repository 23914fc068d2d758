package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/folio/pkg/cache"
	"github.com/umputun/folio/pkg/config"
	"github.com/umputun/folio/pkg/domain"
	"github.com/umputun/folio/pkg/feed"
	"github.com/umputun/folio/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" description:"configuration file, built-in defaults if not set"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`
	Static string `long:"static" env:"STATIC_DIR" description:"directory with the built frontend, overrides config"`
	Warmup bool   `long:"warmup" env:"WARMUP" description:"fetch all feeds once before accepting requests"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

// warm-up retries of a single feed
const (
	warmupAttempts = 3
	warmupDelay    = time.Second
	warmupMaxDelay = 5 * time.Second
)

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	SetupLog(opts.Debug)

	log.Printf("[INFO] starting folio version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()

	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

func run(ctx context.Context, opts Opts) error {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	if opts.Static != "" {
		cfg.Server.StaticDir = opts.Static
	}

	store := cache.New(cfg.Cache.TTL)

	playbook := feed.NewService(
		domain.Source{Name: "playbook", URL: cfg.Playbook.URL},
		feed.PlaybookProfile,
		feed.NewParser(cfg.Playbook.Timeout, cfg.Playbook.UserAgent),
		store,
	)

	legacy := feed.LegacyProfile
	legacy.MaxItems = cfg.Thoughts.MaxItems
	thoughts := feed.NewService(
		domain.Source{Name: "thoughts", URL: cfg.Thoughts.URL},
		legacy,
		feed.NewParser(cfg.Thoughts.Timeout, cfg.Thoughts.UserAgent),
		store,
	)

	if opts.Warmup {
		if err := warmup(ctx, playbook, thoughts); err != nil {
			log.Printf("[WARN] warm-up incomplete, feeds will be fetched on first request: %v", err)
		}
	}

	listen, timeout := cfg.GetServerConfig()
	srv := server.New(server.Config{
		Listen:       listen,
		Timeout:      timeout,
		StaticDir:    cfg.Server.StaticDir,
		MaxAge:       cfg.Cache.MaxAge,
		PageSize:     cfg.Playbook.PageSize,
		FallbackLink: cfg.Thoughts.FallbackLink,
		Version:      revision,
		Debug:        opts.Debug,
	}, playbook, thoughts, store)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// warmup refreshes all feeds concurrently, each with a few retries.
// Returns the first error, all feeds are tried regardless.
func warmup(ctx context.Context, services ...*feed.Service) error {
	var g errgroup.Group
	for _, svc := range services {
		g.Go(func() error {
			retrier := repeater.NewBackoff(warmupAttempts, warmupDelay, repeater.WithMaxDelay(warmupMaxDelay))
			if err := retrier.Do(ctx, func() error { return svc.Refresh(ctx) }); err != nil {
				return fmt.Errorf("warm-up of %s feed: %w", svc.Source().Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// SetupLog configures the logger, secrets are masked in the output
func SetupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}

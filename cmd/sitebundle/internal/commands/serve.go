package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/sitebundle/internal/config"
	httpmiddleware "github.com/wolfeidau/sitebundle/internal/http"
	"github.com/wolfeidau/sitebundle/internal/logger"
	"github.com/wolfeidau/sitebundle/internal/site"
	"github.com/wolfeidau/sitebundle/internal/watch"
)

// ServeCmd builds the site, rebuilds it when sources change and serves the output.
type ServeCmd struct {
	ConfigFlags
	Listen   string        `help:"HTTP server listen address" default:"localhost:5173" env:"SITEBUNDLE_LISTEN"`
	Debounce time.Duration `help:"how long to wait for changes to settle before rebuilding" default:"200ms"`
	NoWatch  bool          `help:"serve the initial build without watching for changes" default:"false"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := c.Load()
	if err != nil {
		return err
	}

	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := site.New(cfg)
	if _, err := builder.Build(ctx); err != nil {
		return fmt.Errorf("initial build failed: %w", err)
	}

	srv := configureHTTPServer(c.Listen, c.handler(cfg, log))

	g, gctx := errgroup.WithContext(ctx)

	if !c.NoWatch {
		watcher, err := watch.New(c.Debounce, cfg.OutputDir())
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()

		if err := watcher.Add(cfg.RootDir(), cfg.PartialsDir(), cfg.ContextFile()); err != nil {
			return fmt.Errorf("failed to watch sources: %w", err)
		}

		g.Go(func() error {
			return watcher.Run(gctx, func(ctx context.Context, changed []string) {
				log.Info().Strs("changed", changed).Msg("Rebuilding")
				if _, err := builder.Build(ctx); err != nil {
					// keep serving, the next change retries
					log.Error().Err(err).Msg("Rebuild failed")
				}
			})
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", "http://"+c.Listen).Str("dir", cfg.OutputDir()).Msg("Serving site")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		log.Info().Msg("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (c *ServeCmd) handler(cfg config.Config, log zerolog.Logger) http.Handler {
	return httpmiddleware.Chain(
		httpmiddleware.StaticHandler(cfg.OutputDir()),
		httpmiddleware.ClientIPMiddleware(),
		httpmiddleware.AccessLog(log),
		httpmiddleware.NoCache(),
		httpmiddleware.Gzip(),
	)
}

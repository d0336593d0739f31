// Command prodsearch serves product search over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/prodsearch/internal/app"
	"github.com/kailas-cloud/prodsearch/internal/config"
	logpkg "github.com/kailas-cloud/prodsearch/internal/logger"
	chiTransport "github.com/kailas-cloud/prodsearch/internal/transport/chi"
	"github.com/kailas-cloud/prodsearch/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "prodsearch:", err)
		os.Exit(1)
	}
}

func run() error {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return err //nolint:wrapcheck // already prefixed
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting prodsearch",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("llm_model", cfg.LLM.Model),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	defer a.Close()

	report, err := a.BuildIndex(ctx)
	if err != nil {
		return fmt.Errorf("initial index build: %w", err)
	}
	logger.Info("Index ready",
		zap.Int("indexed", report.Indexed),
		zap.Int("dimensions", report.Dimensions),
		zap.Duration("duration", report.Duration),
	)

	handler := chiTransport.NewServer(a.Catalog, a.Search, a.Indexer, a.Health, logger).
		WithTopK(cfg.Search.DefaultTopK, cfg.Search.MaxTopK).
		Handler()
	return serve(ctx, &cfg.HTTP, handler, logger)
}

// serve runs the HTTP server until ctx is cancelled, then drains it
// within the configured shutdown timeout.
func serve(ctx context.Context, cfg *config.HTTPConfig, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(cfg.ReadTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(cfg.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck // already prefixed
	}
	logger.Info("Server stopped")
	return nil
}

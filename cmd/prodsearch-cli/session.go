package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/app"
	"github.com/kailas-cloud/prodsearch/internal/config"
	logpkg "github.com/kailas-cloud/prodsearch/internal/logger"
	indexinguc "github.com/kailas-cloud/prodsearch/internal/usecase/indexing"
)

// session carries config and logger from Before to the command actions.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	app    *app.App
	report indexinguc.Report
}

func (s *session) setup(c *cli.Context) error {
	var (
		cfg config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(c.String("env"))
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger("cli", c.String("log-level"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	s.cfg = cfg
	s.logger = logger
	return nil
}

func (s *session) teardown(_ *cli.Context) error {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	return nil
}

// open wires the services and builds the index; every command needs a ready index.
func (s *session) open(ctx context.Context) (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	a, err := app.New(ctx, &s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	s.app = a

	report, err := a.BuildIndex(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // already wrapped by BuildIndex
	}
	s.report = report
	s.logger.Info("Index ready",
		zap.Int("indexed", report.Indexed),
		zap.Int("dimensions", report.Dimensions),
		zap.Duration("duration", report.Duration),
	)
	return a, nil
}

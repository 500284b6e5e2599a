package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/logging"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/metrics"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// App holds the wired components shared by every command
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Repo         storage.Repository
	Engine       *matcher.Engine
	Orchestrator *reconcile.Orchestrator
	Metrics      *metrics.Metrics
}

// NewApp opens storage and builds the engine and orchestrator from cfg
func NewApp(cfg *config.Config, verbose bool) (*App, error) {
	loggingCfg := cfg.Observability.Logging
	if verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithComponent(loggingCfg, "reconcile")

	matcherCfg, err := cfg.Matching.MatcherConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load matching config: %w", err)
	}

	repo, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	return newApp(cfg, logger, repo, matcherCfg), nil
}

func newApp(cfg *config.Config, logger *slog.Logger, repo storage.Repository, matcherCfg matcher.Config) *App {
	engine := matcher.NewEngine(matcherCfg, logger.With("component", "matcher"))
	orchestrator := reconcile.NewOrchestrator(repo, repo, engine, logger)

	app := &App{
		Config:       cfg,
		Logger:       logger,
		Repo:         repo,
		Engine:       engine,
		Orchestrator: orchestrator,
	}
	if cfg.Observability.Metrics.Enabled {
		app.Metrics = metrics.New()
		orchestrator.SetMetrics(app.Metrics)
	}
	return app
}

// Close releases storage
func (a *App) Close() error {
	return a.Repo.Close()
}

// Run executes one reconciliation run
func (a *App) Run(ctx context.Context, opts reconcile.Options) (*reconcile.Summary, error) {
	return a.Orchestrator.Run(ctx, opts)
}

// RunDefaults converts the run section of the config into run options
func RunDefaults(cfg config.RunConfig) (reconcile.Options, error) {
	opts := reconcile.DefaultOptions()

	if len(cfg.Sources) > 0 {
		sources, err := ParseSources(strings.Join(cfg.Sources, ","))
		if err != nil {
			return opts, err
		}
		opts.Sources = sources
	}
	if cfg.LookbackDays > 0 {
		opts.LookbackDays = cfg.LookbackDays
	}
	opts.Currency = cfg.Currency
	opts.PreserveReconciliation = cfg.Preserve()
	opts.MarkNeedsReview = cfg.MarkNeedsReview
	if cfg.SampleSize > 0 {
		opts.SampleSize = cfg.SampleSize
	}
	if cfg.PageSize > 0 {
		opts.PageSize = cfg.PageSize
	}
	return opts, nil
}

// ParseSources parses a comma separated source list
func ParseSources(list string) ([]candidate.Source, error) {
	var sources []candidate.Source
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		src, ok := candidate.ParseSource(part)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", part)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

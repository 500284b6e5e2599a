package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/api"
	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// RunReconcile executes one run and prints its summary
func RunReconcile(ctx context.Context, app *App, flags *RunFlags, w io.Writer) error {
	defaults, err := RunDefaults(app.Config.Run)
	if err != nil {
		return err
	}
	opts, err := flags.ToOptions(defaults)
	if err != nil {
		return err
	}

	if !flags.JSON {
		PrintHeader(w, opts.DryRun)
	}

	summary, runErr := app.Run(ctx, opts)
	if summary != nil {
		if flags.JSON {
			if err := PrintJSON(w, dto.NewSummaryResponse(summary)); err != nil {
				return fmt.Errorf("failed to write summary: %w", err)
			}
		} else {
			PrintSummary(w, summary)
		}
	}
	return runErr
}

// RunServe runs the API server until SIGINT or SIGTERM.
func RunServe(app *App, flags *ServeFlags) error {
	defaults, err := RunDefaults(app.Config.Run)
	if err != nil {
		return err
	}

	apiCfg := api.DefaultConfig()
	apiCfg.Port = app.Config.Server.Port
	if flags.Port > 0 {
		apiCfg.Port = flags.Port
	}
	if len(app.Config.Server.AllowedOrigins) > 0 {
		apiCfg.AllowedOrigins = app.Config.Server.AllowedOrigins
	}
	apiCfg.RunDefaults = defaults
	if app.Metrics != nil {
		apiCfg.Metrics = app.Metrics.Handler()
		apiCfg.MetricsPath = app.Config.Observability.Metrics.Path
	}

	logger := app.Logger.With("component", "api")
	server := api.NewServer(apiCfg, app.Repo, app, logger)

	// Handle graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

// RunListRuns prints recent runs, one run, or the matches of one run
func RunListRuns(repo storage.RunRepository, flags *RunsFlags, w io.Writer) error {
	if flags.ID == "" {
		runs, err := repo.ListRuns(flags.Limit)
		if err != nil {
			return err
		}
		PrintRuns(w, runs)
		return nil
	}

	run, err := repo.GetRun(flags.ID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", flags.ID, err)
	}
	PrintRuns(w, []storage.RunRecord{*run})

	if flags.Matches {
		matches, err := repo.ListMatchResults(flags.ID, flags.Limit, 0)
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		PrintMatches(w, matches)
	}
	return nil
}

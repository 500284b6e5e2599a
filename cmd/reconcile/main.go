package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/eshaffer321/ledger-reconciler/internal/cli"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg := config.LoadOrEnvFrom(*configFile)

	if err := run(cfg, args[0], args[1:], *verbose); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, subcommand string, args []string, verbose bool) error {
	switch subcommand {
	case "run":
		flags, err := cli.ParseRunFlags(args, os.Stderr)
		if err != nil {
			return err
		}
		app, err := cli.NewApp(cfg, verbose || flags.Verbose)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return cli.RunReconcile(ctx, app, flags, os.Stdout)

	case "serve":
		flags, err := cli.ParseServeFlags(args, os.Stderr)
		if err != nil {
			return err
		}
		app, err := cli.NewApp(cfg, verbose || flags.Verbose)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()
		return cli.RunServe(app, flags)

	case "runs":
		flags, err := cli.ParseRunsFlags(args, os.Stderr)
		if err != nil {
			return err
		}
		app, err := cli.NewApp(cfg, verbose)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()
		return cli.RunListRuns(app.Repo, flags, os.Stdout)

	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %s", subcommand)
	}
}

func printUsage() {
	fmt.Println("Ledger Reconciler")
	fmt.Println("=================")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  reconcile [global options] <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       Match bank entries to invoices, gateway transactions and payouts")
	fmt.Println("  serve     Start the HTTP API")
	fmt.Println("  runs      List past runs (-id <run> -matches for details)")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  -config string      Configuration file path (default config.yaml)")
	fmt.Println("  -verbose            Enable verbose logging")
}

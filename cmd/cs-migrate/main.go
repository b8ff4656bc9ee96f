// Package main is the entry point for the credential service migration tool.
// This tool manages PostgreSQL and SQLite schema migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/jordansmalls/cs/internal/app"
	"github.com/jordansmalls/cs/internal/config"
	"github.com/jordansmalls/cs/internal/lock"
	"github.com/jordansmalls/cs/internal/logging"
	"github.com/jordansmalls/cs/internal/repository/factory"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	switch command {
	case "version":
		fmt.Printf("Credential Service Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return

	case "help", "-h", "--help":
		printUsage()
		return

	case "up", "down", "status", "current":

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err := run(command, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command, configPath string) error {
	cfg, err := config.LoadTool(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := factory.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	if res.Migrator == nil {
		return fmt.Errorf("driver %q has no schema to migrate", cfg.Database.Driver)
	}

	switch command {
	case "up":
		locker, closeLocker, err := newLocker(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeLocker()
		if err := res.Migrate(ctx, locker); err != nil {
			return err
		}
		return printCurrent(ctx, res)

	case "down":
		if err := res.Migrator.Down(ctx); err != nil {
			return err
		}
		return printCurrent(ctx, res)

	case "status":
		status, err := res.Migrator.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
		for _, s := range status {
			applied := "-"
			if !s.AppliedAt.IsZero() {
				applied = s.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
		}
		return w.Flush()

	case "current":
		return printCurrent(ctx, res)
	}

	return nil
}

// newLocker returns a Redis lock when Redis is configured so that concurrent
// deploys do not migrate twice. Without Redis there is nothing to share.
func newLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (lock.Locker, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := app.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug().Str("addr", cfg.Redis.Addr()).Msg("using redis migration lock")
	return lock.NewRedisLocker(client), func() { _ = client.Close() }, nil
}

func printCurrent(ctx context.Context, res *factory.Result) error {
	v, err := res.Migrator.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Schema version: %d\n", v)
	return nil
}

func printUsage() {
	fmt.Println(`Credential Service Migration Tool

Usage:
  cs-migrate [-config <file>] <command>

Commands:
  up          Run all pending migrations
  down        Rollback the last migration
  status      Show every migration and whether it is applied
  current     Print the current schema version
  version     Print version information
  help        Show this help message

Configuration:
  Database settings are read from the config file and CS_DATABASE_* environment
  variables, e.g. CS_DATABASE_DRIVER=postgres CS_DATABASE_HOST=localhost.

Examples:
  cs-migrate up
  cs-migrate -config /etc/cs/config.yaml status
  cs-migrate down`)
}

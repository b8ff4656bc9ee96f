// Package main is the entry point for the credential service admin CLI.
// This tool provides administrative commands for managing identities and secrets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jordansmalls/cs/internal/config"
	"github.com/jordansmalls/cs/internal/domain"
	"github.com/jordansmalls/cs/internal/logging"
	"github.com/jordansmalls/cs/internal/pkg/crypto"
	"github.com/jordansmalls/cs/internal/repository"
	"github.com/jordansmalls/cs/internal/repository/factory"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	var err error
	switch command {
	case "version":
		fmt.Printf("Credential Service Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "keygen":
		err = keygen(os.Args[2:])

	case "user":
		err = user(os.Args[2:])

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func keygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	size := fs.Int("size", crypto.SecretSize, "number of random bytes")
	encoding := fs.String("encoding", crypto.EncodingBase64, "output encoding (base64 or hex)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret, err := crypto.GenerateSecret(*size, *encoding)
	if err != nil {
		return err
	}
	fmt.Println(secret)
	return nil
}

func user(args []string) error {
	if len(args) < 1 {
		return errors.New("user requires a subcommand: show, deactivate, activate")
	}
	sub := args[0]

	fs := flag.NewFlagSet("user "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("user %s requires exactly one <id|username|email>", sub)
	}
	ref := fs.Arg(0)

	switch sub {
	case "show", "deactivate", "activate":
	default:
		return fmt.Errorf("unknown user subcommand: %s", sub)
	}

	cfg, err := config.LoadTool(*configPath)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "memory" {
		return errors.New("the memory driver keeps no data between processes")
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

	users := res.Repos.User
	u, err := findUser(ctx, users, ref)
	if err != nil {
		return err
	}

	switch sub {
	case "deactivate", "activate":
		// activate is an operator override; the API never reactivates.
		if err := users.SetActive(ctx, u.ID, sub == "activate"); err != nil {
			return err
		}
		if u, err = users.GetByID(ctx, u.ID); err != nil {
			return err
		}
		fmt.Printf("User %s is now %s\n", u.Username, activeLabel(u.IsActive))
	}

	printUser(u)
	return nil
}

// findUser resolves ref as an ID first, then as a username or email.
func findUser(ctx context.Context, users repository.UserRepository, ref string) (*domain.User, error) {
	u, err := users.GetByID(ctx, ref)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	u, err = users.GetByLogin(ctx, ref)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("no user matches %q", ref)
	}
	return u, err
}

func printUser(u *domain.User) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", u.ID)
	fmt.Fprintf(w, "Username\t%s\n", u.Username)
	fmt.Fprintf(w, "Email\t%s\n", u.Email)
	fmt.Fprintf(w, "Status\t%s\n", activeLabel(u.IsActive))
	fmt.Fprintf(w, "Created\t%s\n", u.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Updated\t%s\n", u.UpdatedAt.UTC().Format(time.RFC3339))
	_ = w.Flush()
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func printUsage() {
	fmt.Println(`Credential Service Admin CLI

Usage:
  cs-admin <command> [arguments]

Commands:
  keygen      Generate a session signing secret for auth.jwt_secret
  user        Inspect or (de)activate an identity (show, deactivate, activate)
  version     Print version information
  help        Show this help message

Examples:
  cs-admin keygen
  cs-admin keygen -size 64 -encoding hex
  cs-admin user show alice
  cs-admin user deactivate -config /etc/cs/config.yaml alice@example.com
  cs-admin user activate 6f1c0f4e-8d1b-4b53-9a53-0d0f5f0e6a11`)
}

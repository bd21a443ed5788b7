// Command migrate applies the thread and report schema to the configured
// Postgres database.
//
// Usage:
//
//	migrate [-path DIR] [-timeout D] up
//	migrate [-path DIR] [-timeout D] down
//	migrate [-path DIR] [-timeout D] steps N
//	migrate [-path DIR] [-timeout D] status
//	migrate [-path DIR] [-timeout D] force V
//
// Without -path the schema compiled into the binary is used.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-report-service/internal/config"
	"github.com/helixir/research-report-service/internal/database"
	"github.com/helixir/research-report-service/internal/observability"
	"github.com/helixir/research-report-service/migrations"
)

var errUsage = errors.New("usage error")

// command is a parsed migrate invocation.
type command struct {
	name string
	arg  int
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	schemaDir := fs.String("path", "", "schema directory on disk; overrides database.migration_path")
	timeout := fs.Duration("timeout", 30*time.Second, "database connect timeout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: migrate [flags] up | down | steps N | status | force V")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cmd, err := parseCommand(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "migrate").Logger()

	dir := cfg.Database.MigrationPath
	if *schemaDir != "" {
		dir = *schemaDir
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := openMigrator(db, dir, logger)
	if err != nil {
		return fmt.Errorf("open schema source: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := apply(migrator, cmd, logger); err != nil {
		return err
	}
	logStatus(migrator, logger)
	return nil
}

// parseCommand validates the positional arguments.
func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errors.New("missing command")
	}

	cmd := command{name: args[0]}
	switch cmd.name {
	case "up", "down", "status":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%s takes no arguments", cmd.name)
		}
	case "steps", "force":
		if len(args) != 2 {
			return command{}, fmt.Errorf("%s needs exactly one number", cmd.name)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf("%s: %q is not a number", cmd.name, args[1])
		}
		if cmd.name == "steps" && n == 0 {
			return command{}, errors.New("steps: N must not be zero")
		}
		if cmd.name == "force" && n < 0 {
			return command{}, errors.New("force: version must not be negative")
		}
		cmd.arg = n
	default:
		return command{}, fmt.Errorf("unknown command %q", cmd.name)
	}
	return cmd, nil
}

func apply(m *database.Migrator, cmd command, logger zerolog.Logger) error {
	switch cmd.name {
	case "up":
		logger.Info().Msg("applying pending schema changes")
		return wrap("up", m.Up())
	case "down":
		logger.Warn().Msg("dropping the thread and report schema")
		return wrap("down", m.Down())
	case "steps":
		logger.Info().Int("steps", cmd.arg).Msg("moving schema version")
		return wrap("steps", m.Steps(cmd.arg))
	case "force":
		logger.Warn().Int("version", cmd.arg).Msg("marking schema version clean without running migrations")
		return wrap("force", m.Force(cmd.arg))
	default:
		return nil
	}
}

func wrap(op string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// openMigrator reads migrations from dir when set, else from the binary.
func openMigrator(db *database.DB, dir string, logger zerolog.Logger) (*database.Migrator, error) {
	if dir != "" {
		logger.Info().Str("path", dir).Msg("using schema files from disk")
		return database.NewMigrator(db, dir, logger)
	}
	return database.NewEmbeddedMigrator(db, migrations.FS, logger)
}

func logStatus(m *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := m.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("schema version unknown")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("schema version")
}

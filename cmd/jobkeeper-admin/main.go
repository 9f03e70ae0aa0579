// Command jobkeeper-admin provides operational maintenance commands for the
// job bookkeeping database.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jobkeeper/jobkeeper/config"
	"github.com/jobkeeper/jobkeeper/internal/bootstrap"
	"github.com/jobkeeper/jobkeeper/internal/data"
	"github.com/jobkeeper/jobkeeper/internal/domain/model"
	"github.com/jobkeeper/jobkeeper/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultCommandTimeout = 5 * time.Minute

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger := bootstrap.InitLogger(cfg.IsDev)

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"expire": {
			name:        "expire",
			description: "Delete every job whose destruction time has passed",
			run:         runExpire,
		},
		"archive": {
			name:        "archive",
			description: "Archive one job so expiry no longer considers it",
			run:         runArchive,
		},
		"services": {
			name:        "services",
			description: "List service names with jobs on record",
			run:         runServices,
		},
		"users": {
			name:        "users",
			description: "List job owners, optionally restricted to one service",
			run:         runUsers,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: jobkeeper-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := cmds[name]
		if err := writef(os.Stdout, "  %-12s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

type expireOptions struct {
	Timeout time.Duration
	DryRun  bool
}

type archiveOptions struct {
	Service string
	Owner   string
	ID      int64
}

type usersOptions struct {
	Service string
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("running database migrations")

		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}

		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runExpire(cmdCtx *commandContext, args []string) error {
	opts, err := parseExpireFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		store := data.NewJobStore(db, data.StoreConfig{Logger: cmdCtx.Logger})

		if opts.DryRun {
			expired, listErr := store.ListExpired(ctx)
			if listErr != nil {
				return fmt.Errorf("list expired jobs: %w", listErr)
			}
			for _, job := range expired {
				if printErr := writef(
					os.Stdout,
					"%s/%d owner=%s phase=%s destruction=%s\n",
					job.Service, job.ID, job.Owner, job.Phase,
					job.DestructionTime.Format(time.RFC3339),
				); printErr != nil {
					return fmt.Errorf("print expired job: %w", printErr)
				}
			}
			return writef(os.Stdout, "Dry-run: would delete %d jobs\n", len(expired))
		}

		jobs, svcErr := newJobService(cmdCtx, store)
		if svcErr != nil {
			return svcErr
		}
		deleted, delErr := jobs.DeleteExpired(ctx)
		if delErr != nil {
			return fmt.Errorf("delete expired jobs: %w", delErr)
		}
		return writef(os.Stdout, "Deleted %d expired jobs\n", deleted)
	})
}

func runArchive(cmdCtx *commandContext, args []string) error {
	opts, err := parseArchiveFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		store := data.NewJobStore(db, data.StoreConfig{Logger: cmdCtx.Logger})
		jobs, svcErr := newJobService(cmdCtx, store)
		if svcErr != nil {
			return svcErr
		}

		job, archiveErr := jobs.Archive(ctx, model.JobIdentifier{
			Service: opts.Service,
			ID:      opts.ID,
			Owner:   opts.Owner,
		})
		if archiveErr != nil {
			return archiveErr
		}

		return writef(os.Stdout, "Archived job %s/%d (phase %s)\n", job.Service, job.ID, job.Phase)
	})
}

func runServices(cmdCtx *commandContext, _ []string) error {
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		store := data.NewJobStore(db, data.StoreConfig{Logger: cmdCtx.Logger})

		services, err := store.ListServices(ctx)
		if err != nil {
			return fmt.Errorf("list services: %w", err)
		}
		if len(services) == 0 {
			return writeln(os.Stdout, "(no services found)")
		}
		for _, name := range services {
			if printErr := writeln(os.Stdout, name); printErr != nil {
				return printErr
			}
		}
		return nil
	})
}

func runUsers(cmdCtx *commandContext, args []string) error {
	opts, err := parseUsersFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		store := data.NewJobStore(db, data.StoreConfig{Logger: cmdCtx.Logger})

		users, listErr := store.ListUsers(ctx, opts.Service)
		if listErr != nil {
			return fmt.Errorf("list users: %w", listErr)
		}
		if len(users) == 0 {
			return writeln(os.Stdout, "(no users found)")
		}
		for _, name := range users {
			if printErr := writeln(os.Stdout, name); printErr != nil {
				return printErr
			}
		}
		return nil
	})
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultCommandTimeout}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultCommandTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseExpireFlags(args []string) (expireOptions, error) {
	fs := flag.NewFlagSet("expire", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := expireOptions{Timeout: defaultCommandTimeout}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultCommandTimeout,
		"Maximum duration to wait for expiry to complete",
	)
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print expired jobs without deleting them")

	if err := fs.Parse(args); err != nil {
		return expireOptions{}, err
	}
	if opts.Timeout <= 0 {
		return expireOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseArchiveFlags(args []string) (archiveOptions, error) {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts archiveOptions
	fs.StringVar(&opts.Service, "service", "", "Service the job belongs to (required)")
	fs.StringVar(&opts.Owner, "owner", "", "Optional owner restriction")
	fs.Int64Var(&opts.ID, "id", 0, "Job identifier (required)")

	if err := fs.Parse(args); err != nil {
		return archiveOptions{}, err
	}

	opts.Service = strings.TrimSpace(opts.Service)
	if opts.Service == "" {
		return archiveOptions{}, errors.New("--service is required")
	}
	if opts.ID <= 0 {
		return archiveOptions{}, errors.New("--id must be a positive job identifier")
	}
	return opts, nil
}

func parseUsersFlags(args []string) (usersOptions, error) {
	fs := flag.NewFlagSet("users", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts usersOptions
	fs.StringVar(&opts.Service, "service", "", "Restrict owners to one service")

	if err := fs.Parse(args); err != nil {
		return usersOptions{}, err
	}

	opts.Service = strings.TrimSpace(opts.Service)
	return opts, nil
}

func newJobService(cmdCtx *commandContext, store *data.JobStore) (*service.JobService, error) {
	jobs, err := service.NewJobService(service.JobServiceOptions{
		Store:  store,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create job service: %w", err)
	}
	return jobs, nil
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func writef(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func writeln(w io.Writer, args ...any) error {
	if _, err := fmt.Fprintln(w, args...); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

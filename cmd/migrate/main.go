package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/finhr/backend/internal/infrastructure/config"
	"github.com/finhr/backend/internal/infrastructure/logger"
	"github.com/finhr/backend/internal/infrastructure/migration"
	embedded "github.com/finhr/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("invalid usage")

// cli carries what the commands share. migrator is nil for offline commands.
type cli struct {
	log      *zap.Logger
	dir      string
	embedded bool
	migrator *migration.Migrator
}

type command struct {
	usage   string
	summary string
	online  bool
	run     func(c *cli, args []string) error
}

var commands = map[string]command{
	"up": {"up", "Apply all pending migrations", true, func(c *cli, _ []string) error {
		return c.migrator.Up()
	}},
	"down": {"down", "Roll back all migrations", true, func(c *cli, _ []string) error {
		return c.migrator.Down()
	}},
	"step": {"step <n>", "Apply n migrations (positive=up, negative=down)", true, func(c *cli, args []string) error {
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return c.migrator.Steps(n)
	}},
	"goto": {"goto <version>", "Migrate to a specific version", true, func(c *cli, args []string) error {
		v, err := intArg(args)
		if err != nil || v < 0 {
			return errUsage
		}
		return c.migrator.GoTo(uint(v))
	}},
	"version": {"version", "Show current migration version", true, func(c *cli, _ []string) error {
		version, dirty, err := c.migrator.Version()
		if err != nil {
			return err
		}
		c.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}},
	"status": {"status", "Show the applied version and the pending migrations", true, runStatus},
	"force": {"force <version>", "Force set migration version (repairs a dirty state)", true, func(c *cli, args []string) error {
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return c.migrator.Force(v)
	}},
	"drop": {"drop -confirm", "Drop all database objects", true, func(c *cli, args []string) error {
		if len(args) == 0 || (args[0] != "-confirm" && args[0] != "--confirm") {
			return fmt.Errorf("drop needs -confirm: %w", errUsage)
		}
		return c.migrator.Drop()
	}},
	"create": {"create <name> [desc]", "Create a new migration file pair", false, func(c *cli, args []string) error {
		if len(args) == 0 {
			return errUsage
		}
		description := ""
		if len(args) > 1 {
			description = args[1]
		}
		mf, err := migration.CreateMigration(c.dir, args[0], description)
		if err != nil {
			return err
		}
		c.log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	}},
	"list": {"list", "List available migrations", false, func(c *cli, _ []string) error {
		names, err := c.available()
		if err != nil {
			return err
		}
		c.log.Info("Available migrations", zap.Int("count", len(names)))
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return nil
	}},
}

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	// create and list work on a directory; the others use the embedded set unless -path is given
	dir := migrationsPath
	if dir == "" {
		dir = defaultMigrationsPath
	}
	if dir, err = filepath.Abs(dir); err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}
	c := &cli{log: log, dir: dir, embedded: migrationsPath == ""}

	if cmd.online {
		closeFn, err := c.connect()
		if err != nil {
			log.Fatal("Failed to prepare migrator", zap.Error(err))
		}
		defer closeFn()
	}

	log.Debug("Running migration command",
		zap.String("command", args[0]),
		zap.String("migrations_path", dir),
		zap.Bool("embedded", c.embedded),
	)
	if err := cmd.run(c, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "usage: migrate %s\n", cmd.usage)
			os.Exit(2)
		}
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

// connect opens the configured database and builds the migrator
func (c *cli) connect() (func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var opts []migration.Option
	if !c.embedded {
		opts = append(opts, migration.WithPath(c.dir))
	}
	m, err := migration.New(db, c.log, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.migrator = m
	return func() {
		_ = m.Close()
		_ = db.Close()
	}, nil
}

func (c *cli) available() ([]string, error) {
	if c.embedded {
		return migration.List(embedded.FS)
	}
	return migration.ListMigrations(c.dir)
}

func runStatus(c *cli, _ []string) error {
	version, dirty, err := c.migrator.Version()
	if err != nil {
		return err
	}
	names, err := c.available()
	if err != nil {
		return err
	}
	pending := migration.Pending(names, version)
	c.log.Info("Migration status",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
		zap.Int("pending", len(pending)),
	)
	for _, name := range pending {
		fmt.Println("  pending:", name)
	}
	return nil
}

func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%q is not a number: %w", args[0], errUsage)
	}
	return n, nil
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "finhr database migration tool\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-22s %s\n", commands[name].usage, commands[name].summary)
	}
	fmt.Fprintln(os.Stderr, `
Flags:
  -path string          Read migrations from a directory instead of the embedded set
                        (create and list default to ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)

The database comes from config.toml and FINHR_DATABASE_* environment variables.`)
}

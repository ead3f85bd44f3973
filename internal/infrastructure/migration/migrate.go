package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/finhr/backend/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator applies the schema migrations to one postgres database
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

type Option func(*source)

type source struct {
	dir string
	fs  fs.FS
}

// WithPath reads migrations from a directory instead of the embedded set
func WithPath(dir string) Option {
	return func(s *source) { s.dir = dir }
}

// WithSource reads migrations from fsys
func WithSource(fsys fs.FS) Option {
	return func(s *source) { s.fs = fsys }
}

// New prepares a Migrator on an open connection. The embedded
// migrations are used unless an option says otherwise.
func New(db *sql.DB, log *zap.Logger, opts ...Option) (*Migrator, error) {
	src := &source{fs: migrations.FS}
	for _, opt := range opts {
		opt(src)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("migration")

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres driver: %w", err)
	}

	var m *migrate.Migrate
	if src.dir != "" {
		m, err = migrate.NewWithDatabaseInstance("file://"+src.dir, "postgres", driver)
	} else {
		d, ioErr := iofs.New(src.fs, ".")
		if ioErr != nil {
			return nil, fmt.Errorf("open migration source: %w", ioErr)
		}
		m, err = migrate.NewWithInstance("iofs", d, "postgres", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("prepare migrations: %w", err)
	}
	m.Log = migrateLogger{log: log}

	return &Migrator{m: m, log: log}, nil
}

// Up applies every pending migration
func (mg *Migrator) Up() error {
	return mg.apply("up", mg.m.Up)
}

// Down reverts every applied migration
func (mg *Migrator) Down() error {
	return mg.apply("down", mg.m.Down)
}

// Steps applies n migrations; negative n reverts
func (mg *Migrator) Steps(n int) error {
	return mg.apply(fmt.Sprintf("steps %+d", n), func() error { return mg.m.Steps(n) })
}

// GoTo migrates up or down to version
func (mg *Migrator) GoTo(version uint) error {
	return mg.apply(fmt.Sprintf("goto %d", version), func() error { return mg.m.Migrate(version) })
}

// apply runs one golang-migrate action. ErrNoChange is success.
func (mg *Migrator) apply(action string, run func() error) error {
	mg.log.Info("Applying migrations", zap.String("action", action))
	err := run()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		mg.log.Info("Schema already up to date", zap.String("action", action))
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s: %w", action, err)
	}

	version, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	mg.log.Info("Migrations applied",
		zap.String("action", action),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Version reports the applied version; 0 means none
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clean without running anything
func (mg *Migrator) Force(version int) error {
	mg.log.Warn("Forcing migration version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every object in the database
func (mg *Migrator) Drop() error {
	mg.log.Warn("Dropping all database objects")
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	return nil
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// migrateLogger adapts zap to migrate.Logger
type migrateLogger struct {
	log *zap.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return l.log.Core().Enabled(zap.DebugLevel)
}

package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finhr/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const pingTimeout = 2 * time.Second

// Database owns the connection pool shared by the repositories
type Database struct {
	DB *gorm.DB
}

// Option adjusts the gorm.Config used by Open
type Option func(*gorm.Config)

// WithLogger replaces the silent default statement logger
func WithLogger(l gormlogger.Interface) Option {
	return func(c *gorm.Config) { c.Logger = l }
}

// Open connects to PostgreSQL with a pool sized from cfg and pings it
// before returning.
func Open(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	gormCfg := gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}
	for _, opt := range opts {
		opt(&gormCfg)
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBName, err)
	}
	d := &Database{DB: gdb}
	pool, err := d.pool()
	if err != nil {
		return nil, err
	}
	configurePool(pool, cfg)
	if err := d.Ping(); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return d, nil
}

func configurePool(pool *sql.DB, cfg *config.DatabaseConfig) {
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
}

func (d *Database) pool() (*sql.DB, error) {
	pool, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("database pool unavailable: %w", err)
	}
	return pool, nil
}

func (d *Database) Close() error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	return pool.Close()
}

// Ping is the database health check
func (d *Database) Ping() error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// PoolStats feeds the pool gauges; zero values when the pool is gone
func (d *Database) PoolStats() sql.DBStats {
	pool, err := d.pool()
	if err != nil {
		return sql.DBStats{}
	}
	return pool.Stats()
}

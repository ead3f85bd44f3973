package cache

import (
	"fmt"

	"github.com/finhr/backend/internal/domain/sequence"
	"github.com/finhr/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SequenceStoreFactory creates allocator state stores based on configuration
type SequenceStoreFactory struct {
	redisConfig           config.RedisConfig
	database              sequence.Repository
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SequenceStoreFactoryOption is a functional option for configuring the factory
type SequenceStoreFactoryOption func(*SequenceStoreFactory)

// WithFactoryLogger sets the logger for the factory
func WithFactoryLogger(logger *zap.Logger) SequenceStoreFactoryOption {
	return func(f *SequenceStoreFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithDatabaseStore provides the store used for the "database" backend
func WithDatabaseStore(repo sequence.Repository) SequenceStoreFactoryOption {
	return func(f *SequenceStoreFactory) {
		f.database = repo
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store when Redis is unavailable.
// Default is false: a silently process-local counter would hand out duplicate codes across instances.
func WithInMemoryFallback(allow bool) SequenceStoreFactoryOption {
	return func(f *SequenceStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSequenceStoreFactory creates a new factory
func NewSequenceStoreFactory(cfg config.RedisConfig, opts ...SequenceStoreFactoryOption) *SequenceStoreFactory {
	f := &SequenceStoreFactory{
		redisConfig: cfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStore creates a Redis-backed store
func (f *SequenceStoreFactory) CreateRedisStore() (*RedisSequenceStore, error) {
	store, err := NewRedisSequenceStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis sequence store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates a process-local store.
// WARNING: counters are lost on restart and not shared between instances.
func (f *SequenceStoreFactory) CreateInMemoryStore() *InMemorySequenceStore {
	return NewInMemorySequenceStore()
}

// CreateStore returns the store for the named backend
func (f *SequenceStoreFactory) CreateStore(backend string) (sequence.Repository, error) {
	switch backend {
	case config.SequenceStoreDatabase:
		if f.database == nil {
			return nil, fmt.Errorf("sequence store %q requires a database repository", backend)
		}
		f.logger.Info("using database sequence store")
		return f.database, nil
	case config.SequenceStoreMemory:
		f.logger.Warn("using in-memory sequence store; codes restart after a process restart")
		return f.CreateInMemoryStore(), nil
	case config.SequenceStoreRedis:
		store, err := f.CreateRedisStore()
		if err == nil {
			f.logger.Info("using Redis sequence store")
			return store, nil
		}
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("Redis required for sequence store but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory sequence store. "+
			"Codes may collide across instances.",
			zap.Error(err),
		)
		return f.CreateInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown sequence store %q", backend)
	}
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/finhr/backend/internal/domain/sequence"
	"github.com/finhr/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSequenceStore implements sequence.Repository on Redis hashes.
// Compare-and-swap runs inside WATCH/MULTI so that concurrent allocators
// across instances never hand out the same code.
type RedisSequenceStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisSequenceStore creates a new Redis-based sequence store
func NewRedisSequenceStore(cfg RedisConfig) (*RedisSequenceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSequenceStoreWithClient(client, ""), nil
}

// NewRedisSequenceStoreWithClient creates a store with an existing Redis client
func NewRedisSequenceStoreWithClient(client *redis.Client, keyPrefix string) *RedisSequenceStore {
	if keyPrefix == "" {
		keyPrefix = "seq:"
	}
	return &RedisSequenceStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisSequenceStore) key(tenantID uuid.UUID, scope sequence.Scope) string {
	return s.keyPrefix + tenantID.String() + ":" + string(scope)
}

// Fetch reads the state of a scope
func (s *RedisSequenceStore) Fetch(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope) (sequence.State, error) {
	return s.read(ctx, s.client, s.key(tenantID, scope))
}

// Create stores the initial state if the scope does not exist yet
func (s *RedisSequenceStore) Create(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope, state sequence.State) error {
	key := s.key(tenantID, scope)
	created, err := s.client.HSetNX(ctx, key, "counter", state.Counter).Result()
	if err != nil {
		return fmt.Errorf("failed to create sequence: %w", err)
	}
	if !created {
		return shared.ErrAlreadyExists
	}
	if err := s.client.HSet(ctx, key, "prefix", state.Prefix, "width", state.Width).Err(); err != nil {
		return fmt.Errorf("failed to create sequence: %w", err)
	}
	return nil
}

// CompareAndSwap stores next if the stored counter, prefix and width still equal expected
func (s *RedisSequenceStore) CompareAndSwap(ctx context.Context, tenantID uuid.UUID, scope sequence.Scope, expected, next sequence.State) error {
	key := s.key(tenantID, scope)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return sequence.ErrAllocatorConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "prefix", next.Prefix, "counter", next.Counter, "width", next.Width)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return sequence.ErrAllocatorConflict
	}
	return err
}

// Close closes the Redis client
func (s *RedisSequenceStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisSequenceStore) GetClient() *redis.Client {
	return s.client
}

func (s *RedisSequenceStore) read(ctx context.Context, c redis.Cmdable, key string) (sequence.State, error) {
	fields, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return sequence.State{}, fmt.Errorf("failed to read sequence: %w", err)
	}
	if len(fields) == 0 {
		return sequence.State{}, shared.ErrNotFound
	}

	counter, err := strconv.ParseInt(fields["counter"], 10, 64)
	if err != nil {
		return sequence.State{}, fmt.Errorf("corrupt sequence counter at %s: %w", key, err)
	}
	width := 0
	if w := fields["width"]; w != "" {
		if width, err = strconv.Atoi(w); err != nil {
			return sequence.State{}, fmt.Errorf("corrupt sequence width at %s: %w", key, err)
		}
	}
	return sequence.State{Prefix: fields["prefix"], Counter: counter, Width: width}, nil
}

// Ensure RedisSequenceStore implements sequence.Repository
var _ sequence.Repository = (*RedisSequenceStore)(nil)

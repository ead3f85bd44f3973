package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/finhr/backend/internal/domain/reference"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultCloseTimeout        = 5 * time.Second
	defaultInvalidationChannel = "finhr:catalog:invalidate"
)

// CatalogInvalidation announces that a tenant's catalog of one kind changed
type CatalogInvalidation struct {
	TenantID  uuid.UUID             `json:"tenant_id"`
	Kind      reference.CatalogKind `json:"kind"`
	Origin    string                `json:"origin"`
	Timestamp int64                 `json:"timestamp"`
}

// InvalidationPublisher broadcasts catalog changes to other instances
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, tenantID uuid.UUID, kind reference.CatalogKind) error
}

// RedisCatalogInvalidator fans catalog invalidations out over Redis Pub/Sub so
// that every instance's CachedCatalogRepository drops stale fetches.
type RedisCatalogInvalidator struct {
	client    *redis.Client
	channel   string
	origin    string
	logger    *zap.Logger
	cancelFn  context.CancelFunc
	doneCh    chan struct{}
	doneOnce  sync.Once
	mu        sync.Mutex
	isRunning bool
}

// InvalidatorOption is a functional option for configuring the invalidator
type InvalidatorOption func(*RedisCatalogInvalidator)

// WithInvalidatorChannel sets the Pub/Sub channel name
func WithInvalidatorChannel(channel string) InvalidatorOption {
	return func(i *RedisCatalogInvalidator) {
		if channel != "" {
			i.channel = channel
		}
	}
}

// WithInvalidatorLogger sets the logger for the invalidator
func WithInvalidatorLogger(logger *zap.Logger) InvalidatorOption {
	return func(i *RedisCatalogInvalidator) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewRedisCatalogInvalidator creates an invalidator on a shared Redis client.
// The caller keeps ownership of the client.
func NewRedisCatalogInvalidator(client *redis.Client, opts ...InvalidatorOption) *RedisCatalogInvalidator {
	i := &RedisCatalogInvalidator{
		client:  client,
		channel: defaultInvalidationChannel,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// PublishInvalidation sends a change notification to all subscribers
func (i *RedisCatalogInvalidator) PublishInvalidation(ctx context.Context, tenantID uuid.UUID, kind reference.CatalogKind) error {
	msg := CatalogInvalidation{
		TenantID:  tenantID,
		Kind:      kind,
		Origin:    i.origin,
		Timestamp: time.Now().UnixNano(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}
	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		i.logger.Error("Failed to publish catalog invalidation",
			zap.String("channel", i.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Subscribe blocks, invoking callback for every invalidation published by
// another instance, until ctx is cancelled or Close is called.
func (i *RedisCatalogInvalidator) Subscribe(ctx context.Context, callback func(CatalogInvalidation)) error {
	i.mu.Lock()
	if i.isRunning {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	i.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	i.cancelFn = cancel
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.isRunning = false
		i.mu.Unlock()
		i.markDone()
	}()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	i.logger.Info("Subscribed to catalog invalidation channel", zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("Catalog invalidation channel closed")
				return nil
			}
			var inv CatalogInvalidation
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				i.logger.Error("Failed to unmarshal catalog invalidation",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			if inv.Origin == i.origin {
				continue
			}
			i.dispatch(callback, inv)
		}
	}
}

func (i *RedisCatalogInvalidator) dispatch(callback func(CatalogInvalidation), inv CatalogInvalidation) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Panic in catalog invalidation callback", zap.Any("panic", r))
		}
	}()
	callback(inv)
}

func (i *RedisCatalogInvalidator) markDone() {
	i.doneOnce.Do(func() {
		close(i.doneCh)
	})
}

// Close stops a running subscription
func (i *RedisCatalogInvalidator) Close() error {
	i.mu.Lock()
	cancelFn := i.cancelFn
	i.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-i.doneCh:
		case <-time.After(defaultCloseTimeout):
			i.logger.Warn("Timeout waiting for subscription to stop")
		}
	}
	return nil
}

var _ InvalidationPublisher = (*RedisCatalogInvalidator)(nil)

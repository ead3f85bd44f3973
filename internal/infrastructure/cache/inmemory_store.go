package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Constants for in-memory store configuration
const (
	defaultCleanupInterval = 30 * time.Second
	defaultTTL             = 30 * time.Minute
)

// InMemoryStore is a TTL key/value store backed by sync.Map. With sliding
// expiration every successful Get pushes the deadline back, which suits
// interactive editor state; without it entries expire a fixed time after Set.
type InMemoryStore[K comparable, V any] struct {
	entries         sync.Map // map[K]*cacheEntry[V]
	ttl             time.Duration
	sliding         bool
	cleanupInterval time.Duration
	logger          *zap.Logger
	evictMu         sync.RWMutex
	onEvict         func(K, V)
	stopCh          chan struct{}
	stopped         int32

	// Stats for monitoring
	hits   int64
	misses int64
}

// cacheEntry wraps a cached value with expiration time
type cacheEntry[V any] struct {
	value     V
	expiresAt atomic.Int64 // unix nanos
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry[V]) isExpired(now time.Time) bool {
	return now.UnixNano() > e.expiresAt.Load()
}

// StoreOption is a functional option for configuring the store
type StoreOption func(*storeOptions)

type storeOptions struct {
	ttl             time.Duration
	sliding         bool
	cleanupInterval time.Duration
	logger          *zap.Logger
}

// WithTTL sets the entry lifetime
func WithTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithSlidingExpiration renews an entry's lifetime on every read
func WithSlidingExpiration() StoreOption {
	return func(o *storeOptions) {
		o.sliding = true
	}
}

// WithCleanupInterval sets how often expired entries are swept
func WithCleanupInterval(interval time.Duration) StoreOption {
	return func(o *storeOptions) {
		if interval > 0 {
			o.cleanupInterval = interval
		}
	}
}

// WithLogger sets the logger for the store
func WithLogger(logger *zap.Logger) StoreOption {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewInMemoryStore creates a new store and starts its cleanup goroutine.
// Call Close to stop it.
func NewInMemoryStore[K comparable, V any](opts ...StoreOption) *InMemoryStore[K, V] {
	o := storeOptions{
		ttl:             defaultTTL,
		cleanupInterval: defaultCleanupInterval,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &InMemoryStore[K, V]{
		ttl:             o.ttl,
		sliding:         o.sliding,
		cleanupInterval: o.cleanupInterval,
		logger:          o.logger,
		stopCh:          make(chan struct{}),
	}

	go s.cleanupExpired()

	return s
}

// OnEvict registers a callback run when the cleanup sweep drops an expired entry
func (s *InMemoryStore[K, V]) OnEvict(fn func(K, V)) {
	s.evictMu.Lock()
	defer s.evictMu.Unlock()
	s.onEvict = fn
}

// Get returns the value for key if present and not expired
func (s *InMemoryStore[K, V]) Get(key K) (V, bool) {
	var zero V
	value, ok := s.entries.Load(key)
	if !ok {
		atomic.AddInt64(&s.misses, 1)
		return zero, false
	}

	entry := value.(*cacheEntry[V])
	now := time.Now()
	if entry.isExpired(now) {
		s.entries.CompareAndDelete(key, value)
		atomic.AddInt64(&s.misses, 1)
		return zero, false
	}
	if s.sliding {
		entry.expiresAt.Store(now.Add(s.ttl).UnixNano())
	}
	atomic.AddInt64(&s.hits, 1)
	return entry.value, true
}

// Set stores a value with the store's TTL
func (s *InMemoryStore[K, V]) Set(key K, value V) {
	s.SetWithTTL(key, value, s.ttl)
}

// SetWithTTL stores a value with an explicit TTL; zero selects the store's TTL
func (s *InMemoryStore[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	entry := &cacheEntry[V]{value: value}
	entry.expiresAt.Store(time.Now().Add(ttl).UnixNano())
	s.entries.Store(key, entry)
}

// Delete removes a key and reports whether it was present
func (s *InMemoryStore[K, V]) Delete(key K) bool {
	_, loaded := s.entries.LoadAndDelete(key)
	return loaded
}

// DeleteFunc removes every entry whose key matches
func (s *InMemoryStore[K, V]) DeleteFunc(match func(K) bool) int {
	removed := 0
	s.entries.Range(func(key, _ any) bool {
		if match(key.(K)) {
			s.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Count returns the number of entries, expired ones included until swept
func (s *InMemoryStore[K, V]) Count() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// GetStats returns cache statistics
func (s *InMemoryStore[K, V]) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&s.hits), atomic.LoadInt64(&s.misses)
}

// Close stops the cleanup goroutine
func (s *InMemoryStore[K, V]) Close() error {
	if atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		close(s.stopCh)
	}
	return nil
}

// cleanupExpired periodically removes expired entries from the store
func (s *InMemoryStore[K, V]) cleanupExpired() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error("Panic in store cleanup", zap.Any("panic", r))
					}
				}()
				s.doCleanup()
			}()
		}
	}
}

// doCleanup removes expired entries
func (s *InMemoryStore[K, V]) doCleanup() {
	s.evictMu.RLock()
	onEvict := s.onEvict
	s.evictMu.RUnlock()

	now := time.Now()
	removed := 0
	s.entries.Range(func(key, value any) bool {
		entry := value.(*cacheEntry[V])
		if entry.isExpired(now) && s.entries.CompareAndDelete(key, value) {
			removed++
			if onEvict != nil {
				onEvict(key.(K), entry.value)
			}
		}
		return true
	})

	if removed > 0 {
		s.logger.Debug("Cleaned up expired in-memory entries", zap.Int("removed", removed))
	}
}

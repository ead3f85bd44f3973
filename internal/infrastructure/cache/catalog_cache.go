package cache

import (
	"context"
	"strings"
	"time"

	"github.com/finhr/backend/internal/domain/reference"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CachedCatalogRepository decorates a CatalogRepository with a short-lived
// in-memory cache of fetched catalogs. Writes invalidate every cached fetch
// of the same tenant and kind.
type CachedCatalogRepository struct {
	next      reference.CatalogRepository
	store     *InMemoryStore[string, []reference.ReferenceRow]
	publisher InvalidationPublisher
	logger    *zap.Logger
}

// NewCachedCatalogRepository wraps next with a cache of the given TTL
func NewCachedCatalogRepository(next reference.CatalogRepository, ttl time.Duration, logger *zap.Logger) *CachedCatalogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCatalogRepository{
		next:   next,
		store:  NewInMemoryStore[string, []reference.ReferenceRow](WithTTL(ttl), WithLogger(logger)),
		logger: logger,
	}
}

// SetPublisher makes writes announce invalidations to other instances
func (c *CachedCatalogRepository) SetPublisher(p InvalidationPublisher) {
	c.publisher = p
}

func catalogPrefix(tenantID uuid.UUID, kind reference.CatalogKind) string {
	return "catalog:" + tenantID.String() + ":" + string(kind) + ":"
}

func catalogKey(filter reference.CatalogFilter) string {
	return catalogPrefix(filter.TenantID, filter.Kind) + filter.ParentKey
}

// FetchCatalog returns cached rows or fetches and caches them
func (c *CachedCatalogRepository) FetchCatalog(ctx context.Context, filter reference.CatalogFilter) ([]reference.ReferenceRow, error) {
	key := catalogKey(filter)
	if rows, ok := c.store.Get(key); ok {
		c.logger.Debug("catalog cache hit", zap.String("key", key))
		return copyRows(rows), nil
	}

	rows, err := c.next.FetchCatalog(ctx, filter)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, copyRows(rows))
	return rows, nil
}

// Save writes through and invalidates the kind's cached fetches
func (c *CachedCatalogRepository) Save(ctx context.Context, tenantID uuid.UUID, kind reference.CatalogKind, row reference.ReferenceRow) error {
	if err := c.next.Save(ctx, tenantID, kind, row); err != nil {
		return err
	}
	c.Invalidate(tenantID, kind)
	c.announce(ctx, tenantID, kind)
	return nil
}

// Delete writes through and invalidates the kind's cached fetches
func (c *CachedCatalogRepository) Delete(ctx context.Context, tenantID uuid.UUID, kind reference.CatalogKind, id string) error {
	if err := c.next.Delete(ctx, tenantID, kind, id); err != nil {
		return err
	}
	c.Invalidate(tenantID, kind)
	c.announce(ctx, tenantID, kind)
	return nil
}

// Invalidate drops every cached fetch for a tenant and kind
func (c *CachedCatalogRepository) Invalidate(tenantID uuid.UUID, kind reference.CatalogKind) {
	prefix := catalogPrefix(tenantID, kind)
	removed := c.store.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
	c.logger.Debug("catalog cache invalidated", zap.String("prefix", prefix), zap.Int("removed", removed))
}

// HandleInvalidation applies an invalidation received from another instance
func (c *CachedCatalogRepository) HandleInvalidation(inv CatalogInvalidation) {
	c.Invalidate(inv.TenantID, inv.Kind)
}

func (c *CachedCatalogRepository) announce(ctx context.Context, tenantID uuid.UUID, kind reference.CatalogKind) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishInvalidation(ctx, tenantID, kind); err != nil {
		c.logger.Warn("catalog invalidation not broadcast", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// Close stops the cache's cleanup goroutine
func (c *CachedCatalogRepository) Close() error {
	return c.store.Close()
}

func copyRows(rows []reference.ReferenceRow) []reference.ReferenceRow {
	if rows == nil {
		return nil
	}
	out := make([]reference.ReferenceRow, len(rows))
	copy(out, rows)
	return out
}

var _ reference.CatalogRepository = (*CachedCatalogRepository)(nil)

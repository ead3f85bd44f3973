package middleware

import (
	"errors"
	"strings"

	"github.com/finhr/backend/internal/infrastructure/logger"
	"github.com/finhr/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantIDKey holds the tenant id string on the gin.Context
const TenantIDKey = logger.GinTenantIDKey

// TenantMiddlewareConfig controls tenant resolution. SkipPaths and
// everything below them are served without a tenant.
type TenantMiddlewareConfig struct {
	SkipPaths []string
	Required  bool
	Logger    *zap.Logger
}

func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		SkipPaths: []string{"/health", "/api/v1/health"},
		Required:  true,
	}
}

func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// TenantMiddlewareWithConfig scopes the request to the tenant in
// X-Tenant-ID. The tenant is stored on the gin.Context and on the request
// context, and the request logger gains a tenant_id field.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	unscoped := newPathSet(cfg.SkipPaths, true)
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if unscoped.match(c.Request.URL.Path) {
			c.Next()
			return
		}

		tenantID, present, err := tenantFromHeader(c)
		switch {
		case err != nil:
			abortTenant(c, "Invalid tenant ID format")
			return
		case !present && cfg.Required:
			abortTenant(c, "Tenant identification required")
			return
		case !present:
			c.Next()
			return
		}

		id := tenantID.String()
		ctx, reqLog := logger.WithTenantID(c.Request.Context(), logger.FromContext(c.Request.Context()), id)
		c.Request = c.Request.WithContext(ctx)
		c.Set(TenantIDKey, id)
		c.Set(logger.GinLoggerKey, reqLog)
		log.Debug("Tenant resolved", zap.String("tenant_id", id), zap.String("path", c.FullPath()))

		c.Next()
	}
}

var errInvalidTenant = errors.New("invalid tenant id")

func tenantFromHeader(c *gin.Context) (uuid.UUID, bool, error) {
	raw := strings.TrimSpace(c.GetHeader(TenantIDHeader))
	if raw == "" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, true, errInvalidTenant
	}
	return id, true, nil
}

func abortTenant(c *gin.Context, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(dto.ErrCodeTenantID),
		dto.NewErrorResponseWithRequestID(dto.ErrCodeTenantID, message, GetRequestID(c)))
}

// GetTenantID returns the tenant set by the tenant middleware, or ""
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

func GetTenantUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(GetTenantID(c))
	return id, err == nil
}

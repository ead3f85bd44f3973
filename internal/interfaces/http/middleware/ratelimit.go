package middleware

import (
	"fmt"
	"net/http"

	"github.com/finhr/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const rateLimitPrefix = "finhr:ratelimit"

// RateLimitConfig configures per-tenant request throttling
type RateLimitConfig struct {
	// Rate uses the "<limit>-<S|M|H|D>" format, e.g. "100-S"
	Rate string
	// Redis shares counters between instances; nil keeps them in memory
	Redis  *redis.Client
	Logger *zap.Logger
}

// NewRateLimiter builds the limiter for cfg
func NewRateLimiter(cfg RateLimitConfig) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", cfg.Rate, err)
	}

	var store limiter.Store
	if cfg.Redis != nil {
		store, err = redisstore.NewStoreWithOptions(cfg.Redis, limiter.StoreOptions{
			Prefix: rateLimitPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}
	return limiter.New(store, rate), nil
}

// RateLimit throttles requests per tenant and client IP. Store failures
// let the request through.
func RateLimit(l *limiter.Limiter, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return ginlimiter.NewMiddleware(l,
		ginlimiter.WithKeyGetter(rateLimitKey),
		ginlimiter.WithLimitReachedHandler(func(c *gin.Context) {
			c.JSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				GetRequestID(c),
			))
		}),
		ginlimiter.WithErrorHandler(func(c *gin.Context, err error) {
			log.Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
		}),
	)
}

func rateLimitKey(c *gin.Context) string {
	key := c.ClientIP()
	if tenant := c.GetHeader(TenantIDHeader); tenant != "" {
		key = tenant + ":" + key
	}
	return key
}

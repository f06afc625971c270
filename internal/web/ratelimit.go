package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/studentimport/internal/config"
	"github.com/JonMunkholm/studentimport/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// rateLimitPrefix namespaces limiter keys in a shared Redis.
const rateLimitPrefix = "import:ratelimit"

// NewUploadLimit builds the per-client rate limit for the upload endpoint.
// Counters live in Redis when rdb is non-nil so that every replica shares
// them, and in memory otherwise. It returns nil when rate limiting is disabled.
func NewUploadLimit(cfg config.RateLimitConfig, rdb *redis.Client) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var (
		store limiter.Store
		err   error
	)
	if rdb != nil {
		store, err = redisstore.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
	} else {
		store = memorystore.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: time.Minute,
		})
	}

	rate := limiter.Rate{Period: time.Minute, Limit: int64(cfg.UploadLimit)}
	instance := limiter.New(store, rate)

	mw := stdlib.NewMiddleware(instance,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			logging.FromContext(r.Context()).Warn("upload rate limit reached", "ip", r.RemoteAddr)
			w.Header().Set("Retry-After", "60")
			writeJSONStatus(w, http.StatusTooManyRequests, ErrorResponse{
				Error:   "Too many requests",
				Message: "Too many requests",
				Action:  "Please wait a moment before trying again",
				Code:    "RATE001",
			})
		}),
	)
	return mw.Handler, nil
}

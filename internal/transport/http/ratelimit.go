package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// rateLimiter hands out one token bucket per key and forgets idle keys.
type rateLimiter struct {
	mu    sync.Mutex
	keys  map[string]*keyLimiter
	limit rate.Limit
	burst int
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

func newRateLimiter(limit rate.Limit, burst int, ttl time.Duration) *rateLimiter {
	return &rateLimiter{
		keys:  make(map[string]*keyLimiter),
		limit: limit,
		burst: burst,
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	kl, ok := r.keys[key]
	if !ok {
		kl = &keyLimiter{lim: rate.NewLimiter(r.limit, r.burst)}
		r.keys[key] = kl
	}
	kl.seen = time.Now()
	r.mu.Unlock()

	return kl.lim.Allow()
}

func (r *rateLimiter) startGC(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case now := <-ticker.C:
				r.mu.Lock()
				for k, v := range r.keys {
					if now.Sub(v.seen) > r.ttl {
						delete(r.keys, k)
					}
				}
				r.mu.Unlock()
			}
		}
	}()
}

func (r *rateLimiter) Stop() {
	r.once.Do(func() { close(r.stop) })
}

// middleware limits requests per client IP and route.
func (r *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + "|" + c.FullPath()
		if !r.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
			return
		}
		c.Next()
	}
}

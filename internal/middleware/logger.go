package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/guttosm/settlepulse/internal/domain/dto"
	"github.com/guttosm/settlepulse/internal/logger"
)

// RequestLogger logs method, path, status, latency and request id of every
// request after it is handled.
//
// Example log output:
//
//	{"component":"http","request_id":"4f0c...","method":"GET","path":"/api/v1/trades","status":200,"latency_ms":15}
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		rid, _ := c.Get(RequestIDKey)
		ev := logger.L().Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.L().Error()
		}
		ev.Str("component", "http").
			Str("request_id", toString(rid)).
			Str("method", method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Str("client_ip", c.ClientIP()).
			Msg("http_request")
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// visitor is the token bucket of one client IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleVisitorTTL is how long an IP's bucket is kept after its last request.
const idleVisitorTTL = 5 * time.Minute

// RateLimiter limits each client IP to a token bucket refilled once per
// every, holding at most burst tokens. Exhausted clients get 429.
//
// Usage:
//
//	router.Use(middleware.RateLimiter(time.Second, 60))
func RateLimiter(every time.Duration, burst int) gin.HandlerFunc {
	var (
		mu        sync.Mutex
		visitors  = make(map[string]*visitor)
		lastSweep = time.Now()
	)
	limit := rate.Every(every)
	if every <= 0 {
		limit = rate.Inf
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > idleVisitorTTL {
			for k, v := range visitors {
				if now.Sub(v.lastSeen) > idleVisitorTTL {
					delete(visitors, k)
				}
			}
			lastSweep = now
		}
		v, ok := visitors[ip]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(limit, burst)}
			visitors[ip] = v
		}
		v.lastSeen = now
		allowed := v.limiter.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse("rate limit exceeded", nil))
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"vmail/backend/internal/monitoring"
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter keeps one token bucket per client IP.
type ClientRateLimiter struct {
	cfg     RateLimitConfig
	metrics *monitoring.Metrics

	mu      sync.Mutex
	clients map[string]*clientLimiter
	sweep   time.Time
}

// NewClientRateLimiter creates the limiter. metrics may be nil.
func NewClientRateLimiter(cfg RateLimitConfig, metrics *monitoring.Metrics) *ClientRateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond) * 2
	}
	return &ClientRateLimiter{
		cfg:     cfg,
		metrics: metrics,
		clients: make(map[string]*clientLimiter),
		sweep:   time.Now().Add(5 * time.Minute),
	}
}

func (l *ClientRateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	// drop clients idle for ten minutes
	if now.After(l.sweep) {
		for k, cl := range l.clients {
			if now.Sub(cl.lastSeen) > 10*time.Minute {
				delete(l.clients, k)
			}
		}
		l.sweep = now.Add(5 * time.Minute)
	}

	cl, ok := l.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Handler rejects requests over the limit with 429 and a Retry-After header.
func (l *ClientRateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := l.limiterFor(c.ClientIP())

		reservation := limiter.Reserve()
		if !reservation.OK() {
			l.reject(c, 0)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			l.reject(c, int(delay.Seconds())+1)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.cfg.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		c.Next()
	}
}

func (l *ClientRateLimiter) reject(c *gin.Context, retryAfterSecs int) {
	if l.metrics != nil {
		l.metrics.RecordRateLimitBlock("http")
	}
	if retryAfterSecs > 0 {
		c.Header("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	abortJSON(c, http.StatusTooManyRequests, "rate limit exceeded")
}

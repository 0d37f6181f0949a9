package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/response"
)

// TokenBucket limits requests per client IP. State is in-process only.
type TokenBucket struct {
	capacity int
	perMin   int
	clock    clockwork.Clock

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket allows perMinute requests per IP with bursts up to capacity.
// A zero capacity means perMinute. A nil clock uses the real clock.
func NewTokenBucket(capacity, perMinute int, clock clockwork.Clock) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenBucket{capacity: capacity, perMin: perMinute, clock: clock, state: make(map[string]*bucket)}
}

// Handler rejects requests over the limit with 429. A non-positive rate disables limiting.
func (l *TokenBucket) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.perMin <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Allow consumes a token for key.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	if refill := int(now.Sub(b.last).Minutes() * float64(l.perMin)); refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

package devserver

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/campe111/turnero/internal/clock"
)

type RateLimitConfig struct {
	PerMinute int
	Burst     int
	// TrustForwardedFor keys buckets by the first X-Forwarded-For hop.
	// Only enable it behind a proxy that overwrites the header.
	TrustForwardedFor bool
	// IdleTTL drops buckets not used for this long. Defaults to 10m.
	IdleTTL time.Duration
	Clock   clock.Clock
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	trustProxy  bool
	idleTTL     time.Duration
	clock       clock.Clock
	buckets     map[string]*bucket
	nextSweepAt time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	perMinute := cfg.PerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 20
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &RateLimiter{
		limit:      rate.Limit(float64(perMinute) / 60.0),
		burst:      burst,
		trustProxy: cfg.TrustForwardedFor,
		idleTTL:    idleTTL,
		clock:      clk,
		buckets:    make(map[string]*bucket),
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := clientIP(r, l.trustProxy); ip != "" && !l.allow(ip) {
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(key string) bool {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweepLocked evicts idle buckets at most once per idleTTL.
func (l *RateLimiter) sweepLocked(now time.Time) {
	if now.Before(l.nextSweepAt) {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.nextSweepAt = now.Add(l.idleTTL)
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			parts := strings.Split(forwarded, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

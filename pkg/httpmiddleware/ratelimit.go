package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window. Zero disables
	// limiting.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP(TrustedProxies).
	KeyFunc func(*http.Request) string
	// TrustedProxies are the networks whose forwarding headers are honored.
	// Empty means only the connection's remote address identifies a client.
	TrustedProxies []netip.Prefix
	// Skip exempts requests, e.g. health probes.
	Skip func(*http.Request) bool
}

// window counts requests in the current and previous fixed windows. The
// effective count weights the previous window by its overlap with the
// sliding window ending now.
type window struct {
	prev      float64
	curr      float64
	currStart time.Time
}

type limiter struct {
	max   int
	size  time.Duration
	now   func() time.Time
	mu    sync.Mutex
	byKey map[string]*window
}

func newLimiter(max int, size time.Duration) *limiter {
	return &limiter{
		max:   max,
		size:  size,
		now:   time.Now,
		byKey: make(map[string]*window),
	}
}

// take consumes one request for key if the limit allows it.
func (l *limiter) take(key string) (remaining int, resetAt time.Time, ok bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.byKey[key]
	if !found {
		w = &window{currStart: now.Truncate(l.size)}
		l.byKey[key] = w
	}
	if elapsed := now.Sub(w.currStart); elapsed >= l.size {
		if elapsed >= 2*l.size {
			w.prev = 0
		} else {
			w.prev = w.curr
		}
		w.curr = 0
		w.currStart = now.Truncate(l.size)
	}

	overlap := 1 - now.Sub(w.currStart).Seconds()/l.size.Seconds()
	effective := w.prev*math.Max(overlap, 0) + w.curr
	resetAt = w.currStart.Add(l.size)

	if effective >= float64(l.max) {
		return 0, resetAt, false
	}
	w.curr++
	return max(int(float64(l.max)-effective-1), 0), resetAt, true
}

// evict drops clients idle for two full windows.
func (l *limiter) evict() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.byKey {
		if now.Sub(w.currStart) >= 2*l.size {
			delete(l.byKey, key)
		}
	}
}

func (l *limiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * l.size)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict()
		}
	}
}

// RateLimit enforces cfg per client. Every limited response carries the
// X-RateLimit-* headers; rejected requests get 429 with Retry-After.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return rateLimit(cfg, newLimiter(cfg.Max, cfg.Window))
}

// RateLimitWithCleanup is RateLimit with a background goroutine evicting idle
// clients until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return RateLimit(cfg)
	}
	l := newLimiter(cfg.Max, cfg.Window)
	go l.evictLoop(ctx)
	return rateLimit(cfg, l)
}

func rateLimit(cfg RateLimitConfig, l *limiter) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP(cfg.TrustedProxies)
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			remaining, resetAt, ok := l.take(keyFunc(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !ok {
				retry := math.Ceil(max(resetAt.Sub(l.now()), 0).Seconds())
				h.Set("Retry-After", strconv.Itoa(int(retry)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns a key function resolving the client address. Forwarding
// headers are read only when the connection comes from a trusted proxy. The
// X-Forwarded-For chain is walked right to left and the first hop outside
// trusted is the client.
func ClientIP(trusted []netip.Prefix) func(*http.Request) string {
	return func(r *http.Request) string {
		remote := remoteHost(r)
		if !isTrusted(remote, trusted) {
			return remote
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop == "" {
					continue
				}
				if i == 0 || !isTrusted(hop, trusted) {
					return hop
				}
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		return remote
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

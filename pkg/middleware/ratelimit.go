package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter is an in-memory token bucket per client key. Each key holds up to
// limit tokens, refilled continuously over window.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		entries: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow consumes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	return l.AllowLimit(key, l.limit)
}

// AllowLimit is Allow with a per-key budget, used for API keys that carry
// their own limit. A key should always be checked with the same limit.
func (l *Limiter) AllowLimit(key string, limit int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, exists := l.entries[key]
	if !exists {
		l.entries[key] = &bucket{tokens: float64(limit - 1), lastCheck: now}
		return limit > 0
	}

	elapsed := now.Sub(e.lastCheck)
	e.lastCheck = now
	rate := float64(limit) / l.window.Seconds()
	e.tokens += elapsed.Seconds() * rate
	if e.tokens > float64(limit) {
		e.tokens = float64(limit)
	}
	if e.tokens < 1 {
		return false
	}
	e.tokens--
	return true
}

// Sweep drops buckets idle for more than two windows.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	removed := 0
	for key, e := range l.entries {
		if e.lastCheck.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// RateLimit rejects requests over the per-client budget with 429. Clients
// are keyed by ClientIP. Health and metrics endpoints are exempt.
func RateLimit(l *Limiter, trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(ClientIP(r, trusted)) {
				WriteRateLimited(w, l.window)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRateLimited writes the 429 response shared by the IP and API-key
// limiters.
func WriteRateLimited(w http.ResponseWriter, window time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
}

// Window is the refill window of l.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// ClientIP returns the address a request is attributed to. The peer address
// is used unless it is a trusted proxy, in which case X-Forwarded-For is
// walked from the right and the first untrusted hop wins.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !isTrusted(addr, trusted) {
		return peer
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		hopAddr, err := netip.ParseAddr(hop)
		if err != nil {
			// garbage in the header stops the walk at the last good hop
			return addr.String()
		}
		if !isTrusted(hopAddr, trusted) {
			return hopAddr.String()
		}
		addr = hopAddr
	}
	return addr.String()
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ParseTrustedProxies accepts CIDRs and bare addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

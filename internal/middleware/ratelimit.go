package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdleTTL is how long an idle client's bucket is kept
const DefaultLimiterIdleTTL = 10 * time.Minute

// RateLimitMiddleware keeps one token bucket per client IP. Buckets of idle
// clients expire, and forwarding headers are only honoured from trusted proxies.
type RateLimitMiddleware struct {
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	trusted  []*net.IPNet
	limiters *gocache.Cache
	mu       sync.Mutex
}

// RateLimitOption customizes a RateLimitMiddleware
type RateLimitOption func(*RateLimitMiddleware)

// WithIdleTTL sets how long an unused bucket is retained
func WithIdleTTL(ttl time.Duration) RateLimitOption {
	return func(m *RateLimitMiddleware) {
		if ttl > 0 {
			m.idleTTL = ttl
		}
	}
}

// WithTrustedProxies enables X-Forwarded-For and X-Real-IP for requests
// arriving from the given networks
func WithTrustedProxies(nets []*net.IPNet) RateLimitOption {
	return func(m *RateLimitMiddleware) { m.trusted = nets }
}

// NewRateLimitMiddleware creates a limiter allowing rps requests per second
// with the given burst for each client
func NewRateLimitMiddleware(rps float64, burst int, opts ...RateLimitOption) *RateLimitMiddleware {
	if burst < 1 {
		burst = 1
	}
	m := &RateLimitMiddleware{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: DefaultLimiterIdleTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.limiters = gocache.New(m.idleTTL, m.idleTTL)
	return m
}

// ParseTrustedProxies parses a comma-separated list of IPs and CIDRs.
func ParseTrustedProxies(raw string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			ip := net.ParseIP(part)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", part)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(part)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", part, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// limiter returns the client's bucket, refreshing its idle expiry.
func (m *RateLimitMiddleware) limiter(clientIP string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	var l *rate.Limiter
	if v, ok := m.limiters.Get(clientIP); ok {
		l = v.(*rate.Limiter)
	} else {
		l = rate.NewLimiter(m.limit, m.burst)
	}
	m.limiters.SetDefault(clientIP, l)
	return l
}

// RateLimit rejects requests once a client exhausts its bucket
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter(m.clientIP(r)).Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP from the request. Forwarding headers are
// read only when the direct peer is a trusted proxy; X-Forwarded-For is
// walked right to left past trusted hops.
func (m *RateLimitMiddleware) clientIP(r *http.Request) string {
	remote := remoteHost(r.RemoteAddr)
	if !m.isTrusted(remote) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !m.isTrusted(hop) {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return remote
}

func (m *RateLimitMiddleware) isTrusted(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range m.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

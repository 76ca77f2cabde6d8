package httpx

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bonkmc/modernauth/pkg/slogx"
)

// Limit is a token bucket refilled with Requests tokens per Window.
type Limit struct {
	Requests int           `env:"REQUESTS"`
	Window   time.Duration `env:"WINDOW"`
	Burst    int           `env:"BURST"`
}

func (l Limit) validate() error {
	if l.Requests <= 0 || l.Window <= 0 || l.Burst <= 0 {
		return fmt.Errorf("requests, window and burst must be positive (got %d/%s/%d)", l.Requests, l.Window, l.Burst)
	}
	return nil
}

func (l Limit) perSecond() rate.Limit {
	return rate.Limit(float64(l.Requests) / l.Window.Seconds())
}

// Limits groups the limits applied to each class of endpoint.
type Limits struct {
	// Strict guards endpoints that verify secrets or tokens.
	Strict Limit `envPrefix:"STRICT_"`
	// Moderate covers token issue and admin operations.
	Moderate Limit `envPrefix:"MODERATE_"`
	// Lenient covers status polling, which tenants do every few seconds.
	Lenient Limit `envPrefix:"LENIENT_"`
	Public  Limit `envPrefix:"PUBLIC_"`
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		Strict:   Limit{Requests: 10, Window: time.Minute, Burst: 10},
		Moderate: Limit{Requests: 30, Window: time.Minute, Burst: 30},
		Lenient:  Limit{Requests: 120, Window: time.Minute, Burst: 60},
		Public:   Limit{Requests: 1000, Window: time.Minute, Burst: 1000},
	}
}

// Validate reports every non-positive limit.
func (l Limits) Validate() error {
	var errs []error
	for name, lim := range map[string]Limit{
		"strict": l.Strict, "moderate": l.Moderate, "lenient": l.Lenient, "public": l.Public,
	} {
		if err := lim.validate(); err != nil {
			errs = append(errs, fmt.Errorf("rate limit %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// KeyFunc groups requests into buckets. An empty key means the request
// cannot be attributed.
type KeyFunc func(*http.Request) string

// ClientIP is the first X-Forwarded-For hop, then X-Real-IP, then the peer
// address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SessionSubject keys by the subject SessionMiddleware attached.
func SessionSubject(r *http.Request) string {
	if s, ok := SessionFromContext(r.Context()); ok {
		return s.Subject
	}
	return ""
}

// PathValue keys by a route wildcard such as {tenant_id}.
func PathValue(name string) KeyFunc {
	return func(r *http.Request) string {
		return r.PathValue(name)
	}
}

// FirstKey uses the first non-empty key.
func FirstKey(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		for _, fn := range fns {
			if k := fn(r); k != "" {
				return k
			}
		}
		return ""
	}
}

// JoinKeys concatenates the non-empty keys with "|".
func JoinKeys(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if k := fn(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, "|")
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// buckets holds one limiter per key. Buckets untouched for longer than
// idle have refilled completely and are dropped on the next sweep.
type buckets struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	byKey     map[string]*bucket
	lastSweep time.Time
}

func newBuckets(l Limit, now func() time.Time) *buckets {
	limit := l.perSecond()
	idle := max(l.Window, time.Duration(float64(l.Burst)/float64(limit)*float64(time.Second)))
	return &buckets{
		limit:     limit,
		burst:     l.Burst,
		idle:      idle,
		now:       now,
		byKey:     make(map[string]*bucket),
		lastSweep: now(),
	}
}

// take spends one token for key, or reports how long until one is free.
func (b *buckets) take(key string) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) > b.idle {
		for k, bk := range b.byKey {
			if now.Sub(bk.seen) > b.idle {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	bk, ok := b.byKey[key]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(b.limit, b.burst)}
		b.byKey[key] = bk
	}
	bk.seen = now

	res := bk.lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// RateLimit rejects requests with 429 once the bucket for key(r) is empty.
// Requests without a key pass through.
func RateLimit(l Limit, key KeyFunc) Middleware {
	return rateLimit(l, key, time.Now)
}

func rateLimit(l Limit, key KeyFunc, now func() time.Time) Middleware {
	b := newBuckets(l, now)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				slogx.FromContext(r.Context()).Warn("rate limit: request has no key", "route", r.Pattern)
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := b.take(k)
			if !ok {
				retryAfter := int((wait + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Requests))
				w.Header().Set("X-RateLimit-Window", l.Window.String())
				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"route", r.Pattern,
					"retry_after", retryAfter,
				)
				WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits each client address.
func RateLimitByIP(l Limit) Middleware {
	return RateLimit(l, ClientIP)
}

// RateLimitBySubject limits each session subject, or each address for
// requests without a session.
func RateLimitBySubject(l Limit) Middleware {
	return RateLimit(l, FirstKey(SessionSubject, ClientIP))
}

// RateLimitByIPAndPathValue limits each address per value of a route
// wildcard, so one noisy tenant cannot starve another behind the same proxy.
func RateLimitByIPAndPathValue(l Limit, name string) Middleware {
	return RateLimit(l, JoinKeys(ClientIP, PathValue(name)))
}

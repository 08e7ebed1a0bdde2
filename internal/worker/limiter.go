package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused per-domain bucket is kept
const DefaultIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter throttles outbound requests per institution domain so a batch
// full of one university does not hammer its website. A non-positive
// rate disables throttling.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

// NewLimiter creates a limiter allowing requestsPerSecond per domain
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(requestsPerSecond),
		burst:   burst,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
	}
}

// Wait blocks until a request to rawURL's domain may proceed
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l.rate <= 0 {
		return ctx.Err()
	}
	domain, err := domainOf(rawURL)
	if err != nil {
		return err
	}
	return l.limiterFor(domain).Wait(ctx)
}

// Domains returns the number of domains with a live bucket
func (l *Limiter) Domains() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// limiterFor returns the domain's bucket, pruning buckets idle longer than idleTTL
func (l *Limiter) limiterFor(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for d, b := range l.buckets {
		if d != domain && now.Sub(b.lastUsed) > l.idleTTL {
			delete(l.buckets, d)
		}
	}

	b, ok := l.buckets[domain]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[domain] = b
	}
	b.lastUsed = now
	return b.limiter
}

// domainOf returns the lowercased host without a leading "www." so both
// spellings of an institution share a bucket. A missing scheme is tolerated.
func domainOf(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}

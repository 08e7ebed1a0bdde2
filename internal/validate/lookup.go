package validate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/ppiankov/credtrust/internal/cache"
	"github.com/ppiankov/credtrust/internal/model"
)

// DomainAger reports how many days ago a domain was registered
type DomainAger interface {
	DomainAge(ctx context.Context, domain string) (*int, error)
}

// MXChecker reports whether a domain publishes mail exchange records
type MXChecker interface {
	HasMX(ctx context.Context, domain string) (bool, error)
}

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"02.01.2006",
	"January 2 2006",
}

// WhoisAger looks up registration dates over WHOIS and caches them
type WhoisAger struct {
	client *whois.Client
	cache  cache.Cache
	ttl    time.Duration
	now    func() time.Time
}

// NewWhoisAger creates a WHOIS-backed DomainAger. c may be nil.
func NewWhoisAger(timeout time.Duration, c cache.Cache, ttl time.Duration) *WhoisAger {
	return &WhoisAger{
		client: whois.NewClient().SetTimeout(timeout),
		cache:  c,
		ttl:    ttl,
		now:    time.Now,
	}
}

type whoisRecord struct {
	Created time.Time `json:"created"`
}

// DomainAge returns the age in days of the registered domain
func (w *WhoisAger) DomainAge(ctx context.Context, domain string) (*int, error) {
	domain = RegisteredDomain(domain)
	if domain == "" {
		return nil, model.NewCheckError(model.ReasonInvalidInput, "whois", model.ErrInvalidURL)
	}

	key := cache.Key("whois", domain)
	var rec whoisRecord
	if cache.GetJSON(w.cache, key, &rec) {
		return w.ageOf(rec.Created), nil
	}

	raw, err := w.lookup(ctx, domain)
	if err != nil {
		return nil, err
	}

	created, err := ParseWhoisCreated(raw)
	if err != nil {
		return nil, model.NewCheckError(model.ReasonParseError, "whois", err)
	}

	_ = cache.SetJSON(w.cache, key, whoisRecord{Created: created}, w.ttl)
	return w.ageOf(created), nil
}

// lookup runs the blocking WHOIS query and abandons it when ctx ends
func (w *WhoisAger) lookup(ctx context.Context, domain string) (string, error) {
	type reply struct {
		raw string
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		raw, err := w.client.Whois(domain)
		ch <- reply{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", model.NewCheckError(model.ReasonTimeout, "whois", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return "", model.NewCheckError(model.ReasonLookupFailed, "whois", r.err)
		}
		return r.raw, nil
	}
}

func (w *WhoisAger) ageOf(created time.Time) *int {
	days := int(w.now().Sub(created).Hours() / 24)
	return &days
}

// ParseWhoisCreated extracts the creation date from a raw WHOIS response
func ParseWhoisCreated(raw string) (time.Time, error) {
	info, err := whoisparser.Parse(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse whois: %w", err)
	}
	if info.Domain == nil || strings.TrimSpace(info.Domain.CreatedDate) == "" {
		return time.Time{}, errors.New("whois response has no creation date")
	}

	value := strings.TrimSpace(info.Domain.CreatedDate)
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized creation date %q", value)
}

// RegisteredDomain strips the scheme, port and a leading "www." label
func RegisteredDomain(hostOrURL string) string {
	host := HostOf(hostOrURL)
	return strings.TrimPrefix(host, "www.")
}

// Resolver is the subset of net.Resolver used for MX lookups
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// ResolverMX checks mail exchange records through DNS and caches the answer
type ResolverMX struct {
	resolver Resolver
	cache    cache.Cache
	ttl      time.Duration
}

// NewResolverMX creates an MXChecker. A nil resolver uses net.DefaultResolver.
func NewResolverMX(resolver Resolver, c cache.Cache, ttl time.Duration) *ResolverMX {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &ResolverMX{resolver: resolver, cache: c, ttl: ttl}
}

// HasMX reports whether the domain has at least one MX record. A domain
// that does not exist is answered with false, not an error.
func (r *ResolverMX) HasMX(ctx context.Context, domain string) (bool, error) {
	domain = RegisteredDomain(domain)
	if domain == "" {
		return false, model.NewCheckError(model.ReasonInvalidInput, "mx", model.ErrInvalidURL)
	}

	key := cache.Key("mx", domain)
	if r.cache != nil {
		if data, ok := r.cache.Get(key); ok {
			return string(data) == "1", nil
		}
	}

	records, err := r.resolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if !errors.As(err, &dnsErr) || !dnsErr.IsNotFound {
			return false, fmt.Errorf("lookup mx: %w", err)
		}
	}

	ok := len(records) > 0
	if r.cache != nil {
		val := []byte("0")
		if ok {
			val = []byte("1")
		}
		_ = r.cache.Set(key, val, r.ttl)
	}
	return ok, nil
}

package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// maxRobotsBytes bounds how much of a robots.txt file is read
const maxRobotsBytes = 512 << 10

// RobotsChecker answers whether an institution page may be fetched under
// the site's robots.txt. Rules are cached per scheme and host.
type RobotsChecker struct {
	rules      *gocache.Cache
	httpClient *http.Client
	userAgent  string
	agentToken string
}

// NewRobotsChecker creates a checker. ttl bounds how long a host's rules
// are reused; zero means one hour.
func NewRobotsChecker(userAgent string, timeout, ttl time.Duration, httpProxy, httpsProxy, noProxy string) *RobotsChecker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RobotsChecker{
		rules: gocache.New(ttl, 2*ttl),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: NewProxyFunc(httpProxy, httpsProxy, noProxy)},
		},
		userAgent:  userAgent,
		agentToken: NormalizeUserAgent(userAgent),
	}
}

// CanFetch reports whether rawURL is allowed and the crawl delay the site
// asks for. An unreachable or unparsable robots.txt allows the fetch.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Host == "" {
		return false, 0, fmt.Errorf("parse URL: no host in %q", rawURL)
	}

	data, err := r.rulesFor(ctx, parsed.Scheme, parsed.Host)
	if err != nil {
		return true, 0, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	allowed := data.TestAgent(path, r.agentToken)

	var delay time.Duration
	if group := data.FindGroup(r.agentToken); group != nil {
		delay = group.CrawlDelay
	}
	return allowed, delay, nil
}

func (r *RobotsChecker) rulesFor(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	key := scheme + "://" + strings.ToLower(host)
	if cached, ok := r.rules.Get(key); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	// 4xx allows everything, 5xx disallows everything
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.rules.SetDefault(key, data)
	return data, nil
}

// IsAllowed returns only the allowed status of CanFetch
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) bool {
	allowed, _, _ := r.CanFetch(ctx, rawURL)
	return allowed
}

// Clear drops all cached rules
func (r *RobotsChecker) Clear() {
	r.rules.Flush()
}

// NormalizeUserAgent reduces a User-Agent header to the product token
// robots.txt groups are matched against ("credtrust/0.1 (+url)" -> "credtrust")
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	return strings.Split(parts[0], "/")[0]
}

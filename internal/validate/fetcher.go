package validate

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ppiankov/credtrust/internal/util"
)

const fetchMaxRetries = 3

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// ErrDisallowedByRobots is returned when robots.txt forbids the fetch
var ErrDisallowedByRobots = errors.New("disallowed by robots.txt")

// StatusError is returned for non-2xx responses. Page holds whatever
// the server sent with the error status.
type StatusError struct {
	Code   int
	Status string
	Page   *PageResult
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// PageFetcher retrieves an institution web page
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*PageResult, error)
}

// PageResult contains the fetched HTML and what was extracted from it
type PageResult struct {
	HTML        string
	Title       string
	Text        string // Visible text, whitespace-collapsed
	StatusCode  int
	ContentType string
	FinalURL    string
}

// Fetcher fetches HTML content from URLs
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecureTLS bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
	}
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --insecure
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// WithRobots makes the fetcher consult robots.txt before each request
func (f *Fetcher) WithRobots(robots *util.RobotsChecker) *Fetcher {
	f.robots = robots
	return f
}

// FetchPage implements PageFetcher with retries
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*PageResult, error) {
	return f.FetchWithRetry(ctx, rawURL)
}

// Fetch retrieves a page once
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*PageResult, error) {
	if f.robots != nil && !f.robots.IsAllowed(ctx, rawURL) {
		return nil, ErrDisallowedByRobots
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	result := &PageResult{
		HTML:        string(body),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}
	if doc, err := html.Parse(strings.NewReader(result.HTML)); err == nil {
		result.Title = extractTitle(doc)
		result.Text = extractVisibleText(doc)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Page: result}
	}
	return result, nil
}

// FetchWithRetry retries transient failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*PageResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			return nil, err
		}
		if attempt < fetchMaxRetries-1 {
			fetchSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
			if ctx.Err() != nil {
				return nil, fmt.Errorf("fetch: %w", ctx.Err())
			}
		}
	}
	return nil, lastErr
}

// isRetryableFetchError returns true for server errors, rate limiting and
// transient network failures
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return isRetryableStatus(statusErr.Code)
	}

	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, "unexpected status: "); ok {
		if fields := strings.Fields(rest); len(fields) > 0 {
			if code, convErr := strconv.Atoi(fields[0]); convErr == nil {
				return isRetryableStatus(code)
			}
		}
		return false
	}

	return strings.HasPrefix(msg, "fetch: ") && isRetryableNetworkError(msg)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

// extractTitle returns the text of the first <title> element
func extractTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		var buf strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				buf.WriteString(c.Data)
			}
		}
		return strings.Join(strings.Fields(buf.String()), " ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := extractTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

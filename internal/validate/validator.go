package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/credtrust/internal/fuzzy"
	"github.com/ppiankov/credtrust/internal/model"
)

// similarityChars bounds how much of the page snippet is compared with the name
const similarityChars = 300

// SimilarityScorer scores how closely two texts describe the same thing (0-100)
type SimilarityScorer interface {
	Name() string
	Similarity(ctx context.Context, a, b string) (int, error)
}

// TokenSetSimilarity is the offline SimilarityScorer
type TokenSetSimilarity struct{}

// Name returns the method name recorded in evidence
func (TokenSetSimilarity) Name() string { return "token_set" }

// Similarity returns the token-set ratio of a and b
func (TokenSetSimilarity) Similarity(_ context.Context, a, b string) (int, error) {
	return fuzzy.TokenSetRatio(a, b), nil
}

// RateLimiter delays requests per domain
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// ReputationChecker derives web-presence evidence for an institution
type ReputationChecker struct {
	pages        PageFetcher
	ager         DomainAger
	mx           MXChecker
	similarity   SimilarityScorer
	classifier   *DomainClassifier
	limiter      RateLimiter
	timeout      time.Duration
	snippetChars int
	logger       *slog.Logger
}

// ReputationOption configures a ReputationChecker
type ReputationOption func(*ReputationChecker)

// WithDomainAger enables registration-age lookups
func WithDomainAger(a DomainAger) ReputationOption {
	return func(c *ReputationChecker) { c.ager = a }
}

// WithMXChecker enables mail-exchange lookups
func WithMXChecker(m MXChecker) ReputationOption {
	return func(c *ReputationChecker) { c.mx = m }
}

// WithSimilarity replaces the token-set similarity
func WithSimilarity(s SimilarityScorer) ReputationOption {
	return func(c *ReputationChecker) {
		if s != nil {
			c.similarity = s
		}
	}
}

// WithRateLimiter throttles page fetches per domain
func WithRateLimiter(l RateLimiter) ReputationOption {
	return func(c *ReputationChecker) { c.limiter = l }
}

// WithClassifier sets the domain tier classifier
func WithClassifier(d *DomainClassifier) ReputationOption {
	return func(c *ReputationChecker) { c.classifier = d }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) ReputationOption {
	return func(c *ReputationChecker) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewReputationChecker creates a checker around a page fetcher. Every
// network step shares the timeout.
func NewReputationChecker(pages PageFetcher, timeout time.Duration, snippetChars int, opts ...ReputationOption) *ReputationChecker {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	if snippetChars <= 0 {
		snippetChars = 1000
	}
	c := &ReputationChecker{
		pages:        pages,
		similarity:   TokenSetSimilarity{},
		classifier:   NewDomainClassifier(nil),
		timeout:      timeout,
		snippetChars: snippetChars,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeWebsite prefixes http:// when the scheme is missing and
// validates that a host is present
func NormalizeWebsite(website string) (string, error) {
	website = strings.TrimSpace(website)
	if website == "" {
		return "", model.ErrInvalidURL
	}
	if !strings.Contains(website, "://") {
		website = "http://" + website
	}
	parsed, err := url.Parse(website)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", model.ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("%w: no host", model.ErrInvalidURL)
	}
	return parsed.String(), nil
}

// Check fetches the website, compares its content with the institution
// name and looks up registration age and mail exchange. Failures are
// recorded on the result and never returned.
func (c *ReputationChecker) Check(ctx context.Context, institutionName, website string) model.WebsiteCheck {
	result := model.WebsiteCheck{URL: strings.TrimSpace(website)}

	target, err := NormalizeWebsite(website)
	if err != nil {
		result.CheckStatus = model.Degraded(model.ReasonInvalidInput, err)
		return result
	}
	result.URL = target
	result.Domain = RegisteredDomain(target)
	if c.classifier != nil {
		result.DomainTier = c.classifier.Classify(target)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		page     *PageResult
		fetchErr error
		age      *int
		whoisErr error
		mxOK     bool
		mxErr    error
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer recoverInto(&fetchErr)
		if c.limiter != nil {
			if err := c.limiter.Wait(gctx, target); err != nil {
				fetchErr = fmt.Errorf("rate limit: %w", err)
				return nil
			}
		}
		page, fetchErr = c.pages.FetchPage(gctx, target)
		return nil
	})

	if c.ager != nil {
		g.Go(func() error {
			defer recoverInto(&whoisErr)
			age, whoisErr = c.ager.DomainAge(gctx, result.Domain)
			return nil
		})
	}

	if c.mx != nil {
		g.Go(func() error {
			defer recoverInto(&mxErr)
			mxOK, mxErr = c.mx.HasMX(gctx, result.Domain)
			return nil
		})
	}

	_ = g.Wait()

	result.DomainAgeDays = age
	result.MXOK = mxOK
	if whoisErr != nil {
		result.WhoisError = whoisErr.Error()
		c.logger.Debug("whois lookup failed", "domain", result.Domain, "error", whoisErr)
	}
	if mxErr != nil {
		result.MXError = mxErr.Error()
		c.logger.Debug("mx lookup failed", "domain", result.Domain, "error", mxErr)
	}

	if fetchErr != nil {
		result.FetchError = fetchErr.Error()
		var statusErr *StatusError
		if errors.As(fetchErr, &statusErr) {
			result.StatusCode = statusErr.Code
		}
		result.CheckStatus = model.Degraded(fetchReason(fetchErr), fetchErr)
		c.logger.Warn("website check degraded", "url", target, "reason", result.Reason, "error", fetchErr)

		// Error pages that still name the institution are compared; ok stays false
		if statusErr != nil && statusErr.Page != nil && hasContent(statusErr.Page) {
			result.FinalURL = statusErr.Page.FinalURL
			result.Title = statusErr.Page.Title
			result.Snippet = truncateRunes(statusErr.Page.Text, c.snippetChars)
			c.score(ctx, institutionName, &result)
		}
		return result
	}

	result.OK = true
	result.StatusCode = page.StatusCode
	result.FinalURL = page.FinalURL
	result.Title = page.Title
	result.Snippet = truncateRunes(page.Text, c.snippetChars)
	result.CheckStatus = model.OK()

	c.score(ctx, institutionName, &result)
	return result
}

// score compares the institution name with the page title and the head of the snippet
func (c *ReputationChecker) score(ctx context.Context, name string, result *model.WebsiteCheck) {
	content := strings.TrimSpace(result.Title + " " + truncateRunes(result.Snippet, similarityChars))
	if content == "" || strings.TrimSpace(name) == "" {
		zero := 0
		result.SemanticScore = &zero
		result.SimilarityMethod = c.similarity.Name()
		return
	}

	sim, err := c.similarity.Similarity(ctx, name, content)
	method := c.similarity.Name()
	if err != nil {
		c.logger.Warn("similarity provider failed, using token-set", "provider", method, "error", err)
		sim, _ = TokenSetSimilarity{}.Similarity(ctx, name, content)
		method = TokenSetSimilarity{}.Name() + " (fallback)"
	}
	result.SemanticScore = &sim
	result.SimilarityMethod = method
}

func hasContent(page *PageResult) bool {
	return strings.TrimSpace(page.Title) != "" || strings.TrimSpace(page.Text) != ""
}

func fetchReason(err error) model.DegradedReason {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return model.ReasonLookupFailed
	case errors.Is(err, ErrDisallowedByRobots):
		return model.ReasonUnavailable
	case isRetryableNetworkError(err.Error()):
		if strings.Contains(strings.ToLower(err.Error()), "timeout") {
			return model.ReasonTimeout
		}
		return model.ReasonNetwork
	}
	return model.ReasonOf(err)
}

// recoverInto turns a panic in a sub-check into a recorded error
func recoverInto(dst *error) {
	if r := recover(); r != nil {
		*dst = model.NewCheckError(model.ReasonInternal, "reputation", fmt.Errorf("panic: %v", r))
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Package institution scores how credible a claimed issuing institution is.
package institution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/credtrust/internal/metrics"
	"github.com/ppiankov/credtrust/internal/model"
	"github.com/ppiankov/credtrust/internal/score"
)

var tracer = otel.Tracer("github.com/ppiankov/credtrust/internal/institution")

// RegistryMatcher matches a claimed institution against the trusted registry
type RegistryMatcher interface {
	Match(name, code string) model.RegistryMatch
}

// WebsiteChecker derives reputation evidence from an institution website
type WebsiteChecker interface {
	Check(ctx context.Context, institutionName, website string) model.WebsiteCheck
}

// Authenticator builds institution evidence
type Authenticator struct {
	registry   RegistryMatcher
	reputation WebsiteChecker
	scorer     *score.InstitutionScorer
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics records check latencies
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Authenticator) { a.metrics = m }
}

// NewAuthenticator creates an authenticator. Either collaborator may be nil;
// the matching check is then recorded as degraded.
func NewAuthenticator(registry RegistryMatcher, reputation WebsiteChecker, opts ...Option) *Authenticator {
	a := &Authenticator{
		registry:   registry,
		reputation: reputation,
		scorer:     score.NewInstitutionScorer(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate gathers registry and website evidence for the claim and scores it
func (a *Authenticator) Authenticate(ctx context.Context, claim model.InstitutionClaim) model.InstitutionEvidence {
	return a.authenticate(ctx, claim, codeCheck(claim.Code, "claim"))
}

// AuthenticateWithMetadata is Authenticate with the declared institute code
// used when the claim carries none
func (a *Authenticator) AuthenticateWithMetadata(ctx context.Context, claim model.InstitutionClaim, meta model.CredentialMetadata) model.InstitutionEvidence {
	if strings.TrimSpace(claim.Code) == "" && strings.TrimSpace(meta.InstituteCode) != "" {
		claim.Code = strings.TrimSpace(meta.InstituteCode)
		return a.authenticate(ctx, claim, codeCheck(claim.Code, "metadata"))
	}
	return a.Authenticate(ctx, claim)
}

func (a *Authenticator) authenticate(ctx context.Context, claim model.InstitutionClaim, code model.CodeCheck) model.InstitutionEvidence {
	ctx, span := tracer.Start(ctx, "institution.Authenticate")
	defer span.End()
	span.SetAttributes(
		attribute.String("institution.name", claim.Name),
		attribute.Bool("institution.has_website", strings.TrimSpace(claim.Website) != ""),
	)

	ev := model.InstitutionEvidence{
		Claim: claim,
		Code:  code,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ev.Registry = a.matchRegistry(claim)
		return nil
	})

	if strings.TrimSpace(claim.Website) == "" {
		ev.Website = model.WebsiteCheck{CheckStatus: model.Skipped(model.ReasonNoWebsite)}
	} else {
		g.Go(func() error {
			ev.Website = a.checkWebsite(gctx, claim)
			return nil
		})
	}

	_ = g.Wait()

	ev.Score, ev.Signals = a.scorer.Calculate(ev)

	for _, d := range ev.DegradedChecks() {
		a.logger.WarnContext(ctx, "institution check degraded", "institution", claim.Name, "check", d)
	}
	span.SetAttributes(attribute.Int("institution.score", ev.Score))
	if len(ev.DegradedChecks()) > 0 {
		span.SetStatus(codes.Error, strings.Join(ev.DegradedChecks(), "; "))
	}
	return ev
}

func (a *Authenticator) matchRegistry(claim model.InstitutionClaim) (m model.RegistryMatch) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m = model.RegistryMatch{CheckStatus: model.Degraded(model.ReasonInternal, fmt.Errorf("registry match panic: %v", r))}
		}
		a.metrics.ObserveEvidenceLatency("registry", time.Since(start))
	}()

	if a.registry == nil {
		return model.RegistryMatch{CheckStatus: model.Degraded(model.ReasonRegistryUnavailable, model.ErrRegistryUnavailable)}
	}
	return a.registry.Match(claim.Name, claim.Code)
}

func (a *Authenticator) checkWebsite(ctx context.Context, claim model.InstitutionClaim) (w model.WebsiteCheck) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w = model.WebsiteCheck{
				URL:         claim.Website,
				CheckStatus: model.Degraded(model.ReasonInternal, fmt.Errorf("reputation check panic: %v", r)),
			}
		}
		a.metrics.ObserveEvidenceLatency("reputation", time.Since(start))
	}()

	if a.reputation == nil {
		return model.WebsiteCheck{
			URL:         claim.Website,
			CheckStatus: model.Degraded(model.ReasonUnavailable, fmt.Errorf("no reputation checker configured")),
		}
	}
	return a.reputation.Check(ctx, claim.Name, claim.Website)
}

func codeCheck(code, source string) model.CodeCheck {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.CodeCheck{CheckStatus: model.Skipped(model.ReasonNoData)}
	}
	return model.CodeCheck{
		CheckStatus: model.OK(),
		Code:        code,
		Source:      source,
		Counted:     utf8.RuneCountInString(code) > score.MinCodeLength,
	}
}

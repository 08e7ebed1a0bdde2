// Package pipeline runs one evaluation end to end: institution and
// credential evidence are gathered concurrently, then decided.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/credtrust/internal/metrics"
	"github.com/ppiankov/credtrust/internal/model"
	"github.com/ppiankov/credtrust/internal/registry"
)

var tracer = otel.Tracer("github.com/ppiankov/credtrust/internal/pipeline")

// InstitutionAuthenticator builds institution evidence
type InstitutionAuthenticator interface {
	AuthenticateWithMetadata(ctx context.Context, claim model.InstitutionClaim, meta model.CredentialMetadata) model.InstitutionEvidence
}

// CredentialVerifier builds credential evidence
type CredentialVerifier interface {
	Verify(ctx context.Context, meta model.CredentialMetadata, artifact []byte, stats *model.HistoricalStats) model.CredentialEvidence
}

// Decider folds both bundles into an outcome
type Decider interface {
	Decide(inst model.InstitutionEvidence, cred model.CredentialEvidence, meta model.CredentialMetadata) model.Outcome
}

// Deps is everything an evaluation needs. It is built once and shared
// read-only by concurrent evaluations.
type Deps struct {
	Registry      *registry.Index
	Authenticator InstitutionAuthenticator
	Verifier      CredentialVerifier
	Decider       Decider
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Pipeline evaluates submissions
type Pipeline struct {
	deps Deps
	now  func() time.Time
}

// New creates a pipeline
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{deps: deps, now: time.Now}
}

// Registry returns the registry index the pipeline was built with
func (p *Pipeline) Registry() *registry.Index {
	return p.deps.Registry
}

// Evaluate scores one submission. The only error besides context
// cancellation is model.ErrInvalidClaim; every other failure is recorded
// as degraded evidence in the result.
func (p *Pipeline) Evaluate(ctx context.Context, sub model.Submission) (*model.Result, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	start := p.now()
	id := uuid.NewString()

	ctx, span := tracer.Start(ctx, "pipeline.Evaluate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("evaluation.id", id),
			attribute.String("institution.name", sub.Claim.Name),
		))
	defer span.End()

	logger := p.deps.Logger.With("evaluation_id", id)
	if sub.StudentID != "" {
		logger = logger.With("student_id", sub.StudentID)
	}

	if err := sub.LoadArtifact(); err != nil {
		logger.WarnContext(ctx, "artifact unreadable, continuing without it", "path", sub.ArtifactPath, "error", err)
		p.deps.Metrics.IncrementDegraded("artifact", string(model.ReasonInvalidInput))
	}

	var (
		inst model.InstitutionEvidence
		cred model.CredentialEvidence
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		started := time.Now()
		inst = p.deps.Authenticator.AuthenticateWithMetadata(gctx, sub.Claim, sub.Metadata)
		p.deps.Metrics.ObserveEvidenceLatency("institution", time.Since(started))
		return nil
	})

	g.Go(func() error {
		started := time.Now()
		cred = p.deps.Verifier.Verify(gctx, sub.Metadata, sub.Artifact, sub.HistoricalStats)
		p.deps.Metrics.ObserveEvidenceLatency("credential", time.Since(started))
		return nil
	})

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	outcome := p.deps.Decider.Decide(inst, cred, sub.Metadata)

	forced := outcome.Institution.ForcedMatch != nil
	p.deps.Metrics.IncrementVerdict(string(outcome.Decision.Verdict), forced)
	p.recordDegraded(outcome)
	p.deps.Metrics.ObserveEvaluateLatency(p.now().Sub(start))

	span.SetAttributes(
		attribute.String("decision.verdict", string(outcome.Decision.Verdict)),
		attribute.Int("decision.score", outcome.Decision.Score),
		attribute.Bool("decision.forced", forced),
	)

	logger.InfoContext(ctx, "evaluation complete",
		"institution", sub.Claim.Name,
		"verdict", outcome.Decision.Verdict,
		"score", outcome.Decision.Score,
		"institution_score", outcome.Institution.Score,
		"credential_score", outcome.Credential.Score,
		"forced", forced,
	)

	return &model.Result{
		ID:          id,
		StudentID:   sub.StudentID,
		EvaluatedAt: start.UTC(),
		Outcome:     outcome,
	}, nil
}

func (p *Pipeline) recordDegraded(outcome model.Outcome) {
	all := append(outcome.Institution.DegradedChecks(), outcome.Credential.DegradedChecks()...)
	for _, d := range all {
		check, reason, _ := strings.Cut(d, ": ")
		p.deps.Metrics.IncrementDegraded(check, reason)
	}
}

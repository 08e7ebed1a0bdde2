package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ppiankov/credtrust/internal/cache"
	"github.com/ppiankov/credtrust/internal/credential"
	"github.com/ppiankov/credtrust/internal/decision"
	"github.com/ppiankov/credtrust/internal/institution"
	"github.com/ppiankov/credtrust/internal/llm"
	"github.com/ppiankov/credtrust/internal/metrics"
	"github.com/ppiankov/credtrust/internal/model"
	"github.com/ppiankov/credtrust/internal/ocr"
	"github.com/ppiankov/credtrust/internal/registry"
	"github.com/ppiankov/credtrust/internal/tamper"
	"github.com/ppiankov/credtrust/internal/util"
	"github.com/ppiankov/credtrust/internal/validate"
	"github.com/ppiankov/credtrust/internal/worker"
)

// Build wires every collaborator from the configuration. The returned
// cleanup releases network-backed resources and is never nil.
func Build(ctx context.Context, cfg *model.Config, logger *slog.Logger, m *metrics.Metrics) (Deps, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	data, err := registry.Load(ctx, cfg.Registry)
	if err != nil {
		return Deps{}, cleanup, fmt.Errorf("load registry: %w", err)
	}
	index := registry.New(data, registry.OptionsFromConfig(cfg.Registry))
	if index.Loaded() {
		logger.Info("registry loaded", "source", data.Source, "rows", index.Size())
	} else {
		logger.Warn("no trusted registry configured, registry checks will be degraded")
	}

	lookupCache, err := cache.New(cfg.Cache)
	if err != nil {
		return Deps{}, cleanup, fmt.Errorf("cache: %w", err)
	}
	if c, ok := lookupCache.(io.Closer); ok {
		closers = append(closers, c)
	}

	reputation, err := buildReputation(cfg, lookupCache, logger)
	if err != nil {
		return Deps{}, cleanup, err
	}

	authenticator := institution.NewAuthenticator(index, reputation,
		institution.WithLogger(logger),
		institution.WithMetrics(m),
	)

	verifier, err := buildVerifier(cfg, index, logger, m)
	if err != nil {
		return Deps{}, cleanup, err
	}

	policy := decision.PolicyFromConfig(cfg.Policy)
	if err := policy.Validate(); err != nil {
		return Deps{}, cleanup, fmt.Errorf("policy: %w", err)
	}
	overrides, err := decision.LoadOverrides(cfg.Overrides.File)
	if err != nil {
		return Deps{}, cleanup, err
	}
	if overrides.Len() > 0 {
		logger.Info("override signatures loaded", "count", overrides.Len(), "file", cfg.Overrides.File)
	}

	return Deps{
		Registry:      index,
		Authenticator: authenticator,
		Verifier:      verifier,
		Decider:       decision.NewAggregator(policy, overrides, logger),
		Metrics:       m,
		Logger:        logger,
	}, cleanup, nil
}

func buildReputation(cfg *model.Config, c cache.Cache, logger *slog.Logger) (*validate.ReputationChecker, error) {
	fetcher := validate.NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.InsecureTLS, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
	if cfg.HTTP.RespectRobots {
		fetcher.WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, cfg.Cache.TTL,
			cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy))
	}

	opts := []validate.ReputationOption{
		validate.WithClassifier(validate.NewDomainClassifier(&cfg.Domains)),
		validate.WithRateLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)),
		validate.WithLogger(logger),
	}
	if cfg.Reputation.Whois {
		opts = append(opts, validate.WithDomainAger(validate.NewWhoisAger(cfg.Reputation.WhoisTimeout, c, cfg.Cache.TTL)))
	}
	if cfg.Reputation.MX {
		opts = append(opts, validate.WithMXChecker(validate.NewResolverMX(nil, c, cfg.Cache.TTL)))
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("similarity provider: %w", err)
	}
	if provider != nil {
		logger.Info("semantic similarity enabled", "provider", provider.Name())
		opts = append(opts, validate.WithSimilarity(provider))
	}

	return validate.NewReputationChecker(fetcher, cfg.Reputation.Timeout, cfg.Reputation.SnippetChars, opts...), nil
}

func buildVerifier(cfg *model.Config, index *registry.Index, logger *slog.Logger, m *metrics.Metrics) (*credential.Verifier, error) {
	recognizer, err := ocr.New(cfg.OCR)
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}

	var tm tamper.Model
	if cfg.Tamper.ModelPath != "" {
		lm, err := tamper.LoadLinearModel(cfg.Tamper.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("tamper model: %w", err)
		}
		logger.Info("tamper model loaded", "path", cfg.Tamper.ModelPath, "features", len(lm.Features))
		tm = lm
	}

	return credential.NewVerifier(index,
		credential.WithRecognizer(recognizer),
		credential.WithDistortionScorer(tamper.NewELA(cfg.Tamper.ELAQuality)),
		credential.WithTamperEvaluator(tamper.NewEvaluator(tm, cfg.Tamper)),
		credential.WithLogger(logger),
		credential.WithMetrics(m),
	), nil
}

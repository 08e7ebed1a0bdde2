// Package credential builds the evidence bundle for a submitted credential.
package credential

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/credtrust/internal/extract"
	"github.com/ppiankov/credtrust/internal/metrics"
	"github.com/ppiankov/credtrust/internal/model"
	"github.com/ppiankov/credtrust/internal/ocr"
	"github.com/ppiankov/credtrust/internal/score"
	"github.com/ppiankov/credtrust/internal/tamper"
)

// MaxTextRunes bounds the credential text kept in evidence
const MaxTextRunes = 5000

var tracer = otel.Tracer("github.com/ppiankov/credtrust/internal/credential")

// RegistryLookup answers the serial and accreditation questions
type RegistryLookup interface {
	LookupSerial(serial string) model.SerialCheck
	CheckAccreditation(issuer, statement string) model.AccreditationCheck
}

// Verifier builds credential evidence
type Verifier struct {
	registry    RegistryLookup
	recognizer  ocr.Recognizer
	distortion  tamper.DistortionScorer
	tamper      *tamper.Evaluator
	extractor   *extract.FieldExtractor
	consistency *score.ConsistencyScorer
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Verifier
type Option func(*Verifier)

// WithRecognizer sets the text recognizer used on artifacts
func WithRecognizer(r ocr.Recognizer) Option {
	return func(v *Verifier) { v.recognizer = r }
}

// WithDistortionScorer replaces the default ELA scorer
func WithDistortionScorer(d tamper.DistortionScorer) Option {
	return func(v *Verifier) {
		if d != nil {
			v.distortion = d
		}
	}
}

// WithTamperEvaluator sets the tamper evaluator
func WithTamperEvaluator(e *tamper.Evaluator) Option {
	return func(v *Verifier) {
		if e != nil {
			v.tamper = e
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithMetrics records step latencies
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) { v.metrics = m }
}

// NewVerifier creates a verifier. A nil registry degrades the serial and
// accreditation checks; without a recognizer artifacts yield no text.
func NewVerifier(registry RegistryLookup, opts ...Option) *Verifier {
	v := &Verifier{
		registry:    registry,
		distortion:  tamper.NewELA(0),
		tamper:      tamper.NewEvaluator(nil, model.DefaultConfig().Tamper),
		extractor:   extract.NewFieldExtractor(),
		consistency: score.NewConsistencyScorer(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs every credential check. Each step records its own status;
// Verify never fails.
func (v *Verifier) Verify(ctx context.Context, meta model.CredentialMetadata, artifact []byte, stats *model.HistoricalStats) model.CredentialEvidence {
	ctx, span := tracer.Start(ctx, "credential.Verify")
	defer span.End()
	span.SetAttributes(attribute.Int("credential.artifact_bytes", len(artifact)))

	var ev model.CredentialEvidence

	acq := v.acquireText(ctx, meta, artifact)
	ev.Text = acq.text

	ev.Fields = v.extractor.Extract(ev.Text.Text)

	var sig model.Signal
	ev.Consistency, sig = v.consistency.Calculate(meta, ev.Fields)
	ev.Score = ev.Consistency.Score
	ev.Signals = append(ev.Signals, sig)

	ev.Serial = v.checkSerial(meta, ev.Fields)
	ev.Accreditation = v.checkAccreditation(meta)
	ev.Dates = CheckDates(meta.IssuanceDate, meta.ConvocationDate)
	ev.Tamper = v.evaluateTamper(meta, ev, acq, stats)

	ev.Signals = append(ev.Signals, flagSignals(ev)...)

	for _, d := range ev.DegradedChecks() {
		v.logger.WarnContext(ctx, "credential check degraded", "check", d)
	}
	span.SetAttributes(
		attribute.Int("credential.score", ev.Score),
		attribute.String("credential.text_source", string(ev.Text.Source)),
		attribute.String("credential.tamper_mode", string(ev.Tamper.Mode)),
	)
	return ev
}

// acquisition is the outcome of the text step plus what the tamper step needs
type acquisition struct {
	text        model.TextAcquisition
	ela         *float64
	elaErr      error
	artifactErr error
	size        int
}

func (v *Verifier) acquireText(ctx context.Context, meta model.CredentialMetadata, artifact []byte) acquisition {
	raw := strings.TrimSpace(meta.RawText)

	if len(artifact) == 0 {
		if raw == "" {
			return acquisition{text: model.TextAcquisition{
				CheckStatus: model.Skipped(model.ReasonNoData),
				Source:      model.TextSourceNone,
			}}
		}
		return acquisition{text: textFrom(model.TextSourceRawText, raw, model.OK())}
	}

	acq := acquisition{size: len(artifact)}

	img, ext, err := tamper.DecodeArtifact(artifact)
	if err != nil {
		acq.artifactErr = err
		acq.text = fallback(raw, model.Degraded(model.ReasonInvalidInput, err))
		acq.text.SizeBytes = len(artifact)
		return acq
	}

	var (
		text   string
		ocrErr error
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		defer func() { v.metrics.ObserveEvidenceLatency("ocr", time.Since(start)) }()
		text, ocrErr = v.recognize(gctx, img)
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		defer func() { v.metrics.ObserveEvidenceLatency("ela", time.Since(start)) }()
		ela, err := v.score(img)
		if err != nil {
			acq.elaErr = err
			return nil
		}
		acq.ela = &ela
		return nil
	})

	_ = g.Wait()

	switch {
	case ocrErr != nil:
		acq.text = fallback(raw, model.Degraded("", ocrErr))
	case strings.TrimSpace(text) == "" && raw != "":
		acq.text = textFrom(model.TextSourceRawText, raw, model.OK())
	default:
		acq.text = textFrom(model.TextSourceArtifact, text, model.OK())
	}
	acq.text.ArtifactType = ext
	acq.text.SizeBytes = len(artifact)
	return acq
}

// recognize re-encodes the decoded image as PNG so every recognizer sees
// one lossless format
func (v *Verifier) recognize(ctx context.Context, img image.Image) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.NewCheckError(model.ReasonInternal, "ocr", fmt.Errorf("panic: %v", r))
		}
	}()

	if v.recognizer == nil {
		return "", model.NewCheckError(model.ReasonUnavailable, "ocr", model.ErrOCRUnavailable)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", model.NewCheckError(model.ReasonInternal, "ocr", fmt.Errorf("encode png: %w", err))
	}
	return v.recognizer.Recognize(ctx, buf.Bytes())
}

func (v *Verifier) score(img image.Image) (ela float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.NewCheckError(model.ReasonInternal, "ela", fmt.Errorf("panic: %v", r))
		}
	}()
	return v.distortion.Score(img)
}

// fallback uses the declared raw text when recognition was not possible
func fallback(raw string, status model.CheckStatus) model.TextAcquisition {
	if raw == "" {
		return model.TextAcquisition{CheckStatus: status, Source: model.TextSourceNone}
	}
	return textFrom(model.TextSourceRawText, raw, status)
}

func textFrom(source model.TextSource, text string, status model.CheckStatus) model.TextAcquisition {
	acq := model.TextAcquisition{CheckStatus: status, Source: source, Text: text}
	if utf8.RuneCountInString(text) > MaxTextRunes {
		acq.Text = string([]rune(text)[:MaxTextRunes])
		acq.Truncated = true
	}
	return acq
}

func (v *Verifier) checkSerial(meta model.CredentialMetadata, fields model.ExtractedFields) model.SerialCheck {
	serial, source := strings.TrimSpace(meta.SerialNumber), "metadata"
	if serial == "" && fields.Serial != nil {
		serial, source = strings.TrimSpace(*fields.Serial), "extracted"
	}
	if serial == "" {
		return model.SerialCheck{CheckStatus: model.Skipped(model.ReasonNoData)}
	}

	var check model.SerialCheck
	if v.registry == nil {
		check = model.SerialCheck{
			Serial:      serial,
			CheckStatus: model.Degraded(model.ReasonRegistryUnavailable, model.ErrRegistryUnavailable),
		}
	} else {
		check = v.registry.LookupSerial(serial)
	}
	check.Source = source
	return check
}

func (v *Verifier) checkAccreditation(meta model.CredentialMetadata) model.AccreditationCheck {
	statement := strings.TrimSpace(meta.AccreditationStatement)
	if v.registry == nil {
		if statement == "" {
			return model.AccreditationCheck{CheckStatus: model.Skipped(model.ReasonNoData)}
		}
		return model.AccreditationCheck{
			Statement:   statement,
			CheckStatus: model.Degraded(model.ReasonRegistryUnavailable, model.ErrRegistryUnavailable),
		}
	}
	return v.registry.CheckAccreditation(meta.IssuerName, statement)
}

func (v *Verifier) evaluateTamper(meta model.CredentialMetadata, ev model.CredentialEvidence, acq acquisition, stats *model.HistoricalStats) model.TamperCheck {
	if acq.artifactErr != nil {
		return model.TamperCheck{
			Mode:        model.TamperModeUnavailable,
			CheckStatus: model.Degraded(model.ReasonInvalidInput, acq.artifactErr),
		}
	}

	features := tamper.BuildFeatures(tamper.FeatureInput{
		Metadata:     meta,
		Fields:       ev.Fields,
		Consistency:  ev.Consistency,
		Text:         ev.Text.Text,
		ELA:          acq.ela,
		ArtifactSize: acq.size,
	})

	check := v.tamper.Evaluate(features, acq.ela, stats)
	if acq.elaErr != nil && check.Mode == model.TamperModeUnavailable {
		check.CheckStatus = model.Degraded("", acq.elaErr)
	}
	return check
}

// flagSignals records the credential findings the decision policy penalises
func flagSignals(ev model.CredentialEvidence) []model.Signal {
	var signals []model.Signal

	if ev.Serial.Reused {
		signals = append(signals, model.Signal{
			Type:        model.SignalSerialReuse,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("Serial %s appears on %d registry rows", ev.Serial.Serial, ev.Serial.Count),
			Data:        map[string]interface{}{"serial": ev.Serial.Serial, "count": ev.Serial.Count},
		})
	}

	if ev.Dates.Anomalous() {
		signals = append(signals, model.Signal{
			Type:        model.SignalDateAnomaly,
			Severity:    model.SeverityCritical,
			Description: "Convocation is dated before issuance",
			Data: map[string]interface{}{
				"issuance":    ev.Dates.IssuanceDate,
				"convocation": ev.Dates.ConvocationDate,
				"delta_days":  *ev.Dates.DeltaDays,
			},
		})
	}

	if ev.Tamper.Likely || ev.Tamper.Anomaly {
		data := map[string]interface{}{"mode": string(ev.Tamper.Mode)}
		if ev.Tamper.ELAScore != nil {
			data["ela_score"] = *ev.Tamper.ELAScore
		}
		if ev.Tamper.Probability != nil {
			data["probability"] = *ev.Tamper.Probability
		}
		if ev.Tamper.AnomalyScore != nil {
			data["anomaly_score"] = *ev.Tamper.AnomalyScore
		}
		severity := model.SeverityWarning
		if ev.Tamper.Likely {
			severity = model.SeverityCritical
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalTamper,
			Severity:    severity,
			Description: fmt.Sprintf("Tamper evaluation (%s): likely=%t anomaly=%t", ev.Tamper.Mode, ev.Tamper.Likely, ev.Tamper.Anomaly),
			Data:        data,
		})
	}

	if ev.Accreditation.OK != nil && !*ev.Accreditation.OK {
		signals = append(signals, model.Signal{
			Type:        model.SignalAccreditation,
			Severity:    model.SeverityWarning,
			Description: "Accreditation statement not supported by registry",
			Data: map[string]interface{}{
				"statement":  ev.Accreditation.Statement,
				"candidates": ev.Accreditation.Candidates,
			},
		})
	}

	return signals
}

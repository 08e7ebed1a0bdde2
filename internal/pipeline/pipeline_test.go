package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/credtrust/internal/credential"
	"github.com/ppiankov/credtrust/internal/decision"
	"github.com/ppiankov/credtrust/internal/institution"
	"github.com/ppiankov/credtrust/internal/metrics"
	"github.com/ppiankov/credtrust/internal/model"
	"github.com/ppiankov/credtrust/internal/registry"
)

const registryCSV = `institute_name,code,city,certificate_serial_number,accreditation
"National Institute of Technology, Silchar",NITS01,Silchar,NITS-2021-0042,Institute of National Importance
Example College,EXC9,Nowhere,ABC123,none
Example College,EXC9,Nowhere,ABC123,none
`

type fakeWebsite struct {
	calls atomic.Int32
}

func (f *fakeWebsite) Check(ctx context.Context, name, website string) model.WebsiteCheck {
	f.calls.Add(1)
	sim, age := 85, 4000
	return model.WebsiteCheck{
		CheckStatus:      model.OK(),
		URL:              website,
		OK:               true,
		StatusCode:       200,
		Title:            "National Institute of Technology Silchar",
		SemanticScore:    &sim,
		SimilarityMethod: "token_set",
		DomainAgeDays:    &age,
		MXOK:             true,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T, website institution.WebsiteChecker, overrides *decision.OverrideSet) *Pipeline {
	t.Helper()
	data, err := registry.ReadCSV(strings.NewReader(registryCSV))
	require.NoError(t, err)
	index := registry.New(data, registry.Options{})
	logger := quietLogger()
	m := metrics.New(prometheus.NewRegistry())

	return New(Deps{
		Registry:      index,
		Authenticator: institution.NewAuthenticator(index, website, institution.WithLogger(logger), institution.WithMetrics(m)),
		Verifier:      credential.NewVerifier(index, credential.WithLogger(logger), credential.WithMetrics(m)),
		Decider:       decision.NewAggregator(decision.DefaultPolicy(), overrides, logger),
		Metrics:       m,
		Logger:        logger,
	})
}

func silcharSubmission() model.Submission {
	return model.Submission{
		StudentID: "S-001",
		Claim: model.InstitutionClaim{
			Name:    "NIT Silchar",
			Website: "www.nits.ac.in",
		},
		Metadata: model.CredentialMetadata{
			RecipientName: "Asha Rao",
			IssuerName:    "National Institute of Technology Silchar",
			Marks:         "78%",
			RawText: "Student Name: Asha Rao\n" +
				"Institute: National Institute of Technology Silchar\n" +
				"Marks: 78.4%\n" +
				"Serial No: NITS-2021-0042",
			IssuanceDate:    "2021-07-01",
			ConvocationDate: "2021-09-15",
		},
	}
}

func TestEvaluate_NITSilcharScenario(t *testing.T) {
	website := &fakeWebsite{}
	p := newTestPipeline(t, website, nil)

	result, err := p.Evaluate(context.Background(), silcharSubmission())
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "S-001", result.StudentID)

	assert.True(t, result.Institution.Registry.Found)
	assert.GreaterOrEqual(t, result.Institution.Registry.Score, 75)
	assert.GreaterOrEqual(t, result.Institution.Score, 60)
	assert.Equal(t, int32(1), website.calls.Load())

	require.NotNil(t, result.Credential.Consistency.MarksMatched)
	assert.True(t, *result.Credential.Consistency.MarksMatched, "78% vs 78.4% is within tolerance")
	assert.Equal(t, 100, result.Credential.Score)
	assert.True(t, result.Credential.Serial.Found)
	assert.False(t, result.Credential.Serial.Reused)

	assert.GreaterOrEqual(t, result.Decision.Score, 75)
	assert.Equal(t, model.VerdictVerified, result.Decision.Verdict)
	assert.True(t, result.InstituteVerified)
	assert.True(t, result.CertificateVerified)
}

func TestEvaluate_NoWebsiteNeverCallsChecker(t *testing.T) {
	website := &fakeWebsite{}
	p := newTestPipeline(t, website, nil)

	sub := silcharSubmission()
	sub.Claim.Website = ""
	result, err := p.Evaluate(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, int32(0), website.calls.Load())
	assert.Equal(t, model.StateSkipped, result.Institution.Website.State)
	assert.Equal(t, model.ReasonNoWebsite, result.Institution.Website.Reason)
	assert.Equal(t, 60, result.Institution.Score)
}

func TestEvaluate_SerialReuse(t *testing.T) {
	p := newTestPipeline(t, &fakeWebsite{}, nil)

	sub := silcharSubmission()
	sub.Metadata.SerialNumber = "ABC123"
	result, err := p.Evaluate(context.Background(), sub)
	require.NoError(t, err)

	assert.True(t, result.Credential.Serial.Reused)
	assert.Equal(t, 2, result.Credential.Serial.Count)
	assert.Equal(t, model.VerdictSuspicious, result.Decision.Verdict)
	assert.False(t, result.CertificateVerified)
}

func TestEvaluate_InvalidClaim(t *testing.T) {
	p := newTestPipeline(t, &fakeWebsite{}, nil)

	sub := silcharSubmission()
	sub.Claim.Name = "   "
	_, err := p.Evaluate(context.Background(), sub)

	assert.True(t, errors.Is(err, model.ErrInvalidClaim))
}

func TestEvaluate_Cancelled(t *testing.T) {
	p := newTestPipeline(t, &fakeWebsite{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Evaluate(ctx, silcharSubmission())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEvaluate_Idempotent(t *testing.T) {
	p := newTestPipeline(t, &fakeWebsite{}, nil)

	first, err := p.Evaluate(context.Background(), silcharSubmission())
	require.NoError(t, err)
	second, err := p.Evaluate(context.Background(), silcharSubmission())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Outcome, second.Outcome)
}

func TestEvaluate_OverrideSignature(t *testing.T) {
	set, err := decision.NewOverrideSet([]model.OverrideSignature{{
		ID:               "sig-1",
		Serial:           "X-1",
		InstituteAliases: []string{"Unlisted Academy"},
		Recipient:        "Ravi Kumar",
		Category:         "Diploma",
		IssuanceDate:     "2020-05-01",
	}})
	require.NoError(t, err)
	p := newTestPipeline(t, &fakeWebsite{}, set)

	sub := model.Submission{
		Claim: model.InstitutionClaim{Name: "Unlisted Academy"},
		Metadata: model.CredentialMetadata{
			RecipientName: "Ravi Kumar",
			InstituteName: "Unlisted Academy of Arts",
			SerialNumber:  "X-1",
			Category:      "diploma",
			IssuanceDate:  "2020-05-01",
		},
	}

	result, err := p.Evaluate(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictVerified, result.Decision.Verdict)
	assert.Equal(t, 90, result.Decision.Score)
	require.NotNil(t, result.Institution.ForcedMatch)
	assert.Equal(t, "sig-1", result.Institution.ForcedMatch.SignatureID)

	sub.Metadata.IssuanceDate = "2020-05-02"
	normal, err := p.Evaluate(context.Background(), sub)
	require.NoError(t, err)
	assert.Nil(t, normal.Institution.ForcedMatch)
	assert.NotEqual(t, model.VerdictVerified, normal.Decision.Verdict)
}

func TestEvaluate_UnreadableArtifactPath(t *testing.T) {
	p := newTestPipeline(t, &fakeWebsite{}, nil)

	sub := silcharSubmission()
	sub.ArtifactPath = filepath.Join(t.TempDir(), "missing.png")
	result, err := p.Evaluate(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, model.TextSourceRawText, result.Credential.Text.Source)
}

func TestRenderer(t *testing.T) {
	p := newTestPipeline(t, &fakeWebsite{}, nil)
	result, err := p.Evaluate(context.Background(), silcharSubmission())
	require.NoError(t, err)

	r := NewRenderer(false)

	md := r.Markdown(result)
	assert.Contains(t, md, "# Credential evaluation: NIT Silchar")
	assert.Contains(t, md, "**Verdict:** VERIFIED")
	assert.Contains(t, md, "| registry | ok |")
	assert.Contains(t, md, "| tamper | skipped (no_data) |")

	var summary bytes.Buffer
	r.RenderSummary(&summary, result)
	assert.Contains(t, summary.String(), "Verdict:      VERIFIED")
	assert.NotContains(t, summary.String(), "\x1b[", "colour disabled")

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "result.json")
	require.NoError(t, r.RenderJSON(result, jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"verdict": "VERIFIED"`)
	assert.Contains(t, string(data), `"evaluation_id": "`+result.ID+`"`)

	mdPath := filepath.Join(dir, "result.md")
	require.NoError(t, r.RenderMarkdown(result, mdPath))
	assert.FileExists(t, mdPath)
}

func TestBuild_Defaults(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.OCR.Engine = "none"
	cfg.Reputation.Whois = false
	cfg.Reputation.MX = false

	deps, cleanup, err := Build(context.Background(), cfg, quietLogger(), nil)
	require.NoError(t, err)
	defer cleanup()

	assert.False(t, deps.Registry.Loaded())
	assert.NotNil(t, deps.Authenticator)
	assert.NotNil(t, deps.Verifier)
	assert.NotNil(t, deps.Decider)
}

func TestBuild_Errors(t *testing.T) {
	tests := map[string]func(cfg *model.Config){
		"missing registry csv": func(cfg *model.Config) { cfg.Registry.CSVPath = "/nonexistent/registry.csv" },
		"unknown cache":        func(cfg *model.Config) { cfg.Cache.Backend = "memcached" },
		"unknown ocr engine":   func(cfg *model.Config) { cfg.OCR.Engine = "abbyy" },
		"missing tamper model": func(cfg *model.Config) { cfg.Tamper.ModelPath = "/nonexistent/model.json" },
		"unknown llm provider": func(cfg *model.Config) { cfg.LLM.Provider = "carrier-pigeon" },
		"bad policy":           func(cfg *model.Config) { cfg.Policy.SuspiciousThreshold = 99 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := model.DefaultConfig()
			cfg.OCR.Engine = "none"
			mutate(cfg)

			_, cleanup, err := Build(context.Background(), cfg, quietLogger(), nil)
			defer cleanup()
			assert.Error(t, err)
		})
	}
}

package decision

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/credtrust/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func evidence(inst, cred int) (model.InstitutionEvidence, model.CredentialEvidence) {
	return model.InstitutionEvidence{Score: inst, Registry: model.RegistryMatch{CheckStatus: model.OK()}},
		model.CredentialEvidence{
			Score:       cred,
			Consistency: model.ConsistencyResult{CheckStatus: model.OK(), Score: cred},
		}
}

func TestDecide_Thresholds(t *testing.T) {
	agg := NewAggregator(DefaultPolicy(), nil, quietLogger())

	tests := []struct {
		inst, cred  int
		wantScore   int
		wantVerdict model.Verdict
	}{
		{100, 100, 100, model.VerdictVerified},
		{75, 75, 75, model.VerdictVerified},
		{75, 74, 75, model.VerdictVerified}, // 74.5 rounds half away from zero
		{74, 74, 74, model.VerdictSuspicious},
		{45, 45, 45, model.VerdictSuspicious},
		{44, 45, 45, model.VerdictSuspicious},
		{44, 44, 44, model.VerdictRejected},
		{0, 0, 0, model.VerdictRejected},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.inst, tt.cred), func(t *testing.T) {
			inst, cred := evidence(tt.inst, tt.cred)
			out := agg.Decide(inst, cred, model.CredentialMetadata{})

			assert.Equal(t, tt.wantScore, out.Decision.Score)
			assert.Equal(t, tt.wantVerdict, out.Decision.Verdict)
			assert.Equal(t, tt.wantVerdict == model.VerdictVerified, out.CertificateVerified)
			assert.Equal(t, tt.inst >= 80, out.InstituteVerified)
		})
	}
}

func TestDecide_Monotonic(t *testing.T) {
	agg := NewAggregator(DefaultPolicy(), nil, quietLogger())
	rank := map[model.Verdict]int{model.VerdictRejected: 0, model.VerdictSuspicious: 1, model.VerdictVerified: 2}

	for _, reused := range []bool{false, true} {
		prev := -1
		prevRank := -1
		for s := 0; s <= 100; s += 5 {
			inst, cred := evidence(s, 60)
			cred.Serial.Reused = reused
			out := agg.Decide(inst, cred, model.CredentialMetadata{})

			assert.GreaterOrEqual(t, out.Decision.Score, prev, "score must not decrease at institution=%d", s)
			assert.GreaterOrEqual(t, rank[out.Decision.Verdict], prevRank, "verdict must not decrease at institution=%d", s)
			prev, prevRank = out.Decision.Score, rank[out.Decision.Verdict]
		}
	}
}

func TestDecide_PenaltiesAndCaps(t *testing.T) {
	agg := NewAggregator(DefaultPolicy(), nil, quietLogger())

	t.Run("serial reuse caps verdict", func(t *testing.T) {
		inst, cred := evidence(100, 100)
		cred.Serial = model.SerialCheck{CheckStatus: model.OK(), Serial: "ABC123", Found: true, Count: 2, Reused: true}

		out := agg.Decide(inst, cred, model.CredentialMetadata{})

		assert.Equal(t, 85, out.Decision.Score)
		assert.Equal(t, model.VerdictSuspicious, out.Decision.Verdict)
		assert.False(t, out.CertificateVerified)
		assertReason(t, out.Decision.Reasons, "penalty -15: serial ABC123 appears on 2 registry rows")
		assertReason(t, out.Decision.Reasons, "cap: serial reuse limits verdict to SUSPICIOUS")
	})

	t.Run("date anomaly", func(t *testing.T) {
		inst, cred := evidence(90, 90)
		delta := -30
		cred.Dates = model.DateCheck{CheckStatus: model.OK(), IssuanceDate: "2021-07-01", ConvocationDate: "2021-06-01",
			DeltaDays: &delta, Issue: model.IssueConvocationBeforeIssuance}

		out := agg.Decide(inst, cred, model.CredentialMetadata{})

		assert.Equal(t, 80, out.Decision.Score)
		assert.Equal(t, model.VerdictSuspicious, out.Decision.Verdict)
	})

	t.Run("tamper likely", func(t *testing.T) {
		inst, cred := evidence(90, 90)
		cred.Tamper = model.TamperCheck{CheckStatus: model.OK(), Mode: model.TamperModeHeuristic, Likely: true}

		out := agg.Decide(inst, cred, model.CredentialMetadata{})

		assert.Equal(t, 75, out.Decision.Score)
		assert.Equal(t, model.VerdictSuspicious, out.Decision.Verdict)
	})

	t.Run("accreditation false is not blocking", func(t *testing.T) {
		inst, cred := evidence(90, 90)
		no := false
		cred.Accreditation = model.AccreditationCheck{CheckStatus: model.OK(), OK: &no}

		out := agg.Decide(inst, cred, model.CredentialMetadata{})

		assert.Equal(t, 85, out.Decision.Score)
		assert.Equal(t, model.VerdictVerified, out.Decision.Verdict)
	})

	t.Run("penalties clamp at zero", func(t *testing.T) {
		inst, cred := evidence(10, 10)
		cred.Serial.Reused = true
		cred.Tamper.Likely = true

		out := agg.Decide(inst, cred, model.CredentialMetadata{})

		assert.Equal(t, 0, out.Decision.Score)
		assert.Equal(t, model.VerdictRejected, out.Decision.Verdict)
	})
}

func TestDecide_ReasonsListDegradedChecks(t *testing.T) {
	agg := NewAggregator(DefaultPolicy(), nil, quietLogger())
	inst, cred := evidence(60, 50)
	inst.Website = model.WebsiteCheck{CheckStatus: model.Degraded(model.ReasonTimeout, nil)}
	cred.Text = model.TextAcquisition{CheckStatus: model.Degraded(model.ReasonInvalidInput, nil)}

	out := agg.Decide(inst, cred, model.CredentialMetadata{})

	assert.Equal(t, "institution score 60 (weight 0.50)", out.Decision.Reasons[0])
	assert.True(t, strings.HasPrefix(out.Decision.Reasons[1], "credential consistency score 50"))
	assertReason(t, out.Decision.Reasons, "combined score 55 = 55 - 0 penalties (verified >= 75, suspicious >= 45)")
	assertReason(t, out.Decision.Reasons, "degraded institution check website: timeout")
	assertReason(t, out.Decision.Reasons, "degraded credential check text: invalid_input")
}

var silcharSignature = model.OverrideSignature{
	ID:               "nits-2021-0042",
	Serial:           "NITS-2021-0042",
	InstituteAliases: []string{"NIT Silchar", "National Institute of Technology Silchar"},
	Recipient:        "Asha Rao",
	Category:         "Degree",
	IssuanceDate:     "2021-07-01",
}

func silcharMetadata() model.CredentialMetadata {
	return model.CredentialMetadata{
		RecipientName: "Ms. Asha Rao",
		InstituteName: "National Institute of Technology Silchar, Assam",
		SerialNumber:  " NITS-2021-0042 ",
		Category:      "degree",
		IssuanceDate:  "2021-07-01",
	}
}

func TestDecide_OverrideMatch(t *testing.T) {
	set, err := NewOverrideSet([]model.OverrideSignature{silcharSignature})
	require.NoError(t, err)
	agg := NewAggregator(DefaultPolicy(), set, quietLogger())

	inst, cred := evidence(40, 30)
	cred.Serial = model.SerialCheck{CheckStatus: model.OK(), Serial: "NITS-2021-0042"}

	out := agg.Decide(inst, cred, silcharMetadata())

	assert.Equal(t, model.VerdictVerified, out.Decision.Verdict)
	assert.Equal(t, 90, out.Decision.Score)
	assert.Equal(t, ReasonForcedSignatureMatch, out.Decision.Reasons[len(out.Decision.Reasons)-1])
	assert.Equal(t, 95, out.Institution.Score)
	assert.Equal(t, 95, out.Credential.Score)
	assert.Equal(t, 95, out.Credential.Consistency.Score)
	require.NotNil(t, out.Credential.Accreditation.OK)
	assert.True(t, *out.Credential.Accreditation.OK)
	assert.True(t, out.Credential.Serial.ForcedKnownGood)
	require.NotNil(t, out.Institution.ForcedMatch)
	assert.Equal(t, "nits-2021-0042", out.Institution.ForcedMatch.SignatureID)
	require.NotNil(t, out.Credential.ForcedMatch)
	assert.Equal(t, "NITS-2021-0042", out.Credential.ForcedMatch.MatchedSerial)
	assert.True(t, out.InstituteVerified)
	assert.True(t, out.CertificateVerified)

	assert.Nil(t, cred.Accreditation.OK, "caller's evidence must not be modified")
	assert.Nil(t, inst.ForcedMatch)
}

func TestDecide_OverrideNeverLowers(t *testing.T) {
	set, err := NewOverrideSet([]model.OverrideSignature{silcharSignature})
	require.NoError(t, err)
	agg := NewAggregator(DefaultPolicy(), set, quietLogger())

	inst, cred := evidence(100, 100)
	out := agg.Decide(inst, cred, silcharMetadata())

	assert.Equal(t, 100, out.Decision.Score)
	assert.Equal(t, 100, out.Institution.Score)
	assert.Equal(t, 100, out.Credential.Score)
}

func TestDecide_OverrideAllOrNothing(t *testing.T) {
	set, err := NewOverrideSet([]model.OverrideSignature{silcharSignature})
	require.NoError(t, err)
	agg := NewAggregator(DefaultPolicy(), set, quietLogger())

	tests := map[string]func(m *model.CredentialMetadata){
		"date one day off":    func(m *model.CredentialMetadata) { m.IssuanceDate = "2021-07-02" },
		"serial differs":      func(m *model.CredentialMetadata) { m.SerialNumber = "NITS-2021-0043" },
		"institute unknown":   func(m *model.CredentialMetadata) { m.InstituteName = "NIT Agartala" },
		"recipient differs":   func(m *model.CredentialMetadata) { m.RecipientName = "Asha Roy" },
		"category differs":    func(m *model.CredentialMetadata) { m.Category = "Diploma" },
		"serial missing":      func(m *model.CredentialMetadata) { m.SerialNumber = "" },
		"recipient missing":   func(m *model.CredentialMetadata) { m.RecipientName = "" },
		"date format differs": func(m *model.CredentialMetadata) { m.IssuanceDate = "01/07/2021" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			meta := silcharMetadata()
			mutate(&meta)
			inst, cred := evidence(40, 30)

			out := agg.Decide(inst, cred, meta)

			assert.Equal(t, model.VerdictRejected, out.Decision.Verdict)
			assert.Equal(t, 35, out.Decision.Score)
			assert.Nil(t, out.Institution.ForcedMatch)
			assert.Nil(t, out.Credential.ForcedMatch)
			assert.NotContains(t, out.Decision.Reasons, ReasonForcedSignatureMatch)
		})
	}
}

func TestDecide_IssuerNameAliasFallback(t *testing.T) {
	set, err := NewOverrideSet([]model.OverrideSignature{silcharSignature})
	require.NoError(t, err)
	agg := NewAggregator(DefaultPolicy(), set, quietLogger())

	meta := silcharMetadata()
	meta.InstituteName = ""
	meta.IssuerName = "NIT Silchar"
	inst, cred := evidence(10, 10)

	out := agg.Decide(inst, cred, meta)
	assert.Equal(t, model.VerdictVerified, out.Decision.Verdict)
}

func TestDecide_RevokedSignatureNeverMatches(t *testing.T) {
	revoked := silcharSignature
	revoked.Revoked = true
	set, err := NewOverrideSet([]model.OverrideSignature{revoked})
	require.NoError(t, err)
	agg := NewAggregator(DefaultPolicy(), set, quietLogger())

	inst, cred := evidence(40, 30)
	out := agg.Decide(inst, cred, silcharMetadata())

	assert.Equal(t, model.VerdictRejected, out.Decision.Verdict)
	assert.Nil(t, out.Institution.ForcedMatch)
}

func assertReason(t *testing.T, reasons []string, want string) {
	t.Helper()
	assert.Contains(t, reasons, want)
}

package decision

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/credtrust/internal/model"
	"github.com/ppiankov/credtrust/internal/score"
)

// Forced-match constants
const (
	ReasonForcedSignatureMatch = "forced-signature-match"
	ForcedEvidenceScore        = 95
	ForcedDecisionScore        = 90
)

// Aggregator decides a verdict from the two evidence bundles
type Aggregator struct {
	policy    Policy
	overrides *OverrideSet
	logger    *slog.Logger
}

// NewAggregator creates an aggregator. overrides may be nil.
func NewAggregator(policy Policy, overrides *OverrideSet, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{policy: policy, overrides: overrides, logger: logger}
}

// Policy returns the policy in use
func (a *Aggregator) Policy() Policy {
	return a.policy
}

// Decide applies the normal policy and then, when a signature matches the
// declared metadata, the forced-match override. The override only raises
// scores; a partial signature match changes nothing.
func (a *Aggregator) Decide(inst model.InstitutionEvidence, cred model.CredentialEvidence, meta model.CredentialMetadata) model.Outcome {
	decision := a.normal(inst, cred)

	if sig, ok := a.overrides.Match(meta); ok {
		inst, cred, decision = applyOverride(sig, inst, cred, decision)
		a.logger.Info("override signature matched", "signature_id", sig.ID, "serial", sig.Serial)
	}

	return model.Outcome{
		Institution:         inst,
		Credential:          cred,
		Decision:            decision,
		InstituteVerified:   inst.Score >= a.policy.InstituteVerifiedAt,
		CertificateVerified: decision.Verdict == model.VerdictVerified,
	}
}

func (a *Aggregator) normal(inst model.InstitutionEvidence, cred model.CredentialEvidence) model.Decision {
	p := a.policy
	reasons := []string{
		fmt.Sprintf("institution score %d (weight %.2f)", inst.Score, p.InstitutionWeight),
		fmt.Sprintf("credential consistency score %d (weight %.2f, %d/%d facts matched)",
			cred.Score, p.CredentialWeight, cred.Consistency.Match, cred.Consistency.Total),
	}

	weighted := p.weighted(inst.Score, cred.Score)
	penalty := 0
	var blocking []string

	if cred.Serial.Reused {
		penalty += p.SerialReusePenalty
		blocking = append(blocking, "serial reuse")
		reasons = append(reasons, fmt.Sprintf("penalty -%d: serial %s appears on %d registry rows",
			p.SerialReusePenalty, cred.Serial.Serial, cred.Serial.Count))
	}
	if cred.Dates.Anomalous() {
		penalty += p.DateAnomalyPenalty
		blocking = append(blocking, "date anomaly")
		reasons = append(reasons, fmt.Sprintf("penalty -%d: convocation %s is before issuance %s",
			p.DateAnomalyPenalty, cred.Dates.ConvocationDate, cred.Dates.IssuanceDate))
	}
	if cred.Tamper.Likely {
		penalty += p.TamperPenalty
		blocking = append(blocking, "tamper likely")
		reasons = append(reasons, fmt.Sprintf("penalty -%d: tamper likely (%s mode)", p.TamperPenalty, cred.Tamper.Mode))
	}
	if cred.Tamper.Anomaly {
		reasons = append(reasons, fmt.Sprintf("note: tamper anomaly score %s", formatFloat(cred.Tamper.AnomalyScore)))
	}
	if cred.Accreditation.OK != nil && !*cred.Accreditation.OK {
		penalty += p.AccreditationPenalty
		reasons = append(reasons, fmt.Sprintf("penalty -%d: accreditation statement not supported by registry", p.AccreditationPenalty))
	}

	combined := score.Clamp(weighted - penalty)
	reasons = append(reasons, fmt.Sprintf("combined score %d = %d - %d penalties (verified >= %d, suspicious >= %d)",
		combined, weighted, penalty, p.VerifiedThreshold, p.SuspiciousThreshold))

	verdict := p.verdict(combined)
	if verdict == model.VerdictVerified && len(blocking) > 0 {
		verdict = model.VerdictSuspicious
		for _, b := range blocking {
			reasons = append(reasons, fmt.Sprintf("cap: %s limits verdict to SUSPICIOUS", b))
		}
	}

	for _, d := range inst.DegradedChecks() {
		reasons = append(reasons, "degraded institution check "+d)
	}
	for _, d := range cred.DegradedChecks() {
		reasons = append(reasons, "degraded credential check "+d)
	}

	return model.Decision{Verdict: verdict, Score: combined, Reasons: reasons}
}

func applyOverride(sig model.OverrideSignature, inst model.InstitutionEvidence, cred model.CredentialEvidence, d model.Decision) (model.InstitutionEvidence, model.CredentialEvidence, model.Decision) {
	forced := &model.ForcedMatch{
		Reason:        ReasonForcedSignatureMatch,
		SignatureID:   sig.ID,
		MatchedSerial: sig.Serial,
	}

	inst.Score = max(inst.Score, ForcedEvidenceScore)
	inst.ForcedMatch = forced

	cred.Score = max(cred.Score, ForcedEvidenceScore)
	cred.Consistency.Score = max(cred.Consistency.Score, ForcedEvidenceScore)
	accredited := true
	cred.Accreditation.OK = &accredited
	cred.Serial.ForcedKnownGood = true
	forcedCopy := *forced
	cred.ForcedMatch = &forcedCopy

	reasons := make([]string, len(d.Reasons), len(d.Reasons)+1)
	copy(reasons, d.Reasons)

	return inst, cred, model.Decision{
		Verdict: model.VerdictVerified,
		Score:   max(ForcedDecisionScore, d.Score),
		Reasons: append(reasons, ReasonForcedSignatureMatch),
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

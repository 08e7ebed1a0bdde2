// Package decision folds institution and credential evidence into a verdict.
package decision

import (
	"fmt"
	"math"

	"github.com/ppiankov/credtrust/internal/model"
)

// Policy holds the weights, thresholds and penalties of the normal path
type Policy struct {
	InstitutionWeight    float64
	CredentialWeight     float64
	VerifiedThreshold    int
	SuspiciousThreshold  int
	InstituteVerifiedAt  int
	SerialReusePenalty   int
	DateAnomalyPenalty   int
	TamperPenalty        int
	AccreditationPenalty int
}

// DefaultPolicy returns the built-in policy
func DefaultPolicy() Policy {
	return PolicyFromConfig(model.DefaultConfig().Policy)
}

// PolicyFromConfig builds a Policy, filling unset values from the defaults
func PolicyFromConfig(cfg model.PolicyConfig) Policy {
	p := Policy(cfg)
	def := model.DefaultConfig().Policy

	if p.InstitutionWeight <= 0 && p.CredentialWeight <= 0 {
		p.InstitutionWeight = def.InstitutionWeight
		p.CredentialWeight = def.CredentialWeight
	}
	if p.VerifiedThreshold <= 0 {
		p.VerifiedThreshold = def.VerifiedThreshold
	}
	if p.SuspiciousThreshold <= 0 {
		p.SuspiciousThreshold = def.SuspiciousThreshold
	}
	if p.InstituteVerifiedAt <= 0 {
		p.InstituteVerifiedAt = def.InstituteVerifiedAt
	}
	return p
}

// Validate rejects policies that cannot produce a monotonic verdict
func (p Policy) Validate() error {
	if p.InstitutionWeight < 0 || p.CredentialWeight < 0 {
		return fmt.Errorf("weights must be non-negative (institution %.2f, credential %.2f)",
			p.InstitutionWeight, p.CredentialWeight)
	}
	if p.SuspiciousThreshold > p.VerifiedThreshold {
		return fmt.Errorf("suspicious threshold %d is above verified threshold %d",
			p.SuspiciousThreshold, p.VerifiedThreshold)
	}
	for name, v := range map[string]int{
		"serial_reuse_penalty":  p.SerialReusePenalty,
		"date_anomaly_penalty":  p.DateAnomalyPenalty,
		"tamper_penalty":        p.TamperPenalty,
		"accreditation_penalty": p.AccreditationPenalty,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, v)
		}
	}
	return nil
}

// weighted returns round(w_i*institution + w_c*credential)
func (p Policy) weighted(institution, credential int) int {
	return int(math.Round(p.InstitutionWeight*float64(institution) + p.CredentialWeight*float64(credential)))
}

// verdict maps a combined score onto a verdict before caps
func (p Policy) verdict(combined int) model.Verdict {
	switch {
	case combined >= p.VerifiedThreshold:
		return model.VerdictVerified
	case combined >= p.SuspiciousThreshold:
		return model.VerdictSuspicious
	default:
		return model.VerdictRejected
	}
}

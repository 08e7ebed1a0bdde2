package model

import "time"

// Verdict is the terminal state of a decision
type Verdict string

const (
	VerdictVerified   Verdict = "VERIFIED"
	VerdictSuspicious Verdict = "SUSPICIOUS"
	VerdictRejected   Verdict = "REJECTED"
)

// Decision is the aggregated verdict with its ordered reason trail
type Decision struct {
	Verdict Verdict  `json:"verdict"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// Outcome is what the decision aggregator returns. The evidence bundles
// are copies, raised by an override signature when one matched.
type Outcome struct {
	Institution         InstitutionEvidence `json:"institution_evidence"`
	Credential          CredentialEvidence  `json:"credential_evidence"`
	Decision            Decision            `json:"decision"`
	InstituteVerified   bool                `json:"institute_verified"`
	CertificateVerified bool                `json:"certificate_verified"`
}

// Result is the complete evaluation of one submission
type Result struct {
	ID          string    `json:"evaluation_id"`
	StudentID   string    `json:"student_id,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	Outcome
}

// Signal is a scoring contribution with its transparent inputs
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Points      int                    `json:"points"`
	Data        map[string]interface{} `json:"data,omitempty"` // Formula and inputs
}

// SignalType classifies a scoring signal
type SignalType string

const (
	SignalRegistryMatch      SignalType = "registry_match"
	SignalWebsiteReachable   SignalType = "website_reachable"
	SignalSemanticSimilarity SignalType = "semantic_similarity"
	SignalDomainAge          SignalType = "domain_age"
	SignalMailExchange       SignalType = "mail_exchange"
	SignalInstitutionCode    SignalType = "institution_code"
	SignalConsistency        SignalType = "consistency"
	SignalSerialReuse        SignalType = "serial_reuse"
	SignalDateAnomaly        SignalType = "date_anomaly"
	SignalTamper             SignalType = "tamper"
	SignalAccreditation      SignalType = "accreditation"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// OverrideSignature is a pre-approved record. Every field must match
// for the signature to apply.
type OverrideSignature struct {
	ID               string   `json:"id" yaml:"id"`
	Serial           string   `json:"serial" yaml:"serial"`
	InstituteAliases []string `json:"institute_aliases" yaml:"institute_aliases"`
	Recipient        string   `json:"recipient" yaml:"recipient"`
	Category         string   `json:"category" yaml:"category"`
	IssuanceDate     string   `json:"issuance_date" yaml:"issuance_date"`
	Revoked          bool     `json:"revoked,omitempty" yaml:"revoked,omitempty"`
	Note             string   `json:"note,omitempty" yaml:"note,omitempty"`
}

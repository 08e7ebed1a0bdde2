package model

import "strings"

// CheckState is the outcome class of a single evidence check
type CheckState string

const (
	StateOK       CheckState = "ok"       // Check ran and produced a result
	StateDegraded CheckState = "degraded" // Check could not produce a result
	StateSkipped  CheckState = "skipped"  // Inputs for the check were absent
)

// CheckStatus is embedded in every check result
type CheckStatus struct {
	State  CheckState     `json:"status"`
	Reason DegradedReason `json:"reason,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// OK returns a successful status
func OK() CheckStatus {
	return CheckStatus{State: StateOK}
}

// Skipped returns a status for a check whose inputs were absent
func Skipped(reason DegradedReason) CheckStatus {
	return CheckStatus{State: StateSkipped, Reason: reason}
}

// Degraded returns a status for a check that failed. The reason is taken
// from err when it carries one and reason is empty.
func Degraded(reason DegradedReason, err error) CheckStatus {
	if reason == "" {
		reason = ReasonOf(err)
	}
	status := CheckStatus{State: StateDegraded, Reason: reason}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// IsDegraded reports whether the check failed
func (s CheckStatus) IsDegraded() bool {
	return s.State == StateDegraded
}

// RegistryRecord is one row of the trusted registry
type RegistryRecord struct {
	Index int    `json:"row"`
	Cells []Cell `json:"cells"`
}

// Cell is a single column value of a registry row
type Cell struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Get returns the value of the named column (case-insensitive)
func (r RegistryRecord) Get(column string) (string, bool) {
	for _, c := range r.Cells {
		if strings.EqualFold(c.Column, column) {
			return c.Value, true
		}
	}
	return "", false
}

// Joined concatenates all cell values separated by spaces
func (r RegistryRecord) Joined() string {
	values := make([]string, 0, len(r.Cells))
	for _, c := range r.Cells {
		values = append(values, c.Value)
	}
	return strings.Join(values, " ")
}

// Registry is the trusted dataset. It is read-only once loaded.
type Registry struct {
	Source  string           `json:"source"`
	Columns []string         `json:"columns"`
	Records []RegistryRecord `json:"records"`
}

// Loaded reports whether the registry holds any rows
func (r *Registry) Loaded() bool {
	return r != nil && len(r.Records) > 0
}

// Column returns the header matching name (case-insensitive)
func (r *Registry) Column(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, c := range r.Columns {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return c, true
		}
	}
	return "", false
}

// RegistryMatch is the result of matching a claimed institution
type RegistryMatch struct {
	CheckStatus
	Found  bool            `json:"found"`
	Score  int             `json:"score"`
	Column string          `json:"column,omitempty"`
	ByCode bool            `json:"by_code"`
	Record *RegistryRecord `json:"record,omitempty"`
}

// DomainTier classifies an institution's web domain
type DomainTier string

const (
	DomainTierAcademic   DomainTier = "academic"   // .edu, .ac.*, .edu.*
	DomainTierGovernment DomainTier = "government" // .gov, .gov.*, .nic.in
	DomainTierListed     DomainTier = "listed"     // Explicitly configured
	DomainTierGeneric    DomainTier = "generic"
)

// WebsiteCheck is the domain reputation result for an institution website
type WebsiteCheck struct {
	CheckStatus
	URL              string     `json:"url,omitempty"`
	FinalURL         string     `json:"final_url,omitempty"`
	Domain           string     `json:"domain,omitempty"`
	OK               bool       `json:"ok"`
	StatusCode       int        `json:"status_code,omitempty"`
	Title            string     `json:"title,omitempty"`
	Snippet          string     `json:"snippet,omitempty"`
	SemanticScore    *int       `json:"semantic_score"`
	SimilarityMethod string     `json:"similarity_method,omitempty"`
	DomainAgeDays    *int       `json:"domain_age_days"`
	MXOK             bool       `json:"mx_ok"`
	DomainTier       DomainTier `json:"domain_tier,omitempty"`
	FetchError       string     `json:"fetch_error,omitempty"`
	WhoisError       string     `json:"whois_error,omitempty"`
	MXError          string     `json:"mx_error,omitempty"`
}

// CodeCheck records the declared institution code
type CodeCheck struct {
	CheckStatus
	Code    string `json:"code,omitempty"`
	Source  string `json:"source,omitempty"` // claim or metadata
	Counted bool   `json:"counted"`
}

// ForcedMatch is appended to both evidence bundles when an override signature matched
type ForcedMatch struct {
	Reason        string `json:"reason"`
	SignatureID   string `json:"signature_id"`
	MatchedSerial string `json:"matched_serial"`
}

// InstitutionEvidence is the evidence bundle for a claimed institution
type InstitutionEvidence struct {
	Score       int              `json:"score"`
	Claim       InstitutionClaim `json:"claim"`
	Registry    RegistryMatch    `json:"registry"`
	Website     WebsiteCheck     `json:"website"`
	Code        CodeCheck        `json:"code"`
	Signals     []Signal         `json:"signals"`
	ForcedMatch *ForcedMatch     `json:"forced_match,omitempty"`
}

// DegradedChecks lists the checks that failed as "name: reason"
func (e InstitutionEvidence) DegradedChecks() []string {
	return degradedChecks(map[string]CheckStatus{
		"registry": e.Registry.CheckStatus,
		"website":  e.Website.CheckStatus,
		"code":     e.Code.CheckStatus,
	}, []string{"registry", "website", "code"})
}

// TextSource identifies where credential text came from
type TextSource string

const (
	TextSourceArtifact TextSource = "artifact"
	TextSourceRawText  TextSource = "raw_text"
	TextSourceNone     TextSource = "none"
)

// TextAcquisition records how the credential text was obtained
type TextAcquisition struct {
	CheckStatus
	Source       TextSource `json:"source"`
	Text         string     `json:"text"`
	Truncated    bool       `json:"truncated,omitempty"`
	ArtifactType string     `json:"artifact_type,omitempty"`
	SizeBytes    int        `json:"size_bytes,omitempty"`
}

// ConsistencyResult compares extracted facts with declared metadata.
// Total is the number of declared facts; Total == 0 means nothing was comparable.
type ConsistencyResult struct {
	CheckStatus
	Match               int   `json:"match"`
	Total               int   `json:"total"`
	Score               int   `json:"score"`
	NameSimilarity      *int  `json:"name_similarity,omitempty"`
	InstituteSimilarity *int  `json:"institute_similarity,omitempty"`
	MarksMatched        *bool `json:"marks_matched,omitempty"`
}

// SerialCheck is the registry lookup of a certificate serial number
type SerialCheck struct {
	CheckStatus
	Serial          string           `json:"serial,omitempty"`
	Source          string           `json:"source,omitempty"` // metadata or extracted
	Found           bool             `json:"found"`
	Count           int              `json:"count"`
	Reused          bool             `json:"reused"`
	Rows            []RegistryRecord `json:"rows,omitempty"`
	ForcedKnownGood bool             `json:"forced_known_good,omitempty"`
}

// AccreditationCheck tests a declared accreditation statement against the registry.
// OK is nil when the result is undetermined.
type AccreditationCheck struct {
	CheckStatus
	Statement   string `json:"statement,omitempty"`
	OK          *bool  `json:"accreditation_ok"`
	Candidates  int    `json:"candidates"`
	MatchedRow  *int   `json:"matched_row,omitempty"`
	MatchedTerm string `json:"matched_term,omitempty"`
}

// IssueConvocationBeforeIssuance flags a convocation dated before issuance
const IssueConvocationBeforeIssuance = "convocation_before_issuance"

// DateCheck validates issuance and convocation ordering
type DateCheck struct {
	CheckStatus
	IssuanceDate    string `json:"issuance,omitempty"`
	ConvocationDate string `json:"convocation,omitempty"`
	DeltaDays       *int   `json:"delta_days"`
	Issue           string `json:"issue,omitempty"`
}

// Anomalous reports whether the convocation precedes issuance
func (d DateCheck) Anomalous() bool {
	return d.Issue == IssueConvocationBeforeIssuance
}

// TamperMode is how tamper likelihood was evaluated
type TamperMode string

const (
	TamperModeModel       TamperMode = "model"
	TamperModeHeuristic   TamperMode = "heuristic"
	TamperModeUnavailable TamperMode = "unavailable"
)

// TamperCheck interprets the distortion score and model outputs
type TamperCheck struct {
	CheckStatus
	Mode         TamperMode         `json:"mode"`
	ELAScore     *float64           `json:"ela_score"`
	Probability  *float64           `json:"probability"`
	AnomalyScore *float64           `json:"anomaly_score"`
	Anomaly      bool               `json:"anomaly"`
	Likely       bool               `json:"likely"`
	Features     map[string]float64 `json:"features,omitempty"`
}

// CredentialEvidence is the evidence bundle for a credential. Score is
// the consistency score.
type CredentialEvidence struct {
	Score         int                `json:"score"`
	Text          TextAcquisition    `json:"text"`
	Fields        ExtractedFields    `json:"fields"`
	Consistency   ConsistencyResult  `json:"consistency"`
	Serial        SerialCheck        `json:"serial_check"`
	Accreditation AccreditationCheck `json:"accreditation"`
	Dates         DateCheck          `json:"date_check"`
	Tamper        TamperCheck        `json:"tamper"`
	Signals       []Signal           `json:"signals"`
	ForcedMatch   *ForcedMatch       `json:"forced_match,omitempty"`
}

// DegradedChecks lists the checks that failed as "name: reason"
func (e CredentialEvidence) DegradedChecks() []string {
	return degradedChecks(map[string]CheckStatus{
		"text":          e.Text.CheckStatus,
		"consistency":   e.Consistency.CheckStatus,
		"serial_check":  e.Serial.CheckStatus,
		"accreditation": e.Accreditation.CheckStatus,
		"date_check":    e.Dates.CheckStatus,
		"tamper":        e.Tamper.CheckStatus,
	}, []string{"text", "consistency", "serial_check", "accreditation", "date_check", "tamper"})
}

func degradedChecks(statuses map[string]CheckStatus, order []string) []string {
	var out []string
	for _, name := range order {
		s := statuses[name]
		if s.IsDegraded() {
			out = append(out, name+": "+string(s.Reason))
		}
	}
	return out
}

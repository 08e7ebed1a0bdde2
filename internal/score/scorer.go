package score

import (
	"fmt"

	"github.com/ppiankov/credtrust/internal/model"
)

// Institution score contributions
const (
	RegistryMatchPoints  = 60
	ReachablePoints      = 10
	SimilarityHighPoints = 20
	SimilarityMidPoints  = 10
	DomainAgePoints      = 5
	MailExchangePoints   = 5
	CodePoints           = 3

	SimilarityHigh = 70
	SimilarityMid  = 50
	MinDomainAge   = 365
	MinCodeLength  = 2
)

// InstitutionScorer turns institution sub-checks into a bounded score
type InstitutionScorer struct{}

// NewInstitutionScorer creates a new institution scorer
func NewInstitutionScorer() *InstitutionScorer {
	return &InstitutionScorer{}
}

// Calculate scores the evidence and returns the clamped total with one
// signal per rule evaluated
func (s *InstitutionScorer) Calculate(ev model.InstitutionEvidence) (int, []model.Signal) {
	var signals []model.Signal

	// 1. Registry match (0 or 60 points)
	signals = append(signals, s.registrySignal(ev.Registry))

	// 2. Website reputation (0-40 points), only when a website was checked
	if ev.Website.State != model.StateSkipped {
		signals = append(signals, s.reachableSignal(ev.Website))
		signals = append(signals, s.similaritySignal(ev.Website))
		signals = append(signals, s.domainAgeSignal(ev.Website))
		signals = append(signals, s.mailExchangeSignal(ev.Website))
	}

	// 3. Institution code (0 or 3 points)
	signals = append(signals, s.codeSignal(ev.Code))

	total := 0
	for _, sig := range signals {
		total += sig.Points
	}
	return Clamp(total), signals
}

func (s *InstitutionScorer) registrySignal(m model.RegistryMatch) model.Signal {
	points := 0
	severity := model.SeverityWarning
	desc := fmt.Sprintf("No registry match (best score %d)", m.Score)
	if m.IsDegraded() {
		desc = "Registry unavailable"
	}
	if m.Found {
		points = RegistryMatchPoints
		severity = model.SeverityInfo
		desc = fmt.Sprintf("Registry match with score %d", m.Score)
	}

	return model.Signal{
		Type:        model.SignalRegistryMatch,
		Severity:    severity,
		Description: desc,
		Points:      points,
		Data: map[string]interface{}{
			"match_score": m.Score,
			"by_code":     m.ByCode,
			"formula":     fmt.Sprintf("match_score >= threshold ? %d : 0", RegistryMatchPoints),
		},
	}
}

func (s *InstitutionScorer) reachableSignal(w model.WebsiteCheck) model.Signal {
	points := 0
	severity := model.SeverityWarning
	desc := "Website unreachable"
	if w.OK && w.StatusCode >= 200 && w.StatusCode < 400 {
		points = ReachablePoints
		severity = model.SeverityInfo
		desc = fmt.Sprintf("Website reachable (HTTP %d)", w.StatusCode)
	}

	return model.Signal{
		Type:        model.SignalWebsiteReachable,
		Severity:    severity,
		Description: desc,
		Points:      points,
		Data: map[string]interface{}{
			"status_code": w.StatusCode,
			"formula":     fmt.Sprintf("200 <= status < 400 ? %d : 0", ReachablePoints),
		},
	}
}

func (s *InstitutionScorer) similaritySignal(w model.WebsiteCheck) model.Signal {
	points := 0
	severity := model.SeverityWarning
	desc := "Page content not compared"
	sim := -1
	if w.SemanticScore != nil {
		sim = *w.SemanticScore
		desc = fmt.Sprintf("Page content similarity %d", sim)
		switch {
		case sim >= SimilarityHigh:
			points = SimilarityHighPoints
			severity = model.SeverityInfo
		case sim >= SimilarityMid:
			points = SimilarityMidPoints
			severity = model.SeverityInfo
		}
	}

	return model.Signal{
		Type:        model.SignalSemanticSimilarity,
		Severity:    severity,
		Description: desc,
		Points:      points,
		Data: map[string]interface{}{
			"similarity": sim,
			"method":     w.SimilarityMethod,
			"formula": fmt.Sprintf("similarity >= %d ? %d : similarity >= %d ? %d : 0",
				SimilarityHigh, SimilarityHighPoints, SimilarityMid, SimilarityMidPoints),
		},
	}
}

func (s *InstitutionScorer) domainAgeSignal(w model.WebsiteCheck) model.Signal {
	points := 0
	severity := model.SeverityInfo
	desc := "Domain age unknown"
	age := -1
	if w.DomainAgeDays != nil {
		age = *w.DomainAgeDays
		desc = fmt.Sprintf("Domain registered %d days ago", age)
		if age > MinDomainAge {
			points = DomainAgePoints
		} else {
			severity = model.SeverityWarning
		}
	}

	return model.Signal{
		Type:        model.SignalDomainAge,
		Severity:    severity,
		Description: desc,
		Points:      points,
		Data: map[string]interface{}{
			"age_days": age,
			"formula":  fmt.Sprintf("age_days > %d ? %d : 0", MinDomainAge, DomainAgePoints),
		},
	}
}

func (s *InstitutionScorer) mailExchangeSignal(w model.WebsiteCheck) model.Signal {
	points := 0
	desc := "No mail exchange records"
	if w.MXOK {
		points = MailExchangePoints
		desc = "Mail exchange records present"
	}

	return model.Signal{
		Type:        model.SignalMailExchange,
		Severity:    model.SeverityInfo,
		Description: desc,
		Points:      points,
		Data: map[string]interface{}{
			"mx_ok":   w.MXOK,
			"formula": fmt.Sprintf("mx_ok ? %d : 0", MailExchangePoints),
		},
	}
}

func (s *InstitutionScorer) codeSignal(c model.CodeCheck) model.Signal {
	points := 0
	desc := "No institution code"
	if c.Counted {
		points = CodePoints
		desc = fmt.Sprintf("Institution code %q declared", c.Code)
	}

	return model.Signal{
		Type:        model.SignalInstitutionCode,
		Severity:    model.SeverityInfo,
		Description: desc,
		Points:      points,
		Data: map[string]interface{}{
			"code":    c.Code,
			"formula": fmt.Sprintf("chars(code) > %d ? %d : 0", MinCodeLength, CodePoints),
		},
	}
}

// Clamp bounds a score to [0,100]
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

package score

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/credtrust/internal/fuzzy"
	"github.com/ppiankov/credtrust/internal/model"
)

// Consistency thresholds
const (
	NameThreshold      = 80 // exclusive
	InstituteThreshold = 75 // exclusive
	MarksThreshold     = 80 // exclusive, non-numeric fallback
	MarksTolerance     = 1.0
)

var numberPattern = regexp.MustCompile(`\d+(\.\d+)?`)

// ConsistencyScorer compares declared metadata with extracted fields
type ConsistencyScorer struct{}

// NewConsistencyScorer creates a new consistency scorer
func NewConsistencyScorer() *ConsistencyScorer {
	return &ConsistencyScorer{}
}

// Calculate counts every declared fact in total and every fact confirmed by
// the extracted fields in match. Score is round(100*match/total), 0 when
// nothing was declared.
func (s *ConsistencyScorer) Calculate(meta model.CredentialMetadata, fields model.ExtractedFields) (model.ConsistencyResult, model.Signal) {
	res := model.ConsistencyResult{CheckStatus: model.OK()}

	if declared := strings.TrimSpace(meta.RecipientName); declared != "" {
		res.Total++
		if fields.Name != nil {
			sim := fuzzy.TokenSetRatio(*fields.Name, declared)
			res.NameSimilarity = &sim
			if sim > NameThreshold {
				res.Match++
			}
		}
	}

	if declared := strings.TrimSpace(meta.IssuerName); declared != "" {
		res.Total++
		if fields.Institute != nil {
			sim := fuzzy.TokenSetRatio(*fields.Institute, declared)
			res.InstituteSimilarity = &sim
			if sim > InstituteThreshold {
				res.Match++
			}
		}
	}

	if declared := strings.TrimSpace(meta.DeclaredMarks()); declared != "" {
		res.Total++
		matched := marksMatch(declared, fields.Marks)
		res.MarksMatched = &matched
		if matched {
			res.Match++
		}
	}

	if res.Total == 0 {
		res.CheckStatus = model.Skipped(model.ReasonNoData)
	} else {
		res.Score = int(math.Round(100 * float64(res.Match) / float64(res.Total)))
	}

	return res, consistencySignal(res)
}

// marksMatch compares numerically within MarksTolerance when both values
// carry a number, otherwise falls back to fuzzy comparison
func marksMatch(declared string, extracted *string) bool {
	if extracted == nil {
		return false
	}
	d, dok := FirstNumber(declared)
	e, eok := FirstNumber(*extracted)
	if dok && eok {
		return math.Abs(d-e) <= MarksTolerance
	}
	return fuzzy.TokenSetRatio(*extracted, declared) > MarksThreshold
}

// FirstNumber returns the first decimal number found in s
func FirstNumber(s string) (float64, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func consistencySignal(res model.ConsistencyResult) model.Signal {
	severity := model.SeverityInfo
	desc := fmt.Sprintf("%d of %d declared facts confirmed", res.Match, res.Total)
	switch {
	case res.Total == 0:
		severity = model.SeverityWarning
		desc = "No declared facts to compare"
	case res.Match == 0:
		severity = model.SeverityCritical
	case res.Match < res.Total:
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalConsistency,
		Severity:    severity,
		Description: desc,
		Points:      res.Score,
		Data: map[string]interface{}{
			"match":   res.Match,
			"total":   res.Total,
			"formula": "total > 0 ? round(100 * match / total) : 0",
		},
	}
}

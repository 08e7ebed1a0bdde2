package score

import (
	"testing"

	"github.com/ppiankov/credtrust/internal/model"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestInstitutionScorer_RegistryOnly(t *testing.T) {
	scorer := NewInstitutionScorer()

	ev := model.InstitutionEvidence{
		Registry: model.RegistryMatch{CheckStatus: model.OK(), Found: true, Score: 78},
		Website:  model.WebsiteCheck{CheckStatus: model.Skipped(model.ReasonNoWebsite)},
		Code:     model.CodeCheck{CheckStatus: model.Skipped(model.ReasonNoData)},
	}

	score, signals := scorer.Calculate(ev)
	if score != 60 {
		t.Errorf("Expected score 60, got %d", score)
	}
	// registry + code signals only; website rules not evaluated
	if len(signals) != 2 {
		t.Errorf("Expected 2 signals, got %d", len(signals))
	}
}

func TestInstitutionScorer_FullMarks(t *testing.T) {
	scorer := NewInstitutionScorer()

	ev := model.InstitutionEvidence{
		Registry: model.RegistryMatch{CheckStatus: model.OK(), Found: true, Score: 100},
		Website: model.WebsiteCheck{
			CheckStatus:   model.OK(),
			OK:            true,
			StatusCode:    200,
			SemanticScore: intPtr(92),
			DomainAgeDays: intPtr(4000),
			MXOK:          true,
		},
		Code: model.CodeCheck{CheckStatus: model.OK(), Code: "NITS01", Counted: true},
	}

	score, signals := scorer.Calculate(ev)
	// 60 + 10 + 20 + 5 + 5 + 3 = 103, clamped
	if score != 100 {
		t.Errorf("Expected clamped score 100, got %d", score)
	}

	for _, sig := range signals {
		if sig.Data["formula"] == nil {
			t.Errorf("Signal %s missing formula", sig.Type)
		}
	}
}

func TestInstitutionScorer_SimilarityTiers(t *testing.T) {
	scorer := NewInstitutionScorer()

	tests := []struct {
		similarity *int
		expected   int
	}{
		{intPtr(70), 20},
		{intPtr(69), 10},
		{intPtr(50), 10},
		{intPtr(49), 0},
		{nil, 0},
	}

	for _, tt := range tests {
		ev := model.InstitutionEvidence{
			Website: model.WebsiteCheck{CheckStatus: model.OK(), SemanticScore: tt.similarity},
		}
		score, _ := scorer.Calculate(ev)
		if score != tt.expected {
			t.Errorf("similarity %v: expected %d, got %d", tt.similarity, tt.expected, score)
		}
	}
}

func TestInstitutionScorer_ReachableRequiresSuccessStatus(t *testing.T) {
	scorer := NewInstitutionScorer()

	tests := []struct {
		ok       bool
		status   int
		expected int
	}{
		{true, 200, 10},
		{true, 302, 10},
		{false, 404, 0},
		{false, 0, 0},
	}

	for _, tt := range tests {
		ev := model.InstitutionEvidence{
			Website: model.WebsiteCheck{CheckStatus: model.OK(), OK: tt.ok, StatusCode: tt.status},
		}
		score, _ := scorer.Calculate(ev)
		if score != tt.expected {
			t.Errorf("status %d: expected %d, got %d", tt.status, tt.expected, score)
		}
	}
}

func TestInstitutionScorer_DomainAgeBoundary(t *testing.T) {
	scorer := NewInstitutionScorer()

	young := model.InstitutionEvidence{Website: model.WebsiteCheck{CheckStatus: model.OK(), DomainAgeDays: intPtr(365)}}
	old := model.InstitutionEvidence{Website: model.WebsiteCheck{CheckStatus: model.OK(), DomainAgeDays: intPtr(366)}}

	if s, _ := scorer.Calculate(young); s != 0 {
		t.Errorf("Expected 0 for 365-day domain, got %d", s)
	}
	if s, _ := scorer.Calculate(old); s != 5 {
		t.Errorf("Expected 5 for 366-day domain, got %d", s)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(-5) != 0 || Clamp(105) != 100 || Clamp(42) != 42 {
		t.Error("Clamp did not bound score to [0,100]")
	}
}

func TestConsistencyScorer_MarksTolerance(t *testing.T) {
	scorer := NewConsistencyScorer()

	meta := model.CredentialMetadata{Marks: "78%"}
	fields := model.ExtractedFields{Marks: strPtr("78.4%")}

	res, _ := scorer.Calculate(meta, fields)
	if res.Match != 1 || res.Total != 1 || res.Score != 100 {
		t.Errorf("Expected 1/1 = 100, got %d/%d = %d", res.Match, res.Total, res.Score)
	}
}

func TestConsistencyScorer_MarksOutsideTolerance(t *testing.T) {
	scorer := NewConsistencyScorer()

	res, _ := scorer.Calculate(
		model.CredentialMetadata{MarksPercent: "78"},
		model.ExtractedFields{Marks: strPtr("79.5")},
	)
	if res.Match != 0 || res.Total != 1 {
		t.Errorf("Expected 0/1, got %d/%d", res.Match, res.Total)
	}
}

func TestConsistencyScorer_MarksFuzzyFallback(t *testing.T) {
	scorer := NewConsistencyScorer()

	res, _ := scorer.Calculate(
		model.CredentialMetadata{Marks: "First Class with Distinction"},
		model.ExtractedFields{Marks: strPtr("first class with distinction")},
	)
	if res.Match != 1 {
		t.Errorf("Expected fuzzy marks match, got %d/%d", res.Match, res.Total)
	}
}

func TestConsistencyScorer_NoDeclaredFacts(t *testing.T) {
	scorer := NewConsistencyScorer()

	res, _ := scorer.Calculate(model.CredentialMetadata{}, model.ExtractedFields{Name: strPtr("Someone")})
	if res.Score != 0 || res.Total != 0 || res.Match != 0 {
		t.Errorf("Expected 0/0 = 0, got %d/%d = %d", res.Match, res.Total, res.Score)
	}
	if res.State != model.StateSkipped {
		t.Errorf("Expected skipped state, got %s", res.State)
	}
}

func TestConsistencyScorer_FullMismatchDistinguishable(t *testing.T) {
	scorer := NewConsistencyScorer()

	res, _ := scorer.Calculate(
		model.CredentialMetadata{RecipientName: "Asha Verma", IssuerName: "Indian Institute of Science"},
		model.ExtractedFields{},
	)
	if res.Score != 0 {
		t.Errorf("Expected score 0, got %d", res.Score)
	}
	if res.Total != 2 || res.Match != 0 {
		t.Errorf("Expected 0/2, got %d/%d", res.Match, res.Total)
	}
}

func TestConsistencyScorer_DifferentRecipientNotConfirmed(t *testing.T) {
	scorer := NewConsistencyScorer()

	res, _ := scorer.Calculate(
		model.CredentialMetadata{RecipientName: "Rahul Kumar"},
		model.ExtractedFields{Name: strPtr("Rohit Kumar")},
	)
	if res.Match != 0 || res.Total != 1 {
		t.Errorf("Expected 0/1, got %d/%d", res.Match, res.Total)
	}
	if res.NameSimilarity == nil || *res.NameSimilarity > NameThreshold {
		t.Errorf("Expected name similarity at most %d, got %v", NameThreshold, res.NameSimilarity)
	}
	if res.Score != 0 {
		t.Errorf("Expected score 0, got %d", res.Score)
	}
}

func TestConsistencyScorer_Mixed(t *testing.T) {
	scorer := NewConsistencyScorer()

	meta := model.CredentialMetadata{
		RecipientName: "Asha Verma",
		IssuerName:    "National Institute of Technology, Silchar",
		Marks:         "82",
	}
	fields := model.ExtractedFields{
		Name:      strPtr("ASHA VERMA"),
		Institute: strPtr("Completely Different College"),
		Marks:     strPtr("82.0"),
	}

	res, sig := scorer.Calculate(meta, fields)
	if res.Match != 2 || res.Total != 3 {
		t.Errorf("Expected 2/3, got %d/%d", res.Match, res.Total)
	}
	if res.Score != 67 {
		t.Errorf("Expected round(66.67) = 67, got %d", res.Score)
	}
	if sig.Severity != model.SeverityWarning {
		t.Errorf("Expected warning severity, got %s", sig.Severity)
	}
}

func TestFirstNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"78.4%", 78.4, true},
		{"CGPA 8", 8, true},
		{"none", 0, false},
	}
	for _, tt := range tests {
		got, ok := FirstNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("FirstNumber(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

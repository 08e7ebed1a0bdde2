package tamper

import (
	"strconv"
	"strings"

	"github.com/ppiankov/credtrust/internal/model"
	"github.com/ppiankov/credtrust/internal/score"
)

// Feature names in model order
const (
	FeatureMarksPercent      = "marks_percent"
	FeatureNumSubjects       = "num_subjects"
	FeatureSignedHashPresent = "signed_hash_present"
	FeatureNameMatch         = "ocr_vs_meta_name_match"
	FeatureInstituteMatch    = "ocr_vs_meta_institute_match"
	FeatureELAScore          = "ela_score"
	FeatureImageComplexityKB = "image_complexity_kb"
	FeatureMarksRemovedFlag  = "marks_removed_flag"
	FeatureMarksMissing      = "marks_missing"
)

// Neutral values for inputs that were not observed
const (
	defaultSimilarityFeature = 50
	defaultELAFeature        = 5.0
	defaultImageComplexityKB = 200.0
)

// FeatureNames lists the features in the order models are trained on
var FeatureNames = []string{
	FeatureMarksPercent,
	FeatureNumSubjects,
	FeatureSignedHashPresent,
	FeatureNameMatch,
	FeatureInstituteMatch,
	FeatureELAScore,
	FeatureImageComplexityKB,
	FeatureMarksRemovedFlag,
	FeatureMarksMissing,
}

// FeatureInput is everything the feature vector is derived from
type FeatureInput struct {
	Metadata     model.CredentialMetadata
	Fields       model.ExtractedFields
	Consistency  model.ConsistencyResult
	Text         string
	ELA          *float64
	ArtifactSize int
}

// BuildFeatures derives the feature vector. Absent inputs take the same
// neutral defaults the models were trained with.
func BuildFeatures(in FeatureInput) map[string]float64 {
	f := make(map[string]float64, len(FeatureNames))

	declared := in.Metadata.DeclaredMarks()
	marks, ok := score.FirstNumber(declared)
	f[FeatureMarksPercent] = marks
	f[FeatureMarksMissing] = boolFeature(!ok)

	if n, err := strconv.ParseFloat(strings.TrimSpace(in.Metadata.NumSubjects), 64); err == nil {
		f[FeatureNumSubjects] = n
	} else {
		f[FeatureNumSubjects] = 0
	}

	f[FeatureSignedHashPresent] = boolFeature(strings.TrimSpace(in.Metadata.SignedHash) != "")

	f[FeatureNameMatch] = similarityFeature(in.Consistency.NameSimilarity)
	f[FeatureInstituteMatch] = similarityFeature(in.Consistency.InstituteSimilarity)

	f[FeatureELAScore] = defaultELAFeature
	if in.ELA != nil {
		f[FeatureELAScore] = *in.ELA
	}

	f[FeatureImageComplexityKB] = defaultImageComplexityKB
	if in.ArtifactSize > 0 {
		f[FeatureImageComplexityKB] = float64(in.ArtifactSize) / 1024
	}

	// Marks were declared but the credential text carries none
	removed := strings.TrimSpace(declared) != "" && strings.TrimSpace(in.Text) != "" && in.Fields.Marks == nil
	f[FeatureMarksRemovedFlag] = boolFeature(removed)

	return f
}

func similarityFeature(v *int) float64 {
	if v == nil {
		return defaultSimilarityFeature
	}
	return float64(*v)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

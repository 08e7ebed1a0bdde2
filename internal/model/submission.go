package model

import (
	"fmt"
	"os"
	"strings"
)

// Submission is one credential presented for evaluation
type Submission struct {
	StudentID       string             `json:"student_id,omitempty"`
	Claim           InstitutionClaim   `json:"institution"`
	Metadata        CredentialMetadata `json:"metadata"`
	Artifact        []byte             `json:"artifact,omitempty"` // base64 in JSON
	ArtifactPath    string             `json:"artifact_path,omitempty"`
	HistoricalStats *HistoricalStats   `json:"historical_stats,omitempty"`
}

// Validate returns ErrInvalidClaim when the institution name is missing
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Claim.Name) == "" {
		return ErrInvalidClaim
	}
	return nil
}

// Key identifies a submission for de-duplication in batch files
func (s Submission) Key() string {
	return strings.TrimSpace(s.StudentID) + "|" + strings.TrimSpace(s.Metadata.SerialNumber) + "|" + strings.TrimSpace(s.Claim.Name)
}

// LoadArtifact reads ArtifactPath into Artifact when no bytes were inlined
func (s *Submission) LoadArtifact() error {
	if len(s.Artifact) > 0 || s.ArtifactPath == "" {
		return nil
	}
	data, err := os.ReadFile(s.ArtifactPath)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	s.Artifact = data
	return nil
}

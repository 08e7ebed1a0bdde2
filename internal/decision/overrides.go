package decision

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/credtrust/internal/model"
)

// OverrideSet is the validated list of pre-approved signatures
type OverrideSet struct {
	signatures []model.OverrideSignature
}

type overrideFile struct {
	Signatures []model.OverrideSignature `yaml:"signatures"`
}

// LoadOverrides reads a signature file. An empty path yields an empty set.
func LoadOverrides(path string) (*OverrideSet, error) {
	if strings.TrimSpace(path) == "" {
		return &OverrideSet{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	set, err := ParseOverrides(data)
	if err != nil {
		return nil, fmt.Errorf("overrides %s: %w", path, err)
	}
	return set, nil
}

// ParseOverrides decodes and validates signature YAML
func ParseOverrides(data []byte) (*OverrideSet, error) {
	var file overrideFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	return NewOverrideSet(file.Signatures)
}

// NewOverrideSet validates signatures. Every field is required and IDs must be unique.
func NewOverrideSet(signatures []model.OverrideSignature) (*OverrideSet, error) {
	seen := make(map[string]bool, len(signatures))
	var errs []error

	for i, sig := range signatures {
		if err := validateSignature(sig); err != nil {
			errs = append(errs, fmt.Errorf("signature %d (%q): %w", i, sig.ID, err))
			continue
		}
		if seen[sig.ID] {
			errs = append(errs, fmt.Errorf("signature %d: duplicate id %q", i, sig.ID))
		}
		seen[sig.ID] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	out := make([]model.OverrideSignature, len(signatures))
	copy(out, signatures)
	return &OverrideSet{signatures: out}, nil
}

func validateSignature(sig model.OverrideSignature) error {
	var missing []string
	required := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}

	required("id", sig.ID)
	required("serial", sig.Serial)
	required("institute_aliases", strings.Join(sig.InstituteAliases, ""))
	required("recipient", sig.Recipient)
	required("category", sig.Category)
	required("issuance_date", sig.IssuanceDate)

	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Len returns the number of signatures, revoked ones included
func (s *OverrideSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.signatures)
}

// Match returns the first non-revoked signature whose every field matches meta
func (s *OverrideSet) Match(meta model.CredentialMetadata) (model.OverrideSignature, bool) {
	if s == nil {
		return model.OverrideSignature{}, false
	}
	for _, sig := range s.signatures {
		if !sig.Revoked && signatureMatches(sig, meta) {
			return sig, true
		}
	}
	return model.OverrideSignature{}, false
}

func signatureMatches(sig model.OverrideSignature, meta model.CredentialMetadata) bool {
	if strings.TrimSpace(meta.SerialNumber) != strings.TrimSpace(sig.Serial) {
		return false
	}

	institute := strings.ToLower(meta.DeclaredInstitute())
	aliasHit := false
	for _, alias := range sig.InstituteAliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias != "" && strings.Contains(institute, alias) {
			aliasHit = true
			break
		}
	}
	if !aliasHit {
		return false
	}

	if !strings.Contains(strings.ToLower(meta.RecipientName), strings.ToLower(strings.TrimSpace(sig.Recipient))) {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(meta.Category), strings.TrimSpace(sig.Category)) {
		return false
	}
	return strings.TrimSpace(meta.IssuanceDate) == strings.TrimSpace(sig.IssuanceDate)
}

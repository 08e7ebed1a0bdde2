package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// InstitutionClaim is the issuing institution as declared by the submitter
type InstitutionClaim struct {
	Name    string `json:"name"`              // Required
	Website string `json:"website,omitempty"` // Optional homepage URL, scheme may be omitted
	Code    string `json:"code,omitempty"`    // Optional registry code (e.g., AISHE code)
}

// CredentialMetadata holds the facts declared about a credential.
// Values that arrive as JSON numbers are kept in their textual form;
// unknown keys are preserved in Extra.
type CredentialMetadata struct {
	RecipientName          string            `json:"recipient_name,omitempty"`
	IssuerName             string            `json:"issuer_name,omitempty"`
	InstituteName          string            `json:"institute_name,omitempty"`
	InstituteCode          string            `json:"institute_code,omitempty"`
	Marks                  string            `json:"marks,omitempty"`
	MarksPercent           string            `json:"marks_percent,omitempty"`
	Percentage             string            `json:"percentage,omitempty"`
	SerialNumber           string            `json:"certificate_serial_number,omitempty"`
	AccreditationStatement string            `json:"accreditation_statement,omitempty"`
	IssuanceDate           string            `json:"issuance_date,omitempty"`
	ConvocationDate        string            `json:"convocation_date,omitempty"`
	Category               string            `json:"credential_category,omitempty"`
	Title                  string            `json:"credential_title,omitempty"`
	NumSubjects            string            `json:"num_subjects,omitempty"`
	SignedHash             string            `json:"signed_hash,omitempty"`
	RawText                string            `json:"raw_text,omitempty"`
	Extra                  map[string]string `json:"extra,omitempty"`
}

// DeclaredMarks returns the first declared marks value (marks, marks_percent, percentage)
func (m CredentialMetadata) DeclaredMarks() string {
	for _, v := range []string{m.Marks, m.MarksPercent, m.Percentage} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DeclaredInstitute returns the institute name, falling back to the issuer name
func (m CredentialMetadata) DeclaredInstitute() string {
	if strings.TrimSpace(m.InstituteName) != "" {
		return m.InstituteName
	}
	return m.IssuerName
}

// UnmarshalJSON accepts string, number and boolean values for every field
func (m *CredentialMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	*m = CredentialMetadata{}
	for key, value := range raw {
		if key == "extra" {
			if nested, ok := value.(map[string]any); ok {
				for k, v := range nested {
					m.setExtra(k, metadataString(v))
				}
				continue
			}
		}
		if field := m.field(key); field != nil {
			*field = metadataString(value)
			continue
		}
		m.setExtra(key, metadataString(value))
	}
	return nil
}

func (m *CredentialMetadata) field(key string) *string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "recipient_name":
		return &m.RecipientName
	case "issuer_name":
		return &m.IssuerName
	case "institute_name":
		return &m.InstituteName
	case "institute_code":
		return &m.InstituteCode
	case "marks":
		return &m.Marks
	case "marks_percent":
		return &m.MarksPercent
	case "percentage":
		return &m.Percentage
	case "certificate_serial_number":
		return &m.SerialNumber
	case "accreditation_statement":
		return &m.AccreditationStatement
	case "issuance_date":
		return &m.IssuanceDate
	case "convocation_date":
		return &m.ConvocationDate
	case "credential_category":
		return &m.Category
	case "credential_title":
		return &m.Title
	case "num_subjects":
		return &m.NumSubjects
	case "signed_hash":
		return &m.SignedHash
	case "raw_text":
		return &m.RawText
	}
	return nil
}

func (m *CredentialMetadata) setExtra(key, value string) {
	if m.Extra == nil {
		m.Extra = make(map[string]string)
	}
	m.Extra[key] = value
}

func metadataString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// ExtractedFields are candidate facts parsed from recognized text.
// Each field is nil when no line matched it.
type ExtractedFields struct {
	Name         *string `json:"name"`
	Degree       *string `json:"degree"`
	Marks        *string `json:"marks"`
	IssuanceDate *string `json:"issuance_date"`
	Institute    *string `json:"institute"`
	Serial       *string `json:"serial"`
}

// HistoricalStats is optional population data supplied by the caller
type HistoricalStats struct {
	ELAMean     *float64 `json:"ela_mean,omitempty"`
	ELAStdDev   *float64 `json:"ela_stddev,omitempty"`
	MarksMean   *float64 `json:"marks_mean,omitempty"`
	MarksStdDev *float64 `json:"marks_stddev,omitempty"`
}

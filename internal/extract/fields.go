package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/credtrust/internal/model"
)

// fieldRule maps keywords on a "key: value" line to a target field
type fieldRule struct {
	field    string
	keywords []string
}

var percentPattern = regexp.MustCompile(`(\d{1,3}\.\d+|\d{1,3})\s*%`)

// FieldExtractor parses recognized credential text into candidate facts
type FieldExtractor struct {
	rules     []fieldRule
	delimiter string
}

// NewFieldExtractor creates a field extractor with the default keyword set
func NewFieldExtractor() *FieldExtractor {
	return &FieldExtractor{
		rules: []fieldRule{
			{field: "name", keywords: []string{"name", "student"}},
			{field: "degree", keywords: []string{"degree", "course"}},
			{field: "marks", keywords: []string{"marks", "percentage", "gpa"}},
			{field: "issuance_date", keywords: []string{"issued on", "issuance", "date"}},
			{field: "institute", keywords: []string{"institute", "university", "college"}},
			{field: "serial", keywords: []string{"serial", "certificate no"}},
		},
		delimiter: ":",
	}
}

// Extract scans text line by line. A line feeds every field whose keyword
// it contains, provided it has a delimiter; later lines overwrite earlier
// ones. Without a marks line the first percentage anywhere is used.
func (e *FieldExtractor) Extract(text string) model.ExtractedFields {
	values := make(map[string]string)

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		idx := strings.Index(line, e.delimiter)
		if idx < 0 {
			continue
		}
		lower := strings.ToLower(line)
		value := strings.TrimSpace(line[idx+len(e.delimiter):])

		for _, rule := range e.rules {
			if containsAny(lower, rule.keywords) {
				values[rule.field] = value
			}
		}
	}

	if values["marks"] == "" {
		if m := percentPattern.FindStringSubmatch(text); m != nil {
			values["marks"] = m[1] + "%"
		}
	}

	return model.ExtractedFields{
		Name:         optional(values, "name"),
		Degree:       optional(values, "degree"),
		Marks:        optional(values, "marks"),
		IssuanceDate: optional(values, "issuance_date"),
		Institute:    optional(values, "institute"),
		Serial:       optional(values, "serial"),
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func optional(values map[string]string, key string) *string {
	v, ok := values[key]
	if !ok || v == "" {
		return nil
	}
	return &v
}

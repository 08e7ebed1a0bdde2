package extract

import "testing"

func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestFieldExtractor_BasicExtraction(t *testing.T) {
	extractor := NewFieldExtractor()

	text := `MADHAV INSTITUTE OF TECHNOLOGY & SCIENCE
Student: Asha Verma
Degree: Bachelor of Technology
Marks: 78.4%
Issued On: 2023-07-14
University: Rajiv Gandhi Proudyogiki Vishwavidyalaya
Serial: MITS/2023/0042`

	fields := extractor.Extract(text)

	tests := []struct {
		field string
		got   *string
		want  string
	}{
		{"name", fields.Name, "Asha Verma"},
		{"degree", fields.Degree, "Bachelor of Technology"},
		{"marks", fields.Marks, "78.4%"},
		{"issuance_date", fields.IssuanceDate, "2023-07-14"},
		{"institute", fields.Institute, "Rajiv Gandhi Proudyogiki Vishwavidyalaya"},
		{"serial", fields.Serial, "MITS/2023/0042"},
	}

	for _, tt := range tests {
		if deref(tt.got) != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.field, tt.want, deref(tt.got))
		}
	}
}

func TestFieldExtractor_LastMatchWins(t *testing.T) {
	extractor := NewFieldExtractor()

	fields := extractor.Extract("Name: First Person\nName: Second Person")
	if deref(fields.Name) != "Second Person" {
		t.Errorf("Expected later line to win, got %q", deref(fields.Name))
	}
}

func TestFieldExtractor_RequiresDelimiter(t *testing.T) {
	extractor := NewFieldExtractor()

	fields := extractor.Extract("Name Asha Verma\nDegree in Physics\nIssued on 2023-01-01")
	if fields.Name != nil {
		t.Errorf("Expected nil name without delimiter, got %q", *fields.Name)
	}
	if fields.Degree != nil {
		t.Errorf("Expected nil degree without delimiter, got %q", *fields.Degree)
	}
	if fields.IssuanceDate != nil {
		t.Errorf("Expected nil issuance date without delimiter, got %q", *fields.IssuanceDate)
	}
}

func TestFieldExtractor_ValueAfterFirstDelimiter(t *testing.T) {
	extractor := NewFieldExtractor()

	fields := extractor.Extract("Certificate No: AB:12:34")
	if deref(fields.Serial) != "AB:12:34" {
		t.Errorf("Expected value after first delimiter, got %q", deref(fields.Serial))
	}
}

func TestFieldExtractor_LineFeedsSeveralFields(t *testing.T) {
	extractor := NewFieldExtractor()

	fields := extractor.Extract("Institute Name: Indian Institute of Science")
	if deref(fields.Institute) != "Indian Institute of Science" {
		t.Errorf("Expected institute, got %q", deref(fields.Institute))
	}
	if deref(fields.Name) != "Indian Institute of Science" {
		t.Errorf("Expected name keyword to match too, got %q", deref(fields.Name))
	}
}

func TestFieldExtractor_PercentageFallback(t *testing.T) {
	extractor := NewFieldExtractor()

	tests := []struct {
		text string
		want string
	}{
		{"secured 78.4 % in aggregate", "78.4%"},
		{"passed with 81% overall", "81%"},
		{"no numbers here", "<nil>"},
	}

	for _, tt := range tests {
		fields := extractor.Extract(tt.text)
		if deref(fields.Marks) != tt.want {
			t.Errorf("Extract(%q) marks = %q, want %q", tt.text, deref(fields.Marks), tt.want)
		}
	}
}

func TestFieldExtractor_MarksLineBeatsFallback(t *testing.T) {
	extractor := NewFieldExtractor()

	fields := extractor.Extract("Attendance 95%\nGPA: 8.2")
	if deref(fields.Marks) != "8.2" {
		t.Errorf("Expected marks line value, got %q", deref(fields.Marks))
	}
}

func TestFieldExtractor_EmptyText(t *testing.T) {
	fields := NewFieldExtractor().Extract("")
	if fields.Name != nil || fields.Marks != nil || fields.Serial != nil {
		t.Error("Expected all fields nil for empty text")
	}
}

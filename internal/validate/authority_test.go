package validate

import (
	"testing"

	"github.com/ppiankov/credtrust/internal/model"
)

func TestDomainClassifier_DefaultSuffixes(t *testing.T) {
	classifier := NewDomainClassifier(nil)

	tests := []struct {
		url      string
		expected model.DomainTier
	}{
		{"https://www.nits.ac.in", model.DomainTierAcademic},
		{"http://www.iisc.ac.in/about", model.DomainTierAcademic},
		{"https://mit.edu", model.DomainTierAcademic},
		{"www.ox.ac.uk", model.DomainTierAcademic},
		{"https://www.ugc.gov.in", model.DomainTierGovernment},
		{"https://aishe.nic.in", model.DomainTierGovernment},
		{"https://example.com", model.DomainTierGeneric},
		{"https://notedu.com", model.DomainTierGeneric},
		{"", model.DomainTierGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := classifier.Classify(tt.url); got != tt.expected {
				t.Errorf("Classify(%q) = %s, want %s", tt.url, got, tt.expected)
			}
		})
	}
}

func TestDomainClassifier_DomainMapWins(t *testing.T) {
	classifier := NewDomainClassifier(&model.DomainConfig{
		AcademicSuffixes: []string{"edu"},
		DomainMap: map[string]string{
			"mitsgwalior.in": "listed",
			"fake.edu":       "generic",
		},
	})

	if got := classifier.Classify("https://web.mitsgwalior.in"); got != model.DomainTierListed {
		t.Errorf("Expected listed, got %s", got)
	}
	if got := classifier.Classify("https://fake.edu"); got != model.DomainTierGeneric {
		t.Errorf("Expected generic for mapped domain, got %s", got)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://WWW.Example.COM:8443/path", "www.example.com"},
		{"example.org", "example.org"},
		{"  ", ""},
		{"http://[::1", ""},
	}

	for _, tt := range tests {
		if got := HostOf(tt.in); got != tt.want {
			t.Errorf("HostOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

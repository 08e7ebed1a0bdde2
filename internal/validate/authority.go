package validate

import (
	"net/url"
	"strings"

	"github.com/ppiankov/credtrust/internal/model"
)

// DomainClassifier classifies institution websites into domain tiers
type DomainClassifier struct {
	config     *model.DomainConfig
	academic   []string
	government []string
}

// NewDomainClassifier creates a new domain classifier
func NewDomainClassifier(config *model.DomainConfig) *DomainClassifier {
	if config == nil {
		config = &model.DefaultConfig().Domains
	}

	return &DomainClassifier{
		config:     config,
		academic:   normalizeSuffixes(config.AcademicSuffixes),
		government: normalizeSuffixes(config.GovernmentSuffixes),
	}
}

func normalizeSuffixes(suffixes []string) []string {
	out := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		s = strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Classify classifies a URL or bare host into a domain tier
func (d *DomainClassifier) Classify(rawURL string) model.DomainTier {
	host := HostOf(rawURL)
	if host == "" {
		return model.DomainTierGeneric
	}

	// Explicit mappings from config win
	if d.config.DomainMap != nil {
		for domain, tier := range d.config.DomainMap {
			if matchesDomain(host, strings.ToLower(domain)) {
				return parseTierString(tier)
			}
		}
	}

	for _, suffix := range d.government {
		if matchesDomain(host, suffix) {
			return model.DomainTierGovernment
		}
	}

	for _, suffix := range d.academic {
		if matchesDomain(host, suffix) {
			return model.DomainTierAcademic
		}
	}

	return model.DomainTierGeneric
}

// matchesDomain reports whether host equals domain or is a subdomain of it
func matchesDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// HostOf returns the lowercased hostname of a URL, tolerating a missing scheme
func HostOf(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// parseTierString converts a tier string to DomainTier
func parseTierString(tier string) model.DomainTier {
	switch strings.ToLower(tier) {
	case "academic", "edu":
		return model.DomainTierAcademic
	case "government", "gov":
		return model.DomainTierGovernment
	case "listed":
		return model.DomainTierListed
	default:
		return model.DomainTierGeneric
	}
}

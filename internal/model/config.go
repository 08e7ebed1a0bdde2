package model

import "time"

// Config is the complete credtrust configuration
type Config struct {
	Registry     RegistryConfig     `yaml:"registry" mapstructure:"registry"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Reputation   ReputationConfig   `yaml:"reputation" mapstructure:"reputation"`
	Domains      DomainConfig       `yaml:"domains" mapstructure:"domains"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	OCR          OCRConfig          `yaml:"ocr" mapstructure:"ocr"`
	Tamper       TamperConfig       `yaml:"tamper" mapstructure:"tamper"`
	Policy       PolicyConfig       `yaml:"policy" mapstructure:"policy"`
	Overrides    OverridesConfig    `yaml:"overrides" mapstructure:"overrides"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// RegistryConfig locates the trusted dataset and names its columns
type RegistryConfig struct {
	CSVPath               string   `yaml:"csv_path" mapstructure:"csv_path"`
	PostgresDSN           string   `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	PostgresTable         string   `yaml:"postgres_table" mapstructure:"postgres_table"`
	CodeColumn            string   `yaml:"code_column" mapstructure:"code_column"`
	SerialColumn          string   `yaml:"serial_column" mapstructure:"serial_column"`
	InstituteColumn       string   `yaml:"institute_column" mapstructure:"institute_column"`
	MatchThreshold        int      `yaml:"match_threshold" mapstructure:"match_threshold"`
	AccreditationKeywords []string `yaml:"accreditation_keywords" mapstructure:"accreditation_keywords"`
}

// HTTPConfig controls outbound page fetches
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// ReputationConfig bounds the domain reputation check
type ReputationConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	WhoisTimeout time.Duration `yaml:"whois_timeout" mapstructure:"whois_timeout"`
	SnippetChars int           `yaml:"snippet_chars" mapstructure:"snippet_chars"`
	Whois        bool          `yaml:"whois" mapstructure:"whois"`
	MX           bool          `yaml:"mx" mapstructure:"mx"`
}

// DomainConfig configures domain tier classification
type DomainConfig struct {
	AcademicSuffixes   []string          `yaml:"academic_suffixes" mapstructure:"academic_suffixes"`
	GovernmentSuffixes []string          `yaml:"government_suffixes" mapstructure:"government_suffixes"`
	DomainMap          map[string]string `yaml:"domain_map" mapstructure:"domain_map"`
}

// CacheConfig configures memoisation of WHOIS and MX lookups
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend       string        `yaml:"backend" mapstructure:"backend"` // memory, layered, redis
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// RateLimitingConfig limits requests per institution domain
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// OCRConfig selects the text recognizer
type OCRConfig struct {
	Engine   string        `yaml:"engine" mapstructure:"engine"` // tesseract, gosseract, none
	Binary   string        `yaml:"binary" mapstructure:"binary"`
	Language string        `yaml:"language" mapstructure:"language"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TamperConfig configures tamper evaluation
type TamperConfig struct {
	ModelPath            string  `yaml:"model_path" mapstructure:"model_path"`
	ELAQuality           int     `yaml:"ela_quality" mapstructure:"ela_quality"`
	ELAThreshold         float64 `yaml:"ela_threshold" mapstructure:"ela_threshold"`
	ProbabilityThreshold float64 `yaml:"probability_threshold" mapstructure:"probability_threshold"`
	AnomalyZ             float64 `yaml:"anomaly_z" mapstructure:"anomaly_z"`
}

// PolicyConfig holds the decision policy constants
type PolicyConfig struct {
	InstitutionWeight    float64 `yaml:"institution_weight" mapstructure:"institution_weight"`
	CredentialWeight     float64 `yaml:"credential_weight" mapstructure:"credential_weight"`
	VerifiedThreshold    int     `yaml:"verified_threshold" mapstructure:"verified_threshold"`
	SuspiciousThreshold  int     `yaml:"suspicious_threshold" mapstructure:"suspicious_threshold"`
	InstituteVerifiedAt  int     `yaml:"institute_verified_at" mapstructure:"institute_verified_at"`
	SerialReusePenalty   int     `yaml:"serial_reuse_penalty" mapstructure:"serial_reuse_penalty"`
	DateAnomalyPenalty   int     `yaml:"date_anomaly_penalty" mapstructure:"date_anomaly_penalty"`
	TamperPenalty        int     `yaml:"tamper_penalty" mapstructure:"tamper_penalty"`
	AccreditationPenalty int     `yaml:"accreditation_penalty" mapstructure:"accreditation_penalty"`
}

// OverridesConfig locates the override signature file
type OverridesConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// LLMConfig configures the optional embedding similarity provider
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // openai, ollama, or empty
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// ConcurrencyConfig sizes the batch worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	Color   bool `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			PostgresTable:   "trusted_registry",
			CodeColumn:      "code",
			SerialColumn:    "certificate_serial_number",
			InstituteColumn: "institute_name",
			MatchThreshold:  75,
			AccreditationKeywords: []string{
				"ugc", "aicte", "naac", "abet", "national importance", "ministry",
			},
		},
		HTTP: HTTPConfig{
			Timeout:       6 * time.Second,
			UserAgent:     "credtrust/0.1 (+https://github.com/ppiankov/credtrust)",
			MaxBodyBytes:  1 << 20,
			RespectRobots: true,
		},
		Reputation: ReputationConfig{
			Timeout:      6 * time.Second,
			WhoisTimeout: 5 * time.Second,
			SnippetChars: 1000,
			Whois:        true,
			MX:           true,
		},
		Domains: DomainConfig{
			AcademicSuffixes:   []string{"edu", "ac.in", "ac.uk", "edu.in", "edu.au", "ac.jp", "ac.nz", "ac.za"},
			GovernmentSuffixes: []string{"gov", "gov.in", "nic.in", "gov.uk"},
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
			Dir:     ".credtrust-cache",
			TTL:     24 * time.Hour,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         2,
		},
		OCR: OCRConfig{
			Engine:   "tesseract",
			Binary:   "tesseract",
			Language: "eng",
			Timeout:  30 * time.Second,
		},
		Tamper: TamperConfig{
			ELAQuality:           90,
			ELAThreshold:         15,
			ProbabilityThreshold: 0.5,
			AnomalyZ:             3,
		},
		Policy: PolicyConfig{
			InstitutionWeight:    0.5,
			CredentialWeight:     0.5,
			VerifiedThreshold:    75,
			SuspiciousThreshold:  45,
			InstituteVerifiedAt:  80,
			SerialReusePenalty:   15,
			DateAnomalyPenalty:   10,
			TamperPenalty:        15,
			AccreditationPenalty: 5,
		},
		LLM: LLMConfig{
			Timeout: 30,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			Color: true,
		},
	}
}

package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/credtrust/internal/model"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "credtrust",
	Short: "credtrust - Academic credential authenticity checks",
	Long: `credtrust evaluates whether an academic credential is likely to be
genuine.

For each submission it authenticates the claimed issuing institution
against a trusted registry and the institution's web presence, verifies
the credential itself (recognized text, declared facts, serial reuse,
dates, tamper indicators) and combines both into a VERIFIED, SUSPICIOUS
or REJECTED verdict with an ordered reason trail.

Every score is explainable: each signal records its inputs and formula.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("credtrust %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.credtrust/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Pipeline flags are shared by evaluate and batch
	flags := rootCmd.PersistentFlags()
	flags.String("registry", "", "trusted registry CSV snapshot")
	flags.String("registry-dsn", "", "Postgres DSN to load the registry from (overrides --registry)")
	flags.String("overrides", "", "override signature YAML file")
	flags.String("ocr", "", "OCR engine (tesseract, gosseract, none)")
	flags.String("tamper-model", "", "trained tamper model JSON")
	flags.String("llm-provider", "", "embedding provider for website similarity (openai, ollama)")
	flags.Bool("no-cache", false, "disable WHOIS/MX lookup cache")
	flags.Bool("robots", false, "respect robots.txt when fetching institution websites")
	flags.Bool("no-color", false, "disable colored summary output")

	for key, flag := range map[string]string{
		"output.verbose":        "verbose",
		"registry.csv_path":     "registry",
		"registry.postgres_dsn": "registry-dsn",
		"overrides.file":        "overrides",
		"ocr.engine":            "ocr",
		"tamper.model_path":     "tamper-model",
		"llm.provider":          "llm-provider",
		"http.respect_robots":   "robots",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".credtrust"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CREDTRUST_REGISTRY_CSV_PATH overrides registry.csv_path
	viper.SetEnvPrefix("CREDTRUST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := setDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every default key so environment variables can
// override keys that the config file does not mention
func setDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	walkDefaults(v, "", tree)
	return nil
}

func walkDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
			walkDefaults(v, full, nested)
			continue
		}
		v.SetDefault(full, value)
	}
}

// loadConfig resolves the effective configuration: flags, environment,
// config file, then defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if noCache, _ := rootCmd.PersistentFlags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	if noColor, _ := rootCmd.PersistentFlags().GetBool("no-color"); noColor {
		cfg.Output.Color = false
	}
	if cfg.LLM.APIKey == "" && strings.EqualFold(cfg.LLM.Provider, "openai") {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	return cfg, nil
}

// newLogger writes text logs to stderr; --verbose enables debug
func newLogger(cfg *model.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

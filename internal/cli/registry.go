package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credtrust/internal/registry"
)

var (
	matchCode      string
	accreditIssuer string
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Query the trusted registry",
	Long: `Run single registry checks without a full evaluation. The registry is
taken from --registry, --registry-dsn or the configuration.`,
}

var registryMatchCmd = &cobra.Command{
	Use:   "match <institution name>",
	Short: "Fuzzy-match an institution name against the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := loadRegistryIndex(cmd)
		if err != nil {
			return err
		}
		return printJSON(idx.Match(args[0], matchCode))
	},
}

var registrySerialCmd = &cobra.Command{
	Use:   "serial <certificate serial>",
	Short: "Look up a certificate serial and report reuse",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := loadRegistryIndex(cmd)
		if err != nil {
			return err
		}
		return printJSON(idx.LookupSerial(args[0]))
	},
}

var registryAccreditationCmd = &cobra.Command{
	Use:   "accreditation <statement>",
	Short: "Check an accreditation statement against the issuer's registry rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := loadRegistryIndex(cmd)
		if err != nil {
			return err
		}
		return printJSON(idx.CheckAccreditation(accreditIssuer, args[0]))
	},
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryMatchCmd, registrySerialCmd, registryAccreditationCmd)

	registryMatchCmd.Flags().StringVar(&matchCode, "code", "", "institution code to match exactly")
	registryAccreditationCmd.Flags().StringVar(&accreditIssuer, "issuer", "", "issuer name")
	_ = registryAccreditationCmd.MarkFlagRequired("issuer")
}

func loadRegistryIndex(cmd *cobra.Command) (*registry.Index, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	data, err := registry.Load(cmd.Context(), cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	idx := registry.New(data, registry.OptionsFromConfig(cfg.Registry))
	if !idx.Loaded() {
		return nil, fmt.Errorf("no registry rows loaded (set --registry or registry.csv_path)")
	}
	return idx, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

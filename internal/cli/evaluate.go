package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/credtrust/internal/model"
	"github.com/ppiankov/credtrust/internal/pipeline"
)

var (
	outJSON         string
	outMD           string
	evalTimeout     time.Duration
	claimName       string
	claimWebsite    string
	claimCode       string
	studentID       string
	artifactPath    string
	metadataPath    string
	historicalStats string
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [submission.json]",
	Short: "Evaluate a single credential submission",
	Long: `Evaluate authenticates the claimed institution, verifies the credential
and prints the verdict with its reasons.

The submission is read from a JSON file, or assembled from flags:

Example:
  credtrust evaluate submission.json --registry registry.csv
  credtrust evaluate --institution "NIT Silchar" --website www.nits.ac.in \
    --metadata meta.json --artifact cert.png --json result.json --md result.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (- for stdout)")
	evaluateCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
	evaluateCmd.Flags().DurationVar(&evalTimeout, "timeout", 2*time.Minute, "overall evaluation timeout")

	evaluateCmd.Flags().StringVar(&claimName, "institution", "", "claimed institution name")
	evaluateCmd.Flags().StringVar(&claimWebsite, "website", "", "claimed institution website")
	evaluateCmd.Flags().StringVar(&claimCode, "code", "", "claimed institution registry code")
	evaluateCmd.Flags().StringVar(&studentID, "student-id", "", "student identifier")
	evaluateCmd.Flags().StringVar(&artifactPath, "artifact", "", "credential image (PNG, JPEG, BMP, TIFF, WebP)")
	evaluateCmd.Flags().StringVar(&metadataPath, "metadata", "", "credential metadata JSON file")
	evaluateCmd.Flags().StringVar(&historicalStats, "stats", "", "historical ELA/marks statistics JSON file")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	sub, err := submissionFromInput(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), evalTimeout)
	defer cancel()

	deps, cleanup, err := pipeline.Build(ctx, cfg, logger, nil)
	defer cleanup()
	if err != nil {
		return err
	}
	p := pipeline.New(deps)

	logger.Debug("evaluating submission", "institution", sub.Claim.Name, "artifact", sub.ArtifactPath)
	result, err := p.Evaluate(ctx, sub)
	if err != nil {
		return fmt.Errorf("evaluate failed: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.Color)
	switch outJSON {
	case "":
	case "-":
		if err := renderer.WriteJSON(os.Stdout, result); err != nil {
			return err
		}
	default:
		if err := renderer.RenderJSON(result, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(result, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
	}

	if outJSON != "-" {
		renderer.RenderSummary(os.Stdout, result)
	}
	return nil
}

// submissionFromInput reads a submission file when one is given, then
// applies flags on top of it
func submissionFromInput(args []string) (model.Submission, error) {
	var sub model.Submission

	if len(args) == 1 {
		if err := readJSONFile(args[0], &sub); err != nil {
			return sub, fmt.Errorf("read submission: %w", err)
		}
		if sub.ArtifactPath != "" && !filepath.IsAbs(sub.ArtifactPath) {
			sub.ArtifactPath = filepath.Join(filepath.Dir(args[0]), sub.ArtifactPath)
		}
	}

	if metadataPath != "" {
		if err := readJSONFile(metadataPath, &sub.Metadata); err != nil {
			return sub, fmt.Errorf("read metadata: %w", err)
		}
	}
	if historicalStats != "" {
		var stats model.HistoricalStats
		if err := readJSONFile(historicalStats, &stats); err != nil {
			return sub, fmt.Errorf("read stats: %w", err)
		}
		sub.HistoricalStats = &stats
	}

	if claimName != "" {
		sub.Claim.Name = claimName
	}
	if claimWebsite != "" {
		sub.Claim.Website = claimWebsite
	}
	if claimCode != "" {
		sub.Claim.Code = claimCode
	}
	if studentID != "" {
		sub.StudentID = studentID
	}
	if artifactPath != "" {
		sub.ArtifactPath = artifactPath
		sub.Artifact = nil
	}

	if err := sub.Validate(); err != nil {
		return sub, fmt.Errorf("%w (pass a submission file or --institution)", err)
	}
	return sub, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

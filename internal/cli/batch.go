package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ppiankov/credtrust/internal/metrics"
	"github.com/ppiankov/credtrust/internal/model"
	"github.com/ppiankov/credtrust/internal/pipeline"
	"github.com/ppiankov/credtrust/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	metricsAddr  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <submissions.jsonl>",
	Short: "Evaluate many submissions from a JSONL file in parallel",
	Long: `Batch evaluates submissions concurrently:
- Read one JSON submission per line (blank and # lines are skipped)
- Drop duplicate submissions (same student, serial and institution)
- Evaluate with a bounded worker pool
- Write a JSON and a Markdown report per submission

Example:
  credtrust batch submissions.jsonl --registry registry.csv
  credtrust batch submissions.jsonl --workers 8 --output-dir ./reports
  credtrust batch submissions.jsonl --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "workers", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./credtrust-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the batch runs")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  credtrust batch evaluation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr, reg)
		defer stop()
		fmt.Fprintf(os.Stderr, "  Metrics:      http://%s/metrics\n\n", metricsAddr)
	}

	deps, cleanup, err := pipeline.Build(ctx, cfg, logger, m)
	defer cleanup()
	if err != nil {
		return err
	}
	p := pipeline.New(deps)

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers,
		worker.WithProgress(func(done, total int) {
			logger.Debug("batch progress", "done", done, "total", total)
		}),
	)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(false)
	verdicts := make(map[model.Verdict]int)
	failureCount := 0

	for _, r := range results {
		label := r.StudentID
		if label == "" {
			label = "line " + strconv.Itoa(r.Line)
		}
		if r.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, r.Error)
			continue
		}

		slug := fmt.Sprintf("%03d-%s", r.Line, sanitizeFilename(firstNonEmpty(r.StudentID, r.Result.Institution.Claim.Name)))
		if err := renderer.RenderJSON(r.Result, filepath.Join(outputDir, slug+".json")); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", label, err)
			continue
		}
		if err := renderer.RenderMarkdown(r.Result, filepath.Join(outputDir, slug+".md")); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", label, err)
			continue
		}

		verdicts[r.Result.Decision.Verdict]++
		fmt.Fprintf(os.Stderr, "✓ %s: %s (score %d/100)\n", label, r.Result.Decision.Verdict, r.Result.Decision.Score)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:       %d submissions\n", len(results))
	fmt.Fprintf(os.Stderr, "  Verified:    %d\n", verdicts[model.VerdictVerified])
	fmt.Fprintf(os.Stderr, "  Suspicious:  %d\n", verdicts[model.VerdictSuspicious])
	fmt.Fprintf(os.Stderr, "  Rejected:    %d\n", verdicts[model.VerdictRejected])
	fmt.Fprintf(os.Stderr, "  Failures:    %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:      %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// serveMetrics exposes reg over HTTP until the returned stop is called
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))
	if s == "" {
		s = "submission"
	}

	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

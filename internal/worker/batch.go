package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/credtrust/internal/model"
)

// Evaluator evaluates a single submission
type Evaluator interface {
	Evaluate(ctx context.Context, sub model.Submission) (*model.Result, error)
}

// EvaluateJob is one submission to evaluate
type EvaluateJob struct {
	Line       int
	Submission model.Submission
	Evaluator  Evaluator
}

// Execute evaluates the submission
func (j *EvaluateJob) Execute(ctx context.Context) Result {
	out := &EvaluateResult{
		Line:      j.Line,
		StudentID: j.Submission.StudentID,
	}

	sub := j.Submission
	if err := sub.LoadArtifact(); err != nil {
		out.Error = err
		return out
	}

	result, err := j.Evaluator.Evaluate(ctx, sub)
	if err != nil {
		out.Error = err
		return out
	}
	out.Result = result
	return out
}

// EvaluateResult is the outcome of an evaluate job
type EvaluateResult struct {
	Line      int
	StudentID string
	Result    *model.Result
	Error     error
}

// GetError returns the error from the evaluation
func (r *EvaluateResult) GetError() error {
	return r.Error
}

// BatchProcessor evaluates many submissions concurrently
type BatchProcessor struct {
	evaluator Evaluator
	pool      *Pool
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(evaluator Evaluator, concurrency int, opts ...PoolOption) *BatchProcessor {
	return &BatchProcessor{
		evaluator: evaluator,
		pool:      NewPool(concurrency, opts...),
	}
}

// ProcessSubmissions evaluates submissions and returns results in input order
func (b *BatchProcessor) ProcessSubmissions(ctx context.Context, subs []model.Submission) []*EvaluateResult {
	if len(subs) == 0 {
		return []*EvaluateResult{}
	}

	jobs := make([]Job, len(subs))
	for i, sub := range subs {
		jobs[i] = &EvaluateJob{
			Line:       i + 1,
			Submission: sub,
			Evaluator:  b.evaluator,
		}
	}

	results := b.pool.Run(ctx, jobs)

	out := make([]*EvaluateResult, len(subs))
	for i, r := range results {
		switch r := r.(type) {
		case *EvaluateResult:
			out[i] = r
		case nil:
			// Dropped by cancellation before it started
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &EvaluateResult{Line: i + 1, StudentID: subs[i].StudentID, Error: err}
		default:
			out[i] = &EvaluateResult{Line: i + 1, StudentID: subs[i].StudentID, Error: r.GetError()}
		}
	}
	return out
}

// ProcessFile reads submissions from a JSONL file and evaluates them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*EvaluateResult, error) {
	subs, err := ReadSubmissionsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read submissions: %w", err)
	}

	return b.ProcessSubmissions(ctx, subs), nil
}

// ReadSubmissionsFromFile reads one JSON submission per line. Blank lines and
// lines starting with # are skipped, duplicates are dropped and relative
// artifact paths are resolved against the file's directory.
func ReadSubmissionsFromFile(filePath string) ([]model.Submission, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	baseDir := filepath.Dir(filePath)

	var subs []model.Submission
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var sub model.Submission
		if err := json.Unmarshal([]byte(line), &sub); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if sub.ArtifactPath != "" && !filepath.IsAbs(sub.ArtifactPath) {
			sub.ArtifactPath = filepath.Join(baseDir, sub.ArtifactPath)
		}

		key := sub.Key()
		if !seen[key] {
			seen[key] = true
			subs = append(subs, sub)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return subs, nil
}

package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/ppiankov/credtrust/internal/model"
)

// TesseractCLI runs the tesseract binary, piping the image through stdin
type TesseractCLI struct {
	binary   string
	language string
	timeout  time.Duration
}

// NewTesseractCLI creates a recognizer for the given binary and language
func NewTesseractCLI(binary, language string, timeout time.Duration) *TesseractCLI {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TesseractCLI{binary: binary, language: language, timeout: timeout}
}

// Recognize returns the text tesseract finds in image
func (t *TesseractCLI) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", model.NewCheckError(model.ReasonInvalidInput, "ocr", model.ErrInvalidArtifact)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, "stdin", "stdout", "-l", t.language)
	cmd.Stdin = bytes.NewReader(image)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s not found", model.ErrOCRUnavailable, t.binary)
		}
		if ctx.Err() != nil {
			return "", model.NewCheckError(model.ReasonTimeout, "ocr", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", model.NewCheckError(model.ReasonLookupFailed, "ocr", fmt.Errorf("tesseract: %s", msg))
	}

	return strings.TrimSpace(stdout.String()), nil
}

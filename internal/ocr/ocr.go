// Package ocr recognizes text in credential images.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/credtrust/internal/model"
)

// Recognizer extracts text from an encoded image
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// New builds the recognizer selected by cfg. Engine "none" or "" disables
// recognition and returns nil.
func New(cfg model.OCRConfig) (Recognizer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", "none":
		return nil, nil
	case "tesseract", "tesseract-cli":
		return NewTesseractCLI(cfg.Binary, cfg.Language, cfg.Timeout), nil
	case "gosseract":
		return newGosseract(cfg.Language)
	default:
		return nil, fmt.Errorf("unknown OCR engine: %s (supported: tesseract, gosseract, none)", cfg.Engine)
	}
}

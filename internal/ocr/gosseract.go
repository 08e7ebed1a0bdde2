//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/ppiankov/credtrust/internal/model"
)

// Gosseract recognizes text through the linked tesseract library
type Gosseract struct {
	languages []string
}

func newGosseract(language string) (Recognizer, error) {
	if language == "" {
		language = "eng"
	}
	return &Gosseract{languages: strings.Split(language, "+")}, nil
}

// Recognize returns the text found in image. A client is created per call
// because gosseract clients are not safe for concurrent use.
func (g *Gosseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", model.NewCheckError(model.ReasonInvalidInput, "ocr", model.ErrInvalidArtifact)
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(g.languages...); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrOCRUnavailable, err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", model.NewCheckError(model.ReasonInvalidInput, "ocr", err)
	}

	if err := ctx.Err(); err != nil {
		return "", model.NewCheckError(model.ReasonTimeout, "ocr", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", model.NewCheckError(model.ReasonLookupFailed, "ocr", err)
	}
	return strings.TrimSpace(text), nil
}

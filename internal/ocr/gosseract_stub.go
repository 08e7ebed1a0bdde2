//go:build !gosseract

package ocr

import (
	"fmt"

	"github.com/ppiankov/credtrust/internal/model"
)

func newGosseract(string) (Recognizer, error) {
	return nil, fmt.Errorf("%w: built without the gosseract tag", model.ErrOCRUnavailable)
}

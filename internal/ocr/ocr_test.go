package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ppiankov/credtrust/internal/model"
)

// fakeTesseract writes a script that behaves like tesseract reading stdin
func fakeTesseract(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "tesseract")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTesseractCLI_Recognize(t *testing.T) {
	bin := fakeTesseract(t, `cat > /dev/null
printf 'Name: Rahul Kumar\nMarks: 78%%\n'`)

	rec := NewTesseractCLI(bin, "eng", 5*time.Second)
	text, err := rec.Recognize(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if text != "Name: Rahul Kumar\nMarks: 78%" {
		t.Errorf("Unexpected text: %q", text)
	}
}

func TestTesseractCLI_Failure(t *testing.T) {
	bin := fakeTesseract(t, `echo "Error in pixReadStream" >&2
exit 1`)

	rec := NewTesseractCLI(bin, "eng", 5*time.Second)
	_, err := rec.Recognize(context.Background(), []byte("garbage"))
	if err == nil {
		t.Fatal("Expected error")
	}
	if model.ReasonOf(err) != model.ReasonLookupFailed {
		t.Errorf("Expected lookup_failed, got %s", model.ReasonOf(err))
	}
}

func TestTesseractCLI_Timeout(t *testing.T) {
	bin := fakeTesseract(t, `exec sleep 5`)

	rec := NewTesseractCLI(bin, "eng", 100*time.Millisecond)
	_, err := rec.Recognize(context.Background(), []byte("png-bytes"))
	if model.ReasonOf(err) != model.ReasonTimeout {
		t.Errorf("Expected timeout, got %v", err)
	}
}

func TestTesseractCLI_MissingBinary(t *testing.T) {
	rec := NewTesseractCLI(filepath.Join(t.TempDir(), "no-such-tesseract"), "eng", time.Second)
	_, err := rec.Recognize(context.Background(), []byte("png-bytes"))
	if err == nil {
		t.Fatal("Expected error")
	}
	if !errors.Is(err, model.ErrOCRUnavailable) {
		t.Errorf("Expected unavailable error, got %v", err)
	}
}

func TestTesseractCLI_EmptyImage(t *testing.T) {
	rec := NewTesseractCLI("", "", 0)
	if _, err := rec.Recognize(context.Background(), nil); model.ReasonOf(err) != model.ReasonInvalidInput {
		t.Errorf("Expected invalid_input, got %v", err)
	}
}

func TestNew(t *testing.T) {
	r, err := New(model.OCRConfig{Engine: "none"})
	if err != nil || r != nil {
		t.Errorf("Expected disabled recognizer, got %v, %v", r, err)
	}

	r, err = New(model.OCRConfig{Engine: "tesseract", Binary: "tesseract"})
	if err != nil {
		t.Fatalf("Expected tesseract recognizer, got %v", err)
	}
	if _, ok := r.(*TesseractCLI); !ok {
		t.Errorf("Expected *TesseractCLI, got %T", r)
	}

	if _, err := New(model.OCRConfig{Engine: "easyocr"}); err == nil {
		t.Error("Expected error for unknown engine")
	}
}

// Package tamper estimates whether a credential image was edited.
package tamper

import (
	"bytes"
	"fmt"
	"image"

	// Decoders for the artifact formats accepted from submitters
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/h2non/filetype"

	"github.com/ppiankov/credtrust/internal/model"
)

// Artifact limits. A small compressed file can declare huge dimensions,
// so the pixel count is checked from the header before decoding.
const (
	MaxArtifactBytes  = 20 << 20
	MaxArtifactPixels = 50_000_000
)

// DecodeArtifact sniffs the artifact type and decodes it. Anything that
// is not a decodable image yields an error wrapping ErrInvalidArtifact.
func DecodeArtifact(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty artifact", model.ErrInvalidArtifact)
	}
	if len(data) > MaxArtifactBytes {
		return nil, "", fmt.Errorf("%w: %d bytes exceeds limit", model.ErrInvalidArtifact, len(data))
	}

	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		mime := "unknown"
		if err == nil && kind != filetype.Unknown {
			mime = kind.MIME.Value
		}
		return nil, "", fmt.Errorf("%w: detected %s", model.ErrInvalidArtifact, mime)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, kind.Extension, fmt.Errorf("%w: decode %s header: %v", model.ErrInvalidArtifact, kind.Extension, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxArtifactPixels {
		return nil, kind.Extension, fmt.Errorf("%w: %dx%d pixels exceeds limit", model.ErrInvalidArtifact, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, kind.Extension, fmt.Errorf("%w: decode %s: %v", model.ErrInvalidArtifact, kind.Extension, err)
	}
	return img, kind.Extension, nil
}

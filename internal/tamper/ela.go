package tamper

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// DistortionScorer measures compression inconsistency in an image
type DistortionScorer interface {
	Score(img image.Image) (float64, error)
}

// ELA performs error level analysis: the image is re-encoded as JPEG and
// the mean luminance of the per-pixel difference is reported (0-255).
// Regions pasted in after the last save recompress differently and raise
// the score.
type ELA struct {
	Quality int
}

// NewELA creates an ELA scorer. Quality outside 1-100 uses 90.
func NewELA(quality int) *ELA {
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return &ELA{Quality: quality}
}

// Score returns the mean error level of img
func (e *ELA) Score(img image.Image) (float64, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return 0, fmt.Errorf("empty image")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.Quality}); err != nil {
		return 0, fmt.Errorf("re-encode: %w", err)
	}
	resaved, err := jpeg.Decode(&buf)
	if err != nil {
		return 0, fmt.Errorf("decode re-encoded image: %w", err)
	}

	rb := resaved.Bounds()
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, _ := img.At(x, y).RGBA()
			r2, g2, b2, _ := resaved.At(rb.Min.X+x-bounds.Min.X, rb.Min.Y+y-bounds.Min.Y).RGBA()

			dr := absDiff8(r1, r2)
			dg := absDiff8(g1, g2)
			db := absDiff8(b1, b2)

			// ITU-R 601-2 luma, as used for 8-bit grayscale conversion
			sum += (299*dr + 587*dg + 114*db) / 1000
		}
	}

	return sum / float64(bounds.Dx()*bounds.Dy()), nil
}

// absDiff8 returns |a-b| of two 16-bit channel values scaled to 8 bits
func absDiff8(a, b uint32) float64 {
	a >>= 8
	b >>= 8
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}

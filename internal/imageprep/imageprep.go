// Package imageprep normalizes uploaded answer images before text extraction.
package imageprep

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

const (
	// MaxDimension bounds both sides of a prepared image.
	MaxDimension = 1024
	jpegQuality  = 85
)

// Prepare decodes an uploaded image, shrinks it to fit within
// MaxDimension x MaxDimension keeping its aspect ratio, re-encodes it as JPEG
// and returns the base64 payload. Smaller images are not enlarged.
func Prepare(r io.Reader) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	img = fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= MaxDimension && b.Dy() <= MaxDimension {
		return img
	}
	return imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
}

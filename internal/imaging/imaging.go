// Package imaging decodes incoming photos and forces them into the canonical
// color form the embedding service expects.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// jpegQuality is used for all re-encoded output.
const jpegQuality = 90

// Normalize decodes an image and re-encodes it as a plain RGB JPEG. Palette,
// grayscale and alpha variants (PNG, WebP, GIF) are flattened onto white, so
// the embedding service never sees an encoding it cannot handle. When
// maxEdge > 0 the longer side is capped at maxEdge pixels, keeping aspect
// ratio; face detection gains nothing from a 24MP frame and the upload cost
// is real.
func Normalize(data []byte, maxEdge int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxEdge > 0 && (width > maxEdge || height > maxEdge) {
		if width > height {
			height = height * maxEdge / width
			width = maxEdge
		} else {
			width = width * maxEdge / height
			height = maxEdge
		}
		// Extreme aspect ratios round the short side down to zero.
		if width == 0 {
			width = 1
		}
		if height == 0 {
			height = 1
		}
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	stddraw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, stddraw.Src)
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

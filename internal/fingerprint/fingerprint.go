// Package fingerprint computes normalized content fingerprints for images.
//
// The fingerprint is a pre-filter, not proof of identity: two files with the
// same fingerprint are duplicate candidates that must still be confirmed
// byte-for-byte before anything is moved.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/color"
	"os"

	"github.com/disintegration/imaging"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/franz/photo-janitor/internal/util"
)

const (
	// DefaultCanvasSize is the default square canvas edge length in pixels
	DefaultCanvasSize = 64

	// paletteMask keeps the top 5 bits of each channel, reducing the image
	// to a 32-level-per-channel palette so minor compression noise does not
	// perturb the digest
	paletteMask = 0xF8
)

// Generator produces deterministic normalized fingerprints
type Generator struct {
	canvasSize int
}

// New creates a Generator with the given square canvas edge length.
// Sizes <= 0 fall back to DefaultCanvasSize.
func New(canvasSize int) *Generator {
	if canvasSize <= 0 {
		canvasSize = DefaultCanvasSize
	}
	return &Generator{canvasSize: canvasSize}
}

// CanvasSize returns the configured canvas edge length
func (g *Generator) CanvasSize() int {
	return g.canvasSize
}

// FromFile computes the normalized fingerprint of an image file:
// decode, aspect-preserving scale-to-fit, letterbox onto a black square
// canvas, reduce color depth, then hash the raw pixel buffer with SHA-256.
// Undecodable files return util.ErrUndecodable.
func (g *Generator) FromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	src, err := imaging.Decode(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, util.ErrUndecodable)
	}

	// Scale down to fit the canvas, preserving aspect ratio. Lanczos
	// resampling is integer-deterministic for identical pixel input.
	fitted := imaging.Fit(src, g.canvasSize, g.canvasSize, imaging.Lanczos)

	// Letterbox: paste centered onto a neutral black canvas so differently
	// proportioned copies of the same content converge to one layout
	canvas := imaging.New(g.canvasSize, g.canvasSize, color.NRGBA{0, 0, 0, 255})
	canvas = imaging.PasteCenter(canvas, fitted)

	// Quantize each color channel; force alpha opaque
	pix := canvas.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i] &= paletteMask
		pix[i+1] &= paletteMask
		pix[i+2] &= paletteMask
		pix[i+3] = 0xFF
	}

	sum := sha256.Sum256(pix)
	return hex.EncodeToString(sum[:]), nil
}

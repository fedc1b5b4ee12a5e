package core

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
)

// Render setting bounds.
const (
	MinModuleSize       = 1
	MaxModuleSize       = 20
	MinBorder           = 0
	MaxBorder           = 10
	MaxOutputResolution = 10000
)

// RenderSpec controls QR image geometry.
type RenderSpec struct {
	ModuleSize int `json:"module_size"` // pixels per module
	Border     int `json:"border"`      // quiet zone width in modules
	// OutputResolution forces a square image of this many pixels per side.
	// Zero keeps the natural size.
	OutputResolution int `json:"output_resolution"`
}

// DefaultRenderSpec returns module size 10, border 4 and natural size.
func DefaultRenderSpec() RenderSpec {
	return RenderSpec{ModuleSize: 10, Border: 4}
}

// Validate checks each setting against its range. Errors wrap
// ErrInvalidRenderSpec.
func (s RenderSpec) Validate() error {
	if s.ModuleSize < MinModuleSize || s.ModuleSize > MaxModuleSize {
		return fmt.Errorf("%w: module size %d outside %d-%d", ErrInvalidRenderSpec, s.ModuleSize, MinModuleSize, MaxModuleSize)
	}
	if s.Border < MinBorder || s.Border > MaxBorder {
		return fmt.Errorf("%w: border %d outside %d-%d", ErrInvalidRenderSpec, s.Border, MinBorder, MaxBorder)
	}
	if s.OutputResolution < 0 || s.OutputResolution > MaxOutputResolution {
		return fmt.Errorf("%w: output resolution %d outside 0-%d", ErrInvalidRenderSpec, s.OutputResolution, MaxOutputResolution)
	}
	return nil
}

// ParseOutputResolution reads the output resolution setting. Empty input,
// zero and negative numbers mean natural size. ok is false when s is not a
// number, in which case natural size is also used.
func ParseOutputResolution(s string) (px int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	if n < 0 {
		return 0, true
	}
	return n, true
}

// NaturalSize returns the side length in pixels for a symbol with the given
// number of modules per side.
func (s RenderSpec) NaturalSize(modules int) int {
	return (modules + 2*s.Border) * s.ModuleSize
}

// Renderer turns text into a QR image.
type Renderer interface {
	Render(text string, spec RenderSpec) (image.Image, error)
}

// QRRenderer renders with the smallest symbol version that fits the text.
type QRRenderer struct {
	Level qrcode.RecoveryLevel
}

// NewQRRenderer uses the low (~7%) error correction level.
func NewQRRenderer() *QRRenderer {
	return &QRRenderer{Level: qrcode.Low}
}

var qrPalette = color.Palette{color.White, color.Black}

// Render draws the symbol at ModuleSize pixels per module inside a Border
// wide quiet zone, then resamples to OutputResolution when one is set.
// Errors wrap ErrEncoding when the text does not fit any version and
// ErrRender otherwise.
func (r *QRRenderer) Render(text string, spec RenderSpec) (image.Image, error) {
	q, err := qrcode.New(text, r.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	q.DisableBorder = true
	bitmap := q.Bitmap()

	modules := len(bitmap)
	side := spec.NaturalSize(modules)
	if side <= 0 {
		return nil, fmt.Errorf("%w: empty symbol", ErrRender)
	}

	img := image.NewPaletted(image.Rect(0, 0, side, side), qrPalette)
	offset := spec.Border * spec.ModuleSize
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			fillModule(img, offset+x*spec.ModuleSize, offset+y*spec.ModuleSize, spec.ModuleSize)
		}
	}

	if spec.OutputResolution == 0 || spec.OutputResolution == side {
		return img, nil
	}

	dst := image.NewGray(image.Rect(0, 0, spec.OutputResolution, spec.OutputResolution))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, nil
}

func fillModule(img *image.Paletted, x0, y0, size int) {
	for y := y0; y < y0+size; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Rect.Dx()]
		for x := x0; x < x0+size; x++ {
			row[x] = 1
		}
	}
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: png: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// RenderPNG renders text and encodes the result.
func RenderPNG(r Renderer, text string, spec RenderSpec) ([]byte, error) {
	img, err := r.Render(text, spec)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

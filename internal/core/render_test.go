package core

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/skip2/go-qrcode"
)

const sampleURL = "https://acme.example/products/42"

func symbolModules(t *testing.T, text string) int {
	t.Helper()
	q, err := qrcode.New(text, qrcode.Low)
	if err != nil {
		t.Fatalf("qrcode.New: %v", err)
	}
	q.DisableBorder = true
	return len(q.Bitmap())
}

func isDark(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y < 128
}

func TestQRRenderer_NaturalSize(t *testing.T) {
	r := NewQRRenderer()
	modules := symbolModules(t, sampleURL)

	tests := []struct {
		name string
		spec RenderSpec
	}{
		{"defaults", DefaultRenderSpec()},
		{"no border", RenderSpec{ModuleSize: 10, Border: 0}},
		{"small modules", RenderSpec{ModuleSize: 1, Border: 2}},
		{"max", RenderSpec{ModuleSize: MaxModuleSize, Border: MaxBorder}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := r.Render(sampleURL, tt.spec)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			want := (modules + 2*tt.spec.Border) * tt.spec.ModuleSize
			b := img.Bounds()
			if b.Dx() != want || b.Dy() != want {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), want, want)
			}
			if got := tt.spec.NaturalSize(modules); got != want {
				t.Errorf("NaturalSize() = %d, want %d", got, want)
			}
		})
	}
}

func TestQRRenderer_BorderAddsQuietZone(t *testing.T) {
	r := NewQRRenderer()
	with, err := r.Render(sampleURL, RenderSpec{ModuleSize: 10, Border: 4})
	if err != nil {
		t.Fatal(err)
	}
	without, err := r.Render(sampleURL, RenderSpec{ModuleSize: 10, Border: 0})
	if err != nil {
		t.Fatal(err)
	}
	if diff := with.Bounds().Dx() - without.Bounds().Dx(); diff != 80 {
		t.Errorf("border 4 adds %d pixels, want 80", diff)
	}
}

func TestQRRenderer_Pixels(t *testing.T) {
	img, err := NewQRRenderer().Render(sampleURL, RenderSpec{ModuleSize: 10, Border: 4})
	if err != nil {
		t.Fatal(err)
	}

	if isDark(img.At(0, 0)) {
		t.Error("quiet zone pixel (0,0) is dark")
	}
	if isDark(img.At(39, 39)) {
		t.Error("last quiet zone pixel (39,39) is dark")
	}
	// Top-left finder pattern starts right after the quiet zone.
	if !isDark(img.At(40, 40)) {
		t.Error("finder pattern corner (40,40) is light")
	}
	if !isDark(img.At(49, 49)) {
		t.Error("finder pattern module interior (49,49) is light")
	}
	// Second ring of the finder pattern is light.
	if isDark(img.At(55, 55)) {
		t.Error("finder pattern inner ring (55,55) is dark")
	}
}

func TestQRRenderer_OutputResolution(t *testing.T) {
	r := NewQRRenderer()
	for _, px := range []int{300, 64, 1000} {
		img, err := r.Render(sampleURL, RenderSpec{ModuleSize: 10, Border: 4, OutputResolution: px})
		if err != nil {
			t.Fatalf("Render(%d) error = %v", px, err)
		}
		if b := img.Bounds(); b.Dx() != px || b.Dy() != px {
			t.Errorf("Render(%d) size = %dx%d", px, b.Dx(), b.Dy())
		}
	}

	natural := RenderSpec{ModuleSize: 10, Border: 4}
	side := natural.NaturalSize(symbolModules(t, sampleURL))
	natural.OutputResolution = side
	img, err := r.Render(sampleURL, natural)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := img.(*image.Paletted); !ok {
		t.Errorf("resolution equal to natural size resampled into %T", img)
	}
}

func TestQRRenderer_TextTooLong(t *testing.T) {
	_, err := NewQRRenderer().Render(strings.Repeat("x", 8000), DefaultRenderSpec())
	if !errors.Is(err, ErrEncoding) {
		t.Errorf("Render() error = %v, want ErrEncoding", err)
	}
}

func TestRenderPNG(t *testing.T) {
	data, err := RenderPNG(NewQRRenderer(), sampleURL, RenderSpec{ModuleSize: 4, Border: 1, OutputResolution: 200})
	if err != nil {
		t.Fatalf("RenderPNG() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("decoded size = %dx%d, want 200x200", b.Dx(), b.Dy())
	}
}

func TestRenderSpec_Validate(t *testing.T) {
	tests := []struct {
		spec    RenderSpec
		wantErr bool
	}{
		{DefaultRenderSpec(), false},
		{RenderSpec{ModuleSize: 1, Border: 0}, false},
		{RenderSpec{ModuleSize: 20, Border: 10, OutputResolution: 10000}, false},
		{RenderSpec{ModuleSize: 0, Border: 4}, true},
		{RenderSpec{ModuleSize: 21, Border: 4}, true},
		{RenderSpec{ModuleSize: 10, Border: -1}, true},
		{RenderSpec{ModuleSize: 10, Border: 11}, true},
		{RenderSpec{ModuleSize: 10, Border: 4, OutputResolution: -5}, true},
		{RenderSpec{ModuleSize: 10, Border: 4, OutputResolution: 10001}, true},
	}
	for _, tt := range tests {
		err := tt.spec.Validate()
		if tt.wantErr != (err != nil) {
			t.Errorf("%+v.Validate() = %v, wantErr %v", tt.spec, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidRenderSpec) {
			t.Errorf("%+v.Validate() = %v, want ErrInvalidRenderSpec", tt.spec, err)
		}
	}
}

func TestParseOutputResolution(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"", 0, true},
		{"  ", 0, true},
		{"300", 300, true},
		{" 512 ", 512, true},
		{"0", 0, true},
		{"-20", 0, true},
		{"big", 0, false},
		{"12px", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseOutputResolution(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseOutputResolution(%q) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

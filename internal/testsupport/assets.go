package testsupport

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// Template dimensions used by the generated slide fixtures.
const (
	SlideWidth  = 1280
	SlideHeight = 720
)

// WithAssets writes slide, logo, syllabus, and font fixtures for every path
// the config references.
func WithAssets() ConfigOption {
	return func(b *configBuilder) {
		cfg := b.cfg
		writePNG(b, cfg.Assets.Slide1, SlideWidth, SlideHeight, color.NRGBA{R: 250, G: 250, B: 250, A: 255})
		writePNG(b, cfg.Assets.Slide2, SlideWidth, SlideHeight, color.NRGBA{R: 236, G: 240, B: 244, A: 255})
		writePNG(b, cfg.Assets.Logo, 90, 90, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
		for _, path := range cfg.Assets.Syllabi {
			writePNG(b, path, 1000, 400, color.NRGBA{R: 20, G: 90, B: 160, A: 255})
		}
		writeBytes(b, cfg.Fonts.Nunito, goitalic.TTF)
		writeBytes(b, cfg.Fonts.Arimo, goregular.TTF)
		writeBytes(b, cfg.Fonts.DMSerif, gobold.TTF)
	}
}

func writePNG(b *configBuilder, path string, w, h int, fill color.NRGBA) {
	b.t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		b.t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		b.t.Fatalf("encode %s: %v", path, err)
	}
}

func writeBytes(b *configBuilder, path string, data []byte) {
	b.t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		b.t.Fatalf("write %s: %v", path, err)
	}
}

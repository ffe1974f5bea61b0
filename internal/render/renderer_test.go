package render_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"certissuer/internal/candidate"
	"certissuer/internal/render"
	"certissuer/internal/services"
	"certissuer/internal/testsupport"
)

func newRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAssets())
	r := render.NewRenderer(render.BundleFromConfig(cfg))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func request(t *testing.T, rec candidate.Record) render.Request {
	return render.Request{
		Record:          rec,
		Code:            "5b7f6a2e-1c3d-4e5f-8a9b-0c1d2e3f4a5b",
		VerificationURL: "https://academy.example/verificar/?code=5b7f6a2e-1c3d-4e5f-8a9b-0c1d2e3f4a5b",
		Dir:             t.TempDir(),
	}
}

func openPNG(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return img
}

func sameRGB(c color.Color, want color.NRGBA) bool {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n.R == want.R && n.G == want.G && n.B == want.B
}

func TestRenderProducesBothPages(t *testing.T) {
	r := newRenderer(t)
	req := request(t, testsupport.Candidate(42, 7, "Primeros Auxilios"))

	out, err := r.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	front := openPNG(t, out.Front)
	back := openPNG(t, out.Back)
	if front.Bounds().Dx() != testsupport.SlideWidth || back.Bounds().Dy() != testsupport.SlideHeight {
		t.Fatalf("unexpected page sizes %v %v", front.Bounds(), back.Bounds())
	}

	// Logo sits at the center of the QR rectangle.
	center := image.Pt((render.QRPlacement.Min.X+render.QRPlacement.Max.X)/2, (render.QRPlacement.Min.Y+render.QRPlacement.Max.Y)/2)
	if !sameRGB(front.At(center.X, center.Y), color.NRGBA{R: 200, G: 30, B: 30}) {
		t.Fatalf("expected logo at QR center, got %v", front.At(center.X, center.Y))
	}
	if !sameRGB(back.At(500, 500), color.NRGBA{R: 20, G: 90, B: 160}) {
		t.Fatalf("expected syllabus on back page, got %v", back.At(500, 500))
	}

	// The name baseline sits at y=325 from x=350; some glyph pixels must differ
	// from the plain template there.
	background := color.NRGBA{R: 250, G: 250, B: 250}
	inked := false
	for y := 300; y < 325 && !inked; y++ {
		for x := 350; x < 550; x++ {
			if !sameRGB(front.At(x, y), background) {
				inked = true
				break
			}
		}
	}
	if !inked {
		t.Fatal("expected name text to be drawn on the front page")
	}
}

func TestSyllabusIsClippedNotScaled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAssets())
	red := color.NRGBA{R: 220, G: 0, B: 0, A: 255}
	blue := color.NRGBA{R: 0, G: 0, B: 255, A: 255}
	// Twice the slot in each direction: left half red, right half blue.
	img := image.NewNRGBA(image.Rect(0, 0, 1600, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 1600; x++ {
			if x < 800 {
				img.SetNRGBA(x, y, red)
			} else {
				img.SetNRGBA(x, y, blue)
			}
		}
	}
	if err := imaging.Save(img, cfg.Assets.Syllabi["syllabus_primeros_auxilios"]); err != nil {
		t.Fatalf("write syllabus: %v", err)
	}
	r := render.NewRenderer(render.BundleFromConfig(cfg))
	t.Cleanup(func() { _ = r.Close() })

	out, err := r.Render(context.Background(), request(t, testsupport.Candidate(42, 7, "Primeros Auxilios")))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	back := openPNG(t, out.Back)
	slot := render.SyllabusPlacement
	for _, pt := range []image.Point{
		{X: 900, Y: 500},
		{X: slot.Max.X - 5, Y: slot.Max.Y - 5},
		{X: slot.Min.X + 1, Y: slot.Min.Y + 1},
	} {
		if !sameRGB(back.At(pt.X, pt.Y), red) {
			t.Fatalf("expected unscaled syllabus clip at %v, got %v", pt, back.At(pt.X, pt.Y))
		}
	}
	if sameRGB(back.At(slot.Max.X+5, slot.Min.Y+5), red) {
		t.Fatal("syllabus spilled outside its slot")
	}
}

func TestRenderIsByteForByteDeterministic(t *testing.T) {
	r := newRenderer(t)
	rec := testsupport.Candidate(42, 7, "Primeros Auxilios")

	first, err := r.Render(context.Background(), request(t, rec))
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := r.Render(context.Background(), request(t, rec))
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	for i, pair := range [][2]string{{first.Front, second.Front}, {first.Back, second.Back}} {
		a, _ := os.ReadFile(pair[0])
		b, _ := os.ReadFile(pair[1])
		if len(a) == 0 || !bytes.Equal(a, b) {
			t.Fatalf("page %d differs between renders", i+1)
		}
	}
}

func TestUnknownCourseIsConfigError(t *testing.T) {
	r := newRenderer(t)
	req := request(t, testsupport.Candidate(1, 2, "Curso Inexistente"))
	_, err := r.Render(context.Background(), req)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	entries, _ := os.ReadDir(req.Dir)
	if len(entries) != 0 {
		t.Fatalf("expected no images for unmapped course, found %d", len(entries))
	}
}

func TestCourseLookupNormalizesUnicode(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCourse("Nutrición", "syllabus_excel"))
	bundle := render.BundleFromConfig(cfg)
	if _, err := bundle.SyllabusFor("Nutricio\u0301n  "); err != nil {
		t.Fatalf("expected decomposed course name to resolve: %v", err)
	}
}

func TestMissingTemplateIsAssetError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAssets())
	if err := os.Remove(cfg.Assets.Slide2); err != nil {
		t.Fatalf("remove slide2: %v", err)
	}
	r := render.NewRenderer(render.BundleFromConfig(cfg))
	defer r.Close()
	_, err := r.Render(context.Background(), request(t, testsupport.Candidate(1, 2, "Primeros Auxilios")))
	if !errors.Is(err, services.ErrAsset) {
		t.Fatalf("expected asset error, got %v", err)
	}
}

func TestMissingFontIsAssetError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAssets())
	cfg.Fonts.Arimo = filepath.Join(t.TempDir(), "absent.ttf")
	r := render.NewRenderer(render.BundleFromConfig(cfg))
	defer r.Close()
	_, err := r.Render(context.Background(), request(t, testsupport.Candidate(1, 2, "Primeros Auxilios")))
	if !errors.Is(err, services.ErrAsset) {
		t.Fatalf("expected asset error, got %v", err)
	}
}

func TestLayoutReferencesKnownColorsAndFonts(t *testing.T) {
	fonts := map[render.FontFamily]bool{render.FontNunito: true, render.FontArimo: true, render.FontDMSerif: true}
	for _, slot := range render.Layout {
		if _, ok := render.Palette[slot.Color]; !ok {
			t.Errorf("slot %s uses unknown color %q", slot.Field, slot.Color)
		}
		if !fonts[slot.Font] {
			t.Errorf("slot %s uses unknown font %q", slot.Field, slot.Font)
		}
	}
}

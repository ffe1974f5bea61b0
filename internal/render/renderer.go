package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"certissuer/internal/candidate"
	"certissuer/internal/services"
	"certissuer/internal/verifyqr"
)

// Output file names inside the candidate workspace.
const (
	FrontFileName = "certificate-1.png"
	BackFileName  = "certificate-2.png"
)

// Output is the rendered image pair.
type Output struct {
	Front string
	Back  string
}

// Paths returns both image paths in page order.
func (o Output) Paths() []string {
	return []string{o.Front, o.Back}
}

// Request carries everything needed to render one candidate.
type Request struct {
	Record          candidate.Record
	Code            string
	VerificationURL string
	Dir             string
}

type faceKey struct {
	family FontFamily
	size   float64
}

// Renderer draws certificates from a Bundle. Parsed fonts and faces are cached
// for the renderer's lifetime; call Close to release them.
type Renderer struct {
	bundle Bundle

	mu    sync.Mutex
	fonts map[FontFamily]*opentype.Font
	faces map[faceKey]font.Face
}

// NewRenderer returns a renderer over bundle. Assets load lazily so a broken
// asset fails the candidate being rendered, not process startup.
func NewRenderer(bundle Bundle) *Renderer {
	return &Renderer{
		bundle: bundle,
		fonts:  make(map[FontFamily]*opentype.Font),
		faces:  make(map[faceKey]font.Face),
	}
}

// Bundle returns the asset bundle the renderer draws from.
func (r *Renderer) Bundle() Bundle {
	return r.bundle
}

// Close releases cached font faces.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for key, face := range r.faces {
		if err := face.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.faces, key)
	}
	return firstErr
}

// Render produces the front and back images for req in req.Dir.
func (r *Renderer) Render(ctx context.Context, req Request) (Output, error) {
	syllabusPath, err := r.bundle.SyllabusFor(req.Record.CourseName)
	if err != nil {
		return Output{}, err
	}
	values, err := fieldValues(req)
	if err != nil {
		return Output{}, err
	}

	front, err := loadImage("slide1", r.bundle.Slide1)
	if err != nil {
		return Output{}, err
	}
	back, err := loadImage("slide2", r.bundle.Slide2)
	if err != nil {
		return Output{}, err
	}
	syllabus, err := loadImage("syllabus", syllabusPath)
	if err != nil {
		return Output{}, err
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	pages := map[Page]*image.NRGBA{PageFront: front, PageBack: back}
	for _, slot := range Layout {
		face, err := r.face(slot.Font, slot.Size)
		if err != nil {
			return Output{}, err
		}
		drawText(pages[slot.Page], face, slot, values[slot.Field])
	}

	encoder, err := verifyqr.NewEncoder(r.bundle.Logo, verifyqr.DefaultSize)
	if err != nil {
		return Output{}, err
	}
	qr, err := encoder.Encode(req.VerificationURL)
	if err != nil {
		return Output{}, err
	}
	qrSized := imaging.Resize(qr, QRPlacement.Dx(), QRPlacement.Dy(), imaging.NearestNeighbor)
	front = imaging.Overlay(front, qrSized, QRPlacement.Min, 1.0)

	// The syllabus is clipped to the slot from its top-left corner, never scaled.
	syllabusClip := imaging.Crop(syllabus, image.Rect(0, 0, SyllabusPlacement.Dx(), SyllabusPlacement.Dy()))
	back = imaging.Overlay(back, syllabusClip, SyllabusPlacement.Min, 1.0)

	out := Output{
		Front: filepath.Join(req.Dir, FrontFileName),
		Back:  filepath.Join(req.Dir, BackFileName),
	}
	if err := savePNG(out.Front, front); err != nil {
		return Output{}, err
	}
	if err := savePNG(out.Back, back); err != nil {
		_ = os.Remove(out.Front)
		return Output{}, err
	}
	return out, nil
}

func fieldValues(req Request) (map[Field]string, error) {
	rec := req.Record
	if rec.AssessedAt.IsZero() {
		return nil, services.Wrap(services.ErrData, "rendering", "format dates", "assessment date missing", nil)
	}
	name := strings.TrimSpace(rec.DisplayName)
	if name == "" {
		return nil, services.Wrap(services.ErrData, "rendering", "format fields", "display name missing", nil)
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, services.Wrap(services.ErrData, "rendering", "format fields", "certificate code missing", nil)
	}
	return map[Field]string{
		FieldName:       name,
		FieldNationalID: rec.NationalIDOrPlaceholder(),
		FieldCourse:     rec.CourseName,
		FieldDate:       rec.AssessedAt.Format(DateLayout),
		FieldCode:       req.Code,
		FieldApproved:   ApprovedLabel,
		FieldScore:      strconv.FormatFloat(rec.Score, 'f', 1, 64),
		FieldExpiration: rec.ExpiresAt().Format(DateLayout),
	}, nil
}

func loadImage(name, path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrAsset, "rendering", "load template", fmt.Sprintf("%s (%s)", name, path), err)
	}
	return imaging.Clone(img), nil
}

func (r *Renderer) face(family FontFamily, size float64) (font.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := faceKey{family: family, size: size}
	if face, ok := r.faces[key]; ok {
		return face, nil
	}
	parsed, ok := r.fonts[family]
	if !ok {
		path := r.bundle.Fonts[family]
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrAsset, "rendering", "load font", fmt.Sprintf("%s (%s)", family, path), err)
		}
		parsed, err = opentype.Parse(data)
		if err != nil {
			return nil, services.Wrap(services.ErrAsset, "rendering", "parse font", fmt.Sprintf("%s (%s)", family, path), err)
		}
		r.fonts[family] = parsed
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     fontDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrAsset, "rendering", "create font face", string(family), err)
	}
	r.faces[key] = face
	return face, nil
}

func drawText(dst *image.NRGBA, face font.Face, slot TextSlot, text string) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(Palette[slot.Color]),
		Face: face,
		Dot:  fixed.P(slot.X, slot.Y),
	}
	d.DrawString(text)
}

func savePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrAsset, "rendering", "create output directory", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrAsset, "rendering", "create output image", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return services.Wrap(services.ErrAsset, "rendering", "encode output image", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return services.Wrap(services.ErrAsset, "rendering", "close output image", path, err)
	}
	return nil
}

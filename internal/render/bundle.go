package render

import (
	"fmt"

	"certissuer/internal/config"
	"certissuer/internal/services"
	"certissuer/internal/textutil"
)

// Bundle is the static asset set: template images, syllabus variants, faces,
// and the closed course to syllabus table.
type Bundle struct {
	Slide1  string
	Slide2  string
	Logo    string
	Syllabi map[string]string
	Fonts   map[FontFamily]string
	courses map[string]string
}

// NewBundle builds a bundle. Course names are matched after Unicode and
// whitespace normalization.
func NewBundle(slide1, slide2, logo string, syllabi map[string]string, fonts map[FontFamily]string, courses map[string]string) Bundle {
	normalized := make(map[string]string, len(courses))
	for name, key := range courses {
		normalized[textutil.NormalizeSegment(name)] = key
	}
	return Bundle{
		Slide1:  slide1,
		Slide2:  slide2,
		Logo:    logo,
		Syllabi: syllabi,
		Fonts:   fonts,
		courses: normalized,
	}
}

// BundleFromConfig maps the asset, font, and course sections of cfg.
func BundleFromConfig(cfg *config.Config) Bundle {
	return NewBundle(
		cfg.Assets.Slide1,
		cfg.Assets.Slide2,
		cfg.Assets.Logo,
		cfg.Assets.Syllabi,
		map[FontFamily]string{
			FontNunito:  cfg.Fonts.Nunito,
			FontArimo:   cfg.Fonts.Arimo,
			FontDMSerif: cfg.Fonts.DMSerif,
		},
		cfg.Courses,
	)
}

// SyllabusFor resolves the syllabus image for a course. Unmapped courses are
// a configuration error.
func (b Bundle) SyllabusFor(course string) (string, error) {
	key, ok := b.courses[textutil.NormalizeSegment(course)]
	if !ok {
		return "", services.Wrap(services.ErrConfiguration, "rendering", "resolve syllabus",
			fmt.Sprintf("no syllabus mapped for course %q", course), nil)
	}
	path, ok := b.Syllabi[key]
	if !ok || path == "" {
		return "", services.Wrap(services.ErrConfiguration, "rendering", "resolve syllabus",
			fmt.Sprintf("course %q maps to undeclared syllabus %q", course, key), nil)
	}
	return path, nil
}

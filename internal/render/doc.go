// Package render draws certificate pages from base template images.
//
// The layout is static data: every text field, size, face, color, and the
// QR and syllabus rectangles live in layout.go and are not configurable. The
// renderer resolves the course syllabus first, so an unmapped course fails
// before any image is loaded. Both pages are written as PNG files into the
// caller's workspace directory.
package render

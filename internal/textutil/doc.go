// Package textutil normalizes names that end up in file names, remote folder
// names, and remote search queries.
//
// Course and student names arrive from the LMS in whatever Unicode form the
// editor produced. NormalizeSegment folds them to NFC with single spaces so
// that the same course always maps to the same folder and layout entry.
package textutil

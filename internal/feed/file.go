package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"certissuer/internal/candidate"
)

// FileSource reads candidates from a JSON array on every call so edits take
// effect on the next batch. A missing file yields no candidates.
type FileSource struct {
	path string
}

// NewFileSource returns a source backed by path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type fileRecord struct {
	StudentID   int64    `json:"student_id"`
	DisplayName string   `json:"display_name"`
	NationalID  *string  `json:"national_id"`
	CourseID    int64    `json:"course_id"`
	CourseName  string   `json:"course_name"`
	Score       float64  `json:"score"`
	AssessedAt  fileDate `json:"assessed_at"`
}

// fileDate accepts RFC 3339 timestamps, "2006-01-02 15:04:05", or a bare date.
// Anything else decodes to the zero time so only that row fails validation.
type fileDate struct {
	time.Time
}

var fileDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func (d *fileDate) UnmarshalJSON(data []byte) error {
	d.Time = time.Time{}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range fileDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return nil
		}
	}
	return nil
}

// Load returns every record in the file, sorted.
func (s *FileSource) Load() ([]candidate.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read candidates file: %w", err)
	}
	var raw []fileRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse candidates file %s: %w", s.path, err)
	}
	recs := make([]candidate.Record, 0, len(raw))
	for _, r := range raw {
		recs = append(recs, candidate.Record{
			StudentID:   r.StudentID,
			DisplayName: r.DisplayName,
			NationalID:  r.NationalID,
			CourseID:    r.CourseID,
			CourseName:  r.CourseName,
			Score:       r.Score,
			AssessedAt:  r.AssessedAt.Time,
		})
	}
	sortRecords(recs)
	return recs, nil
}

func (s *FileSource) Pending(ctx context.Context, offset, limit int) ([]candidate.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs, err := s.Load()
	if err != nil {
		return nil, err
	}
	return page(recs, offset, limit), nil
}

func (s *FileSource) Close() error { return nil }

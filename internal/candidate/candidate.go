// Package candidate defines the eligible student/course record flowing through
// the pipeline, plus identity, validation, and verification URL helpers.
package candidate

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"certissuer/internal/services"
)

// PlaceholderNationalID is printed when the LMS has no national ID for the student.
const PlaceholderNationalID = "12345678"

// Record is one eligible candidate: a student who passed a course assessment.
type Record struct {
	StudentID   int64     `json:"student_id" validate:"required,gt=0"`
	DisplayName string    `json:"display_name" validate:"required"`
	NationalID  *string   `json:"national_id,omitempty"`
	CourseID    int64     `json:"course_id" validate:"required,gt=0"`
	CourseName  string    `json:"course_name" validate:"required"`
	Score       float64   `json:"score" validate:"gte=0"`
	AssessedAt  time.Time `json:"assessed_at" validate:"required"`
}

// Key identifies a certificate: at most one completed certificate per pair.
type Key struct {
	StudentID int64
	CourseID  int64
}

func (k Key) String() string {
	return fmt.Sprintf("student %d / course %d", k.StudentID, k.CourseID)
}

// ParseKey parses "student:course", the form used on the command line.
func ParseKey(value string) (Key, error) {
	studentPart, coursePart, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return Key{}, fmt.Errorf("parse key %q: want student:course", value)
	}
	studentID, err := strconv.ParseInt(strings.TrimSpace(studentPart), 10, 64)
	if err != nil || studentID <= 0 {
		return Key{}, fmt.Errorf("parse key %q: invalid student id", value)
	}
	courseID, err := strconv.ParseInt(strings.TrimSpace(coursePart), 10, 64)
	if err != nil || courseID <= 0 {
		return Key{}, fmt.Errorf("parse key %q: invalid course id", value)
	}
	return Key{StudentID: studentID, CourseID: courseID}, nil
}

// Key returns the identity of the record.
func (r Record) Key() Key {
	return Key{StudentID: r.StudentID, CourseID: r.CourseID}
}

// NationalIDOrPlaceholder returns the trimmed national ID or the fixed placeholder.
func (r Record) NationalIDOrPlaceholder() string {
	if r.NationalID != nil {
		if v := strings.TrimSpace(*r.NationalID); v != "" {
			return v
		}
	}
	return PlaceholderNationalID
}

// HasNationalID reports whether a non-blank national ID is present.
func (r Record) HasNationalID() bool {
	return r.NationalID != nil && strings.TrimSpace(*r.NationalID) != ""
}

// ExpiresAt is the assessment date plus one calendar year.
func (r Record) ExpiresAt() time.Time {
	return r.AssessedAt.AddDate(1, 0, 0)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks required fields and the passing threshold. Failures are
// tagged services.ErrData.
func (r Record) Validate(minPassingScore float64) error {
	if err := recordValidator().Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return services.Wrap(services.ErrData, "received", "validate candidate", strings.Join(parts, "; "), nil)
		}
		return services.Wrap(services.ErrData, "received", "validate candidate", "", err)
	}
	if strings.TrimSpace(r.DisplayName) == "" {
		return services.Wrap(services.ErrData, "received", "validate candidate", "display name is blank", nil)
	}
	if r.Score < minPassingScore {
		return services.Wrap(services.ErrData, "received", "validate candidate",
			fmt.Sprintf("score %.1f below passing threshold %.1f", r.Score, minPassingScore), nil)
	}
	return nil
}

// VerificationURL appends the certificate code as the "code" query parameter
// of base, keeping any existing query values.
func VerificationURL(base, code string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "rendering", "build verification url", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", services.Wrap(services.ErrConfiguration, "rendering", "build verification url",
			fmt.Sprintf("base url %q is not absolute", base), nil)
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

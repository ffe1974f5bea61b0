package records

import (
	"context"
	"errors"
	"time"

	"certissuer/internal/candidate"
)

// TableName is the unprefixed name of the certificate table.
const TableName = "certificados_generados"

// Status represents the lifecycle of a certificate row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string to a Status.
func ParseStatus(value string) (Status, bool) {
	for _, s := range allStatuses {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// ErrNotFound is returned by Get when no row exists for the pair.
var ErrNotFound = errors.New("certificate record not found")

// Certificate is one persisted row.
type Certificate struct {
	ID           int64      `json:"id"`
	NationalID   string     `json:"national_id,omitempty"`
	Code         string     `json:"code,omitempty"`
	StudentID    int64      `json:"student_id"`
	StudentName  string     `json:"student_name"`
	CourseName   string     `json:"course_name"`
	CourseID     int64      `json:"course_id"`
	Score        float64    `json:"score"`
	IssuedAt     *time.Time `json:"issued_at,omitempty"`
	Issuer       string     `json:"issuer,omitempty"`
	ArchiveURL   string     `json:"archive_url,omitempty"`
	ObjectID     string     `json:"object_id,omitempty"`
	Status       Status     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Attempts     int        `json:"attempts"`
	LastAttempt  *time.Time `json:"last_attempt,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Key returns the (student, course) identity of the row.
func (c Certificate) Key() candidate.Key {
	return candidate.Key{StudentID: c.StudentID, CourseID: c.CourseID}
}

// Completion carries the result of a successful issuance.
type Completion struct {
	Code       string
	ArchiveURL string
	ObjectID   string
	IssuedAt   time.Time
	Issuer     string
}

// Filter narrows List results. Zero values mean no restriction.
type Filter struct {
	Statuses  []Status
	StudentID int64
	CourseID  int64
	Limit     int
}

// Store is the certificate record repository.
type Store interface {
	// Exists reports whether a completed row exists for the pair.
	Exists(ctx context.Context, key candidate.Key) (bool, error)
	// Claim moves the pair to processing, inserting the row when absent. It
	// returns false when the row is completed or already processing with a
	// last_attempt newer than staleAfter.
	Claim(ctx context.Context, rec candidate.Record, staleAfter time.Duration) (bool, error)
	// InsertCompleted records a successful issuance. A duplicate code or an
	// already completed pair yields services.ErrUniqueViolation.
	InsertCompleted(ctx context.Context, rec candidate.Record, done Completion) error
	// MarkFailed increments the attempt counter and records message. Completed
	// rows are left untouched.
	MarkFailed(ctx context.Context, rec candidate.Record, message string) error
	// Release returns a processing row to pending without touching attempts.
	Release(ctx context.Context, key candidate.Key) error
	// Attempts returns the failure counter for the pair, zero when absent.
	Attempts(ctx context.Context, key candidate.Key) (int, error)

	Get(ctx context.Context, key candidate.Key) (*Certificate, error)
	List(ctx context.Context, filter Filter) ([]Certificate, error)
	Stats(ctx context.Context) (map[Status]int, error)
	// ResetFailed zeroes the attempt counter of failed rows and returns them to
	// pending. With no keys every failed row is reset.
	ResetFailed(ctx context.Context, keys ...candidate.Key) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CandidateOutcome is the result of one candidate within a batch.
type CandidateOutcome struct {
	StudentID  int64  `json:"studentId"`
	CourseID   int64  `json:"courseId"`
	Course     string `json:"course"`
	Outcome    string `json:"outcome"`
	State      string `json:"state"`
	Code       string `json:"code,omitempty"`
	ArchiveURL string `json:"archiveUrl,omitempty"`
	ErrorKind  string `json:"errorKind,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// BatchSummary describes one batch run.
type BatchSummary struct {
	RunID      string             `json:"runId"`
	StartedAt  string             `json:"startedAt,omitempty"`
	FinishedAt string             `json:"finishedAt,omitempty"`
	Completed  int                `json:"completed"`
	Failed     int                `json:"failed"`
	Skipped    int                `json:"skipped"`
	Truncated  int                `json:"truncated,omitempty"`
	Filtered   int                `json:"filtered,omitempty"`
	Canceled   bool               `json:"canceled,omitempty"`
	DurationMS int64              `json:"durationMs"`
	Candidates []CandidateOutcome `json:"candidates"`
}

// BatchResponse wraps the summary returned by POST /api/batch.
type BatchResponse struct {
	Batch BatchSummary `json:"batch"`
}

// ScheduleResponse reports the periodic trigger state.
type ScheduleResponse struct {
	Spec     string        `json:"spec"`
	Timezone string        `json:"timezone,omitempty"`
	NextRun  string        `json:"nextRun"`
	Running  bool          `json:"running"`
	LastRun  *BatchSummary `json:"lastRun,omitempty"`
}

// Certificate is a persisted certificate row.
type Certificate struct {
	StudentID    int64   `json:"studentId"`
	StudentName  string  `json:"studentName"`
	NationalID   string  `json:"nationalId,omitempty"`
	CourseID     int64   `json:"courseId"`
	CourseName   string  `json:"courseName"`
	Score        float64 `json:"score"`
	Code         string  `json:"code,omitempty"`
	Status       string  `json:"status"`
	Issuer       string  `json:"issuer,omitempty"`
	ArchiveURL   string  `json:"archiveUrl,omitempty"`
	IssuedAt     string  `json:"issuedAt,omitempty"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	Attempts     int     `json:"attempts"`
	LastAttempt  string  `json:"lastAttempt,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

// CertificateListResponse wraps a collection of certificate rows.
type CertificateListResponse struct {
	Items  []Certificate  `json:"items"`
	Counts map[string]int `json:"counts,omitempty"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// StagingDir describes a run directory left under the staging root.
type StagingDir struct {
	Name      string `json:"name"`
	ModTime   string `json:"modTime"`
	SizeBytes int64  `json:"sizeBytes"`
}

// HealthResponse aggregates stage readiness and staging usage.
type HealthResponse struct {
	Ready   bool          `json:"ready"`
	PID     int           `json:"pid"`
	Stages  []StageHealth `json:"stages"`
	Staging []StagingDir  `json:"staging"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

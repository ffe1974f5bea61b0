package stage

import (
	"time"

	"certissuer/internal/candidate"
)

// State is the position of a candidate in the pipeline.
type State string

const (
	StateReceived   State = "received"
	StateRendering  State = "rendering"
	StateAssembling State = "assembling"
	StateUploading  State = "uploading"
	StateRecording  State = "recording"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Job carries one candidate through the stages. Each stage fills in the
// artefacts the next one consumes.
type Job struct {
	Record    candidate.Record
	Code      string
	Workspace string
	State     State
	// FailedIn is the state the job was in when it failed.
	FailedIn State

	VerificationURL string
	Images          []string
	DocumentPath    string

	ObjectID   string
	ArchiveURL string
	FolderID   string
	IssuedAt   time.Time
}

// NewJob starts a job in the received state.
func NewJob(rec candidate.Record, code, workspace string) *Job {
	return &Job{Record: rec, Code: code, Workspace: workspace, State: StateReceived}
}

// Archived reports whether the document reached the remote store.
func (j *Job) Archived() bool {
	return j.ObjectID != ""
}

package ledger

import (
	"errors"
	"time"

	"github.com/zjetlab/zjetrun/internal/config"
)

type Status string

const (
	StatusQueued      Status = "queued"
	StatusRunning     Status = "running"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusTimedOut    Status = "timed_out"
	StatusInterrupted Status = "interrupted"
	StatusSkipped     Status = "skipped"
)

// Terminal reports whether s is a terminal invocation status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusInterrupted, StatusSkipped:
		return true
	}
	return false
}

// Run is one `run dispatch` execution over a sample.
type Run struct {
	ID          string
	Tool        string
	Analysis    string
	Sample      string
	Status      Status
	SubmittedBy string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Invocation is one recorded tool call belonging to a run.
type Invocation struct {
	ID          string
	RunID       string
	Channel     string
	Level       string
	InputType   config.InputType
	Suffix      string
	Argv        []string
	Status      Status
	ExitCode    *int
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	LastError   *string
	Stderr      *string
}

// RunSpec describes a new run.
type RunSpec struct {
	Tool        string
	Analysis    string
	Sample      string
	SubmittedBy string
}

var ErrRunNotFound = errors.New("run not found")

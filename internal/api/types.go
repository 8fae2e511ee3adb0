package api

import "time"

// RunSummary is one entry in the GET /v1/runs listing.
type RunSummary struct {
	RunID       string     `json:"run_id"`
	Tool        string     `json:"tool"`
	Analysis    string     `json:"analysis"`
	Sample      string     `json:"sample"`
	Status      string     `json:"status"`
	SubmittedBy string     `json:"submitted_by"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunDetailResponse is returned by GET /v1/runs/{run_id}.
type RunDetailResponse struct {
	RunSummary
	Invocations []InvocationSummary `json:"invocations"`
}

// InvocationSummary is one invocation entry in a run detail response.
type InvocationSummary struct {
	ID        string   `json:"id"`
	Channel   string   `json:"channel"`
	Level     string   `json:"level"`
	InputType string   `json:"input_type"`
	Suffix    string   `json:"suffix"`
	Status    string   `json:"status"`
	ExitCode  *int     `json:"exit_code,omitempty"`
	LastError string   `json:"last_error,omitempty"`
	Argv      []string `json:"argv"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	RunsRecorded  int    `json:"runs_recorded"`
}

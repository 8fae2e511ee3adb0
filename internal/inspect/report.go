// Package inspect renders run reports from the ledger.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zjetlab/zjetrun/internal/ledger"
)

// Report is the structured JSON representation of a run report.
type Report struct {
	RunID       string           `json:"run_id"`
	Tool        string           `json:"tool"`
	Analysis    string           `json:"analysis"`
	Sample      string           `json:"sample"`
	Status      string           `json:"status"`
	SubmittedBy string           `json:"submitted_by"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Invocations []InvocationView `json:"invocations"`
}

// InvocationView is one invocation entry in the report.
type InvocationView struct {
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

// BuildReport renders a terminal-friendly report for a run.
func BuildReport(ctx context.Context, l *ledger.Ledger, runID string) (string, error) {
	report, err := gatherReportData(ctx, l, runID)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Run Report\n")
	fmt.Fprintf(&out, "Run ID      : %s\n", report.RunID)
	fmt.Fprintf(&out, "Tool        : %s\n", report.Tool)
	fmt.Fprintf(&out, "Analysis    : %s\n", report.Analysis)
	fmt.Fprintf(&out, "Sample      : %s\n", report.Sample)
	fmt.Fprintf(&out, "Status      : %s\n", report.Status)
	fmt.Fprintf(&out, "Submitted by: %s\n", report.SubmittedBy)
	fmt.Fprintf(&out, "Created     : %s\n", report.CreatedAt.Format(time.RFC3339))
	if report.CompletedAt != nil {
		fmt.Fprintf(&out, "Completed   : %s\n", report.CompletedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&out, "\n")

	for i, inv := range report.Invocations {
		fmt.Fprintf(&out, "[%d] %s (%s/%s, %s)\n", i+1, inv.Suffix, inv.Channel, inv.Level, inv.InputType)
		fmt.Fprintf(&out, "    status    : %s\n", inv.Status)
		if inv.ExitCode != nil {
			fmt.Fprintf(&out, "    exit_code : %d\n", *inv.ExitCode)
		} else {
			fmt.Fprintf(&out, "    exit_code : <none>\n")
		}
		if inv.LastError != "" {
			fmt.Fprintf(&out, "    error     : %s\n", inv.LastError)
		}
		fmt.Fprintf(&out, "    argv      : %s\n", strings.Join(inv.Argv, " "))
		fmt.Fprintf(&out, "\n")
	}

	return strings.TrimRight(out.String(), "\n") + "\n", nil
}

// BuildJSONReport returns the machine-readable JSON run report.
func BuildJSONReport(ctx context.Context, l *ledger.Ledger, runID string) (string, error) {
	report, err := gatherReportData(ctx, l, runID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func gatherReportData(ctx context.Context, l *ledger.Ledger, runID string) (*Report, error) {
	run, err := l.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	invs, err := l.Invocations(ctx, runID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       run.ID,
		Tool:        run.Tool,
		Analysis:    run.Analysis,
		Sample:      run.Sample,
		Status:      string(run.Status),
		SubmittedBy: run.SubmittedBy,
		CreatedAt:   run.CreatedAt,
		CompletedAt: run.CompletedAt,
	}
	for _, inv := range invs {
		view := InvocationView{
			ID:        inv.ID,
			Channel:   inv.Channel,
			Level:     inv.Level,
			InputType: string(inv.InputType),
			Suffix:    inv.Suffix,
			Status:    string(inv.Status),
			ExitCode:  inv.ExitCode,
			Argv:      inv.Argv,
		}
		if inv.LastError != nil {
			view.LastError = *inv.LastError
		}
		report.Invocations = append(report.Invocations, view)
	}
	return report, nil
}

package inspect

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zjetlab/zjetrun/internal/config"
	"github.com/zjetlab/zjetrun/internal/ledger"
	"github.com/zjetlab/zjetrun/internal/matrix"
	"github.com/zjetlab/zjetrun/internal/storage"
)

func seedLedger(t *testing.T) (*ledger.Ledger, string) {
	t.Helper()
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	db, err := storage.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	l := ledger.New(db)
	runID, err := l.CreateRun(ctx, ledger.RunSpec{
		Tool:        "lumberjack",
		Analysis:    "zjet",
		Sample:      "Run2016",
		SubmittedBy: "test",
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	for _, level := range []string{"L1L2L3", "L1L2Res"} {
		_, err := l.Enqueue(ctx, runID, matrix.Invocation{
			Tool:      "lumberjack",
			Analysis:  "zjet",
			Sample:    "Run2016",
			Channel:   "mm",
			Level:     level,
			InputType: config.InputData,
			InputFile: "/store/data/Run2016.root",
			Tree:      "Events",
			Tasks:     []string{"CreateHistograms"},
			Suffix:    matrix.Suffix("mm", "Run2016", level),
			Jobs:      4,
		})
		if err != nil {
			t.Fatalf("Enqueue %s: %v", level, err)
		}
	}

	// Complete the first invocation so the report shows a mixed picture.
	inv, err := l.Dequeue(ctx, runID)
	if err != nil || inv == nil {
		t.Fatalf("Dequeue: %v", err)
	}
	zero := 0
	if err := l.Complete(ctx, inv.ID, ledger.StatusSucceeded, &zero, nil, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	return l, runID
}

func TestBuildReport(t *testing.T) {
	l, runID := seedLedger(t)

	out, err := BuildReport(context.Background(), l, runID)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	for _, want := range []string{
		"Run Report",
		runID,
		"Sample      : Run2016",
		"Zmm_Run2016_L1L2L3",
		"Zmm_Run2016_L1L2Res",
		"status    : succeeded",
		"status    : queued",
		"--output-file-suffix",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestBuildJSONReport(t *testing.T) {
	l, runID := seedLedger(t)

	out, err := BuildJSONReport(context.Background(), l, runID)
	if err != nil {
		t.Fatalf("BuildJSONReport: %v", err)
	}

	var report Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode JSON report: %v", err)
	}
	if report.RunID != runID {
		t.Fatalf("run_id = %q, want %q", report.RunID, runID)
	}
	if len(report.Invocations) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(report.Invocations))
	}
	if report.Invocations[0].Status != "succeeded" || report.Invocations[0].ExitCode == nil {
		t.Fatalf("unexpected first invocation: %+v", report.Invocations[0])
	}
	if report.Invocations[1].Suffix != "Zmm_Run2016_L1L2Res" {
		t.Fatalf("unexpected second invocation suffix: %q", report.Invocations[1].Suffix)
	}
}

func TestBuildReportUnknownRun(t *testing.T) {
	l, _ := seedLedger(t)

	if _, err := BuildReport(context.Background(), l, "no-such-run"); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

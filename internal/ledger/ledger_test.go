package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zjetlab/zjetrun/internal/config"
	"github.com/zjetlab/zjetrun/internal/matrix"
	"github.com/zjetlab/zjetrun/internal/storage"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func testInvocation(channel, level string) matrix.Invocation {
	return matrix.Invocation{
		Tool:      "lumberjack",
		Analysis:  "zjet",
		Sample:    "Run2016",
		Channel:   channel,
		Level:     level,
		InputType: config.InputData,
		InputFile: "/store/data/Run2016.root",
		Tree:      "Events",
		Tasks:     []string{"CreateHistograms"},
		Suffix:    matrix.Suffix(channel, "Run2016", level),
		Jobs:      4,
	}
}

func createTestRun(t *testing.T, l *Ledger) string {
	t.Helper()
	runID, err := l.CreateRun(context.Background(), RunSpec{
		Tool:        "lumberjack",
		Analysis:    "zjet",
		Sample:      "Run2016",
		SubmittedBy: "test",
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	return runID
}

func TestLedgerDequeueFIFO(t *testing.T) {
	t.Parallel()

	l := testLedger(t)
	runID := createTestRun(t, l)

	id1, err := l.Enqueue(context.Background(), runID, testInvocation("mm", "L1L2L3"))
	if err != nil {
		t.Fatalf("Enqueue 1: %v", err)
	}
	id2, err := l.Enqueue(context.Background(), runID, testInvocation("mm", "L1L2Res"))
	if err != nil {
		t.Fatalf("Enqueue 2: %v", err)
	}

	inv1, err := l.Dequeue(context.Background(), runID)
	if err != nil {
		t.Fatalf("Dequeue 1: %v", err)
	}
	if inv1 == nil || inv1.ID != id1 || inv1.Status != StatusRunning || inv1.StartedAt == nil {
		t.Fatalf("unexpected invocation 1: %#v", inv1)
	}
	if inv1.Suffix != "Zmm_Run2016_L1L2L3" {
		t.Fatalf("unexpected suffix: %q", inv1.Suffix)
	}
	if len(inv1.Argv) == 0 {
		t.Fatalf("expected stored argv, got none")
	}

	inv2, err := l.Dequeue(context.Background(), runID)
	if err != nil {
		t.Fatalf("Dequeue 2: %v", err)
	}
	if inv2 == nil || inv2.ID != id2 {
		t.Fatalf("unexpected invocation 2: %#v", inv2)
	}

	inv3, err := l.Dequeue(context.Background(), runID)
	if err != nil {
		t.Fatalf("Dequeue 3: %v", err)
	}
	if inv3 != nil {
		t.Fatalf("expected drained queue, got %#v", inv3)
	}
}

func TestLedgerCompleteRecordsOutcome(t *testing.T) {
	t.Parallel()

	l := testLedger(t)
	runID := createTestRun(t, l)

	id, err := l.Enqueue(context.Background(), runID, testInvocation("ee", "L1L2L3"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := l.Dequeue(context.Background(), runID); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	exitCode := 2
	lastErr := "tool exited with status 2"
	stderr := "Traceback (most recent call last): boom"
	if err := l.Complete(context.Background(), id, StatusFailed, &exitCode, &lastErr, &stderr); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	invs, err := l.Invocations(context.Background(), runID)
	if err != nil {
		t.Fatalf("Invocations: %v", err)
	}
	if len(invs) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(invs))
	}
	got := invs[0]
	if got.Status != StatusFailed || got.ExitCode == nil || *got.ExitCode != 2 {
		t.Fatalf("unexpected terminal state: %#v", got)
	}
	if got.LastError == nil || *got.LastError != lastErr {
		t.Fatalf("unexpected last_error: %#v", got.LastError)
	}
	if got.Stderr == nil || *got.Stderr != stderr {
		t.Fatalf("unexpected stderr: %#v", got.Stderr)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}
}

func TestLedgerCompleteRejectsNonTerminalStatus(t *testing.T) {
	t.Parallel()

	l := testLedger(t)
	runID := createTestRun(t, l)
	id, err := l.Enqueue(context.Background(), runID, testInvocation("mm", "L1L2L3"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := l.Complete(context.Background(), id, StatusRunning, nil, nil, nil); err == nil {
		t.Fatalf("expected error for non-terminal status")
	}
}

func TestLedgerSkipQueued(t *testing.T) {
	t.Parallel()

	l := testLedger(t)
	runID := createTestRun(t, l)

	for _, level := range []string{"L1L2L3", "L1L2Res"} {
		if _, err := l.Enqueue(context.Background(), runID, testInvocation("mm", level)); err != nil {
			t.Fatalf("Enqueue %s: %v", level, err)
		}
	}

	n, err := l.SkipQueued(context.Background(), runID)
	if err != nil {
		t.Fatalf("SkipQueued: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 skipped, got %d", n)
	}

	inv, err := l.Dequeue(context.Background(), runID)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if inv != nil {
		t.Fatalf("expected no dequeueable invocations, got %#v", inv)
	}
}

func TestLedgerRecoverOrphans(t *testing.T) {
	t.Parallel()

	l := testLedger(t)
	runID := createTestRun(t, l)

	if _, err := l.Enqueue(context.Background(), runID, testInvocation("mm", "L1L2L3")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := l.Dequeue(context.Background(), runID); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	// Simulates a restart with an invocation still marked running.
	n, err := l.RecoverOrphans(context.Background())
	if err != nil {
		t.Fatalf("RecoverOrphans: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered invocation, got %d", n)
	}

	invs, err := l.Invocations(context.Background(), runID)
	if err != nil {
		t.Fatalf("Invocations: %v", err)
	}
	if invs[0].Status != StatusInterrupted {
		t.Fatalf("expected interrupted, got %s", invs[0].Status)
	}
	if invs[0].LastError == nil || *invs[0].LastError != "interrupted by process restart" {
		t.Fatalf("unexpected last_error: %#v", invs[0].LastError)
	}

	run, err := l.Run(context.Background(), runID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != StatusInterrupted {
		t.Fatalf("expected interrupted run, got %s", run.Status)
	}
}

func TestLedgerRunLifecycle(t *testing.T) {
	t.Parallel()

	l := testLedger(t)
	runID := createTestRun(t, l)

	run, err := l.Run(context.Background(), runID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != StatusRunning || run.Sample != "Run2016" || run.CompletedAt != nil {
		t.Fatalf("unexpected run: %#v", run)
	}

	if err := l.CompleteRun(context.Background(), runID, StatusSucceeded); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	run, err = l.Run(context.Background(), runID)
	if err != nil {
		t.Fatalf("Run after complete: %v", err)
	}
	if run.Status != StatusSucceeded || run.CompletedAt == nil {
		t.Fatalf("unexpected completed run: %#v", run)
	}

	latest, err := l.LatestRun(context.Background())
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest == nil || latest.ID != runID {
		t.Fatalf("unexpected latest run: %#v", latest)
	}

	runs, err := l.Runs(context.Background())
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
}

func TestLedgerRunNotFound(t *testing.T) {
	t.Parallel()

	l := testLedger(t)

	if _, err := l.Run(context.Background(), "no-such-run"); err != ErrRunNotFound {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := l.CompleteRun(context.Background(), "no-such-run", StatusSucceeded); err != ErrRunNotFound {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}

	latest, err := l.LatestRun(context.Background())
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil latest run on empty ledger, got %#v", latest)
	}
}

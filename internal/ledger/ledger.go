// Package ledger persists runs and their invocations in SQLite. The
// dispatcher claims queued invocations in FIFO order and records terminal
// outcomes, so an interrupted batch can be inspected and re-driven.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zjetlab/zjetrun/internal/config"
	"github.com/zjetlab/zjetrun/internal/matrix"
)

const maxStderrBytes = 64 * 1024

type Ledger struct {
	db *sql.DB
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// CreateRun inserts a new run row in status running and returns its ID.
func (l *Ledger) CreateRun(ctx context.Context, spec RunSpec) (string, error) {
	if spec.Tool == "" {
		return "", fmt.Errorf("tool is empty")
	}
	if spec.Sample == "" {
		return "", fmt.Errorf("sample is empty")
	}
	if spec.SubmittedBy == "" {
		return "", fmt.Errorf("submitted_by is empty")
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := l.db.ExecContext(ctx, `
INSERT INTO run(id, tool, analysis, sample, status, submitted_by, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, id, spec.Tool, spec.Analysis, spec.Sample, StatusRunning, spec.SubmittedBy, now)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// Enqueue records one planned invocation for a run.
func (l *Ledger) Enqueue(ctx context.Context, runID string, inv matrix.Invocation) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID is empty")
	}

	argv, err := json.Marshal(inv.Argv())
	if err != nil {
		return "", fmt.Errorf("marshal argv: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = l.db.ExecContext(ctx, `
INSERT INTO invocation(id, run_id, channel, level, input_type, suffix, argv, status, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, id, runID, inv.Channel, inv.Level, string(inv.InputType), inv.Suffix, string(argv), StatusQueued, now)
	if err != nil {
		return "", fmt.Errorf("enqueue invocation: %w", err)
	}
	return id, nil
}

// Dequeue claims the oldest queued invocation of a run and marks it running.
// Returns (nil, nil) when the run has no queued invocations left.
func (l *Ledger) Dequeue(ctx context.Context, runID string) (*Invocation, error) {
	nowS := time.Now().UTC().Format(time.RFC3339Nano)

	row := l.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM invocation
  WHERE run_id = ? AND status = ?
  ORDER BY created_at ASC, rowid ASC
  LIMIT 1
)
UPDATE invocation
SET status = ?, started_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING
  id, run_id, channel, level, input_type, suffix, argv, status, exit_code,
  created_at, started_at, completed_at, last_error, stderr;
`, runID, StatusQueued, StatusRunning, nowS)

	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue invocation: %w", err)
	}
	return inv, nil
}

// Complete marks an invocation terminal.
func (l *Ledger) Complete(ctx context.Context, invocationID string, status Status, exitCode *int, lastError, stderr *string) error {
	if invocationID == "" {
		return fmt.Errorf("invocationID is empty")
	}
	if !status.Terminal() {
		return fmt.Errorf("invalid terminal status: %q", status)
	}

	var stderrVal any
	if stderr != nil {
		s := *stderr
		if len(s) > maxStderrBytes {
			s = s[:maxStderrBytes]
		}
		stderrVal = s
	}

	completedAt := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := l.db.ExecContext(ctx, `
UPDATE invocation
SET status = ?, exit_code = ?, completed_at = ?, last_error = ?, stderr = ?
WHERE id = ?;
`, status, exitCode, completedAt, lastError, stderrVal, invocationID)
	if err != nil {
		return fmt.Errorf("complete invocation: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("invocation %q not found", invocationID)
	}
	return nil
}

// SkipQueued marks every remaining queued invocation of a run as skipped.
// Used when the halt-on-error policy stops a run early.
func (l *Ledger) SkipQueued(ctx context.Context, runID string) (int, error) {
	completedAt := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := l.db.ExecContext(ctx, `
UPDATE invocation
SET status = ?, completed_at = ?
WHERE run_id = ? AND status = ?;
`, StatusSkipped, completedAt, runID, StatusQueued)
	if err != nil {
		return 0, fmt.Errorf("skip queued invocations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CompleteRun marks a run terminal.
func (l *Ledger) CompleteRun(ctx context.Context, runID string, status Status) error {
	if !status.Terminal() {
		return fmt.Errorf("invalid terminal status: %q", status)
	}
	completedAt := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := l.db.ExecContext(ctx, `
UPDATE run
SET status = ?, completed_at = ?
WHERE id = ?;
`, status, completedAt, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// RecoverOrphans marks invocations (and runs) left in status running by a
// crashed process as interrupted. Called on startup before a new run begins.
func (l *Ledger) RecoverOrphans(ctx context.Context) (int, error) {
	completedAt := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := l.db.ExecContext(ctx, `
UPDATE invocation
SET status = ?, completed_at = ?, last_error = 'interrupted by process restart'
WHERE status = ?;
`, StatusInterrupted, completedAt, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("recover orphaned invocations: %w", err)
	}
	n, _ := res.RowsAffected()

	_, err = l.db.ExecContext(ctx, `
UPDATE run
SET status = ?, completed_at = ?
WHERE status = ?;
`, StatusInterrupted, completedAt, StatusRunning)
	if err != nil {
		return int(n), fmt.Errorf("recover orphaned runs: %w", err)
	}
	return int(n), nil
}

// Depth returns the number of queued invocations for a run.
func (l *Ledger) Depth(ctx context.Context, runID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM invocation WHERE run_id = ? AND status = ?;
`, runID, StatusQueued).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// Runs returns all runs, newest first.
func (l *Ledger) Runs(ctx context.Context) ([]*Run, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id, tool, analysis, sample, status, submitted_by, created_at, completed_at
FROM run
ORDER BY created_at DESC, rowid DESC;
`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run returns a single run by ID.
func (l *Ledger) Run(ctx context.Context, runID string) (*Run, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT id, tool, analysis, sample, status, submitted_by, created_at, completed_at
FROM run
WHERE id = ?;
`, runID)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	return r, nil
}

// LatestRun returns the most recently created run, or nil when the ledger is empty.
func (l *Ledger) LatestRun(ctx context.Context) (*Run, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT id, tool, analysis, sample, status, submitted_by, created_at, completed_at
FROM run
ORDER BY created_at DESC, rowid DESC
LIMIT 1;
`)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	return r, nil
}

// Invocations returns all invocations of a run in creation order.
func (l *Ledger) Invocations(ctx context.Context, runID string) ([]*Invocation, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id, run_id, channel, level, input_type, suffix, argv, status, exit_code,
  created_at, started_at, completed_at, last_error, stderr
FROM invocation
WHERE run_id = ?
ORDER BY created_at ASC, rowid ASC;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	var out []*Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r            Run
		statusS      string
		createdAtS   string
		completedAtS sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Tool, &r.Analysis, &r.Sample, &statusS, &r.SubmittedBy, &createdAtS, &completedAtS); err != nil {
		return nil, err
	}
	r.Status = Status(statusS)
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		r.CreatedAt = t
	}
	if completedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAtS.String); err == nil {
			r.CompletedAt = &t
		}
	}
	return &r, nil
}

func scanInvocation(row rowScanner) (*Invocation, error) {
	var (
		inv          Invocation
		inputTypeS   string
		argvS        string
		statusS      string
		exitCode     sql.NullInt64
		createdAtS   string
		startedAtS   sql.NullString
		completedAtS sql.NullString
		lastError    sql.NullString
		stderrS      sql.NullString
	)
	err := row.Scan(
		&inv.ID, &inv.RunID, &inv.Channel, &inv.Level, &inputTypeS, &inv.Suffix, &argvS, &statusS, &exitCode,
		&createdAtS, &startedAtS, &completedAtS, &lastError, &stderrS,
	)
	if err != nil {
		return nil, err
	}

	inv.InputType = config.InputType(inputTypeS)
	inv.Status = Status(statusS)
	if err := json.Unmarshal([]byte(argvS), &inv.Argv); err != nil {
		return nil, fmt.Errorf("decode stored argv: %w", err)
	}
	if exitCode.Valid {
		c := int(exitCode.Int64)
		inv.ExitCode = &c
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		inv.CreatedAt = t
	}
	if startedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, startedAtS.String); err == nil {
			inv.StartedAt = &t
		}
	}
	if completedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAtS.String); err == nil {
			inv.CompletedAt = &t
		}
	}
	if lastError.Valid {
		inv.LastError = &lastError.String
	}
	if stderrS.Valid {
		inv.Stderr = &stderrS.String
	}
	return &inv, nil
}

// Package state tracks which output suffixes have already been produced for
// an analysis, so a re-run can skip combinations that completed before.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

const DefaultMaxStateBytes = 1 << 20 // 1 MiB

type Store struct {
	db            *sql.DB
	maxStateBytes int
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:            db,
		maxStateBytes: DefaultMaxStateBytes,
	}
}

// Get returns the full state blob for an analysis, or {} if missing.
func (s *Store) Get(ctx context.Context, analysis string) (json.RawMessage, error) {
	if analysis == "" {
		return nil, fmt.Errorf("analysis name is empty")
	}

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT state FROM analysis_state WHERE analysis = ?;", analysis).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return json.RawMessage(`{}`), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read analysis state: %w", err)
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("stored analysis state is invalid JSON for analysis=%q", analysis)
	}
	return json.RawMessage(raw), nil
}

// MarkDone records that the given output suffix completed successfully.
func (s *Store) MarkDone(ctx context.Context, analysis, suffix string) error {
	if suffix == "" {
		return fmt.Errorf("suffix is empty")
	}
	ts, err := json.Marshal(time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	updates, err := json.Marshal(map[string]json.RawMessage{suffix: ts})
	if err != nil {
		return err
	}
	_, err = s.shallowMerge(ctx, analysis, updates)
	return err
}

// IsDone reports whether the given output suffix was previously recorded done.
func (s *Store) IsDone(ctx context.Context, analysis, suffix string) (bool, error) {
	raw, err := s.Get(ctx, analysis)
	if err != nil {
		return false, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false, fmt.Errorf("decode analysis state: %w", err)
	}
	_, ok := m[suffix]
	return ok, nil
}

// shallowMerge applies updates as a shallow merge (top-level keys replaced).
// The merged state is persisted and returned.
func (s *Store) shallowMerge(ctx context.Context, analysis string, updates json.RawMessage) (json.RawMessage, error) {
	if analysis == "" {
		return nil, fmt.Errorf("analysis name is empty")
	}

	upd, err := decodeObjectOrEmpty(updates)
	if err != nil {
		return nil, fmt.Errorf("decode state updates: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Read current state (or {}).
	var curRaw string
	err = tx.QueryRowContext(ctx, "SELECT state FROM analysis_state WHERE analysis = ?;", analysis).Scan(&curRaw)
	if errors.Is(err, sql.ErrNoRows) {
		curRaw = "{}"
	} else if err != nil {
		return nil, fmt.Errorf("read analysis state: %w", err)
	}

	cur, err := decodeObjectOrEmpty(json.RawMessage(curRaw))
	if err != nil {
		return nil, fmt.Errorf("decode stored state: %w", err)
	}

	maps.Copy(cur, upd)

	merged, err := json.Marshal(cur)
	if err != nil {
		return nil, fmt.Errorf("marshal merged state: %w", err)
	}
	if len(merged) > s.maxStateBytes {
		return nil, fmt.Errorf("analysis state exceeds max size (%d bytes)", s.maxStateBytes)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
INSERT INTO analysis_state(analysis, state, updated_at)
VALUES(?, ?, ?)
ON CONFLICT(analysis) DO UPDATE SET
  state = excluded.state,
  updated_at = excluded.updated_at;
`, analysis, string(merged), now)
	if err != nil {
		return nil, fmt.Errorf("upsert analysis state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return json.RawMessage(merged), nil
}

func decodeObjectOrEmpty(b json.RawMessage) (map[string]json.RawMessage, error) {
	if len(b) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("invalid JSON")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	return m, nil
}

package store

import (
	"context"
	"fmt"
	"time"
)

// RunRecord is one generation run in the history.
type RunRecord struct {
	RunID     string
	StartedAt time.Time
	Selection string
	Model     int
	NumModes  int
	Artifact  string
	Outcome   string
	Violation string
	Error     string
	Elapsed   time.Duration
}

// RecordRun appends a run to the history.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := rec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
		 (run_id, started_at, selection, model, num_modes, artifact, outcome, violation, error, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, started.UnixMilli(), rec.Selection, rec.Model, rec.NumModes,
		rec.Artifact, rec.Outcome, rec.Violation, rec.Error, rec.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, selection, model, num_modes, artifact, outcome, violation, error, elapsed_ms
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec       RunRecord
			started   int64
			elapsedMs int64
		)
		if err := rows.Scan(&rec.RunID, &started, &rec.Selection, &rec.Model, &rec.NumModes,
			&rec.Artifact, &rec.Outcome, &rec.Violation, &rec.Error, &elapsedMs); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started)
		rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

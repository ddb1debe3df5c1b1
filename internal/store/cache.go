package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entry is one cached derivation.
type Entry struct {
	Key             string
	Family          string
	NumModes        int
	DissipationFree bool
	Expressions     []string
	CreatedAt       time.Time
}

// Get returns the cached entry for key; ok is false on a miss.
func (s *Store) Get(ctx context.Context, key string) (entry Entry, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		exprs     string
		dissFree  int
		createdAt int64
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT family, num_modes, dissipation_free, expressions, created_at
		 FROM derivations WHERE key = ?`, key)
	err = row.Scan(&entry.Family, &entry.NumModes, &dissFree, &exprs, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache lookup: %w", err)
	}
	if err := json.Unmarshal([]byte(exprs), &entry.Expressions); err != nil {
		return Entry{}, false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	entry.Key = key
	entry.DissipationFree = dissFree != 0
	entry.CreatedAt = time.Unix(createdAt, 0)
	return entry, true, nil
}

// Put stores or replaces an entry.
func (s *Store) Put(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exprs, err := json.Marshal(entry.Expressions)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	dissFree := 0
	if entry.DissipationFree {
		dissFree = 1
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO derivations
		 (key, family, num_modes, dissipation_free, expressions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Key, entry.Family, entry.NumModes, dissFree, string(exprs), created.Unix())
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// Len returns the number of cached derivations.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM derivations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}

// Purge removes every derivation older than the cutoff and returns how many
// were deleted.
func (s *Store) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM derivations WHERE created_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return res.RowsAffected()
}

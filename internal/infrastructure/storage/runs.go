package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
)

// StartRun records the start of a reconciliation run
func (s *Storage) StartRun(run *RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("failed to start run: missing id")
	}
	sources, err := json.Marshal(nonNilStrings(run.Sources))
	if err != nil {
		return fmt.Errorf("failed to encode run sources: %w", err)
	}
	status := run.Status
	if status == "" {
		status = "running"
	}

	_, err = s.db.Exec(`
		INSERT INTO reconciliation_runs (id, started_at, dry_run, sources_json, date_from, date_to, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC(), run.DryRun, string(sources), run.DateFrom, run.DateTo, status)
	if err != nil {
		return fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}
	return nil
}

// CompleteRun records the final counts and status of a run
func (s *Storage) CompleteRun(run *RunRecord) error {
	counts, err := json.Marshal(nonNilCounts(run.MatchTypeCounts))
	if err != nil {
		return fmt.Errorf("failed to encode match type counts: %w", err)
	}
	completed := time.Now().UTC()
	if run.CompletedAt != nil {
		completed = run.CompletedAt.UTC()
	}
	total := run.TotalValueMatched
	if total == "" {
		total = "0"
	}

	result, err := s.db.Exec(`
		UPDATE reconciliation_runs
		SET completed_at = ?,
		    candidates_scanned = ?,
		    matched = ?,
		    needs_review = ?,
		    skipped = ?,
		    conflicts = ?,
		    errors = ?,
		    unmatched = ?,
		    total_value_matched = ?,
		    match_type_counts_json = ?,
		    status = ?,
		    error_message = ?
		WHERE id = ?
	`, completed,
		run.CandidatesScanned,
		run.Matched,
		run.NeedsReview,
		run.Skipped,
		run.Conflicts,
		run.Errors,
		run.Unmatched,
		total,
		string(counts),
		run.Status,
		nullString(run.ErrorMessage),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", run.ID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to complete run %s: %w", run.ID, store.ErrNotFound)
	}
	return nil
}

const runColumns = `id, started_at, completed_at, dry_run, sources_json, date_from, date_to,
	candidates_scanned, matched, needs_review, skipped, conflicts, errors, unmatched,
	total_value_matched, match_type_counts_json, status, error_message`

// GetRun retrieves a run by ID
func (s *Storage) GetRun(runID string) (*RunRecord, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM reconciliation_runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM reconciliation_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// SaveMatchResults stores the match results of a run in one transaction
func (s *Storage) SaveMatchResults(runID string, results []MatchRecord) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin saving match results: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO match_results
		(run_id, target_source, target_id, counterparts_json, batch_id, match_type,
		 confidence, outcome, reason, applied, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare match result insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range results {
		counterparts, err := json.Marshal(nonNilRefs(r.Counterparts))
		if err != nil {
			return fmt.Errorf("failed to encode counterparts of %s: %w", r.TargetID, err)
		}
		created := r.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		_, err = stmt.Exec(runID, r.TargetSource, r.TargetID, string(counterparts), nullString(r.BatchID),
			r.MatchType, r.Confidence, r.Outcome, nullString(r.Reason), r.Applied, created.UTC())
		if err != nil {
			return fmt.Errorf("failed to save match result for %s: %w", r.TargetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit match results: %w", err)
	}
	return nil
}

// ListMatchResults returns the match results of a run in insertion order
func (s *Storage) ListMatchResults(runID string, limit, offset int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, run_id, target_source, target_id, counterparts_json, batch_id, match_type,
		       confidence, outcome, reason, applied, created_at
		FROM match_results WHERE run_id = ?
		ORDER BY id LIMIT ? OFFSET ?
	`, runID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list match results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []MatchRecord
	for rows.Next() {
		var (
			r            MatchRecord
			counterparts string
			batchID      sql.NullString
			reason       sql.NullString
			created      sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.TargetSource, &r.TargetID, &counterparts, &batchID,
			&r.MatchType, &r.Confidence, &r.Outcome, &reason, &r.Applied, &created); err != nil {
			return nil, fmt.Errorf("failed to scan match result: %w", err)
		}
		if err := json.Unmarshal([]byte(counterparts), &r.Counterparts); err != nil {
			return nil, fmt.Errorf("failed to decode counterparts: %w", err)
		}
		r.BatchID = batchID.String
		r.Reason = reason.String
		if created.Valid {
			r.CreatedAt = created.Time
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		run       RunRecord
		completed sql.NullTime
		sources   string
		dateFrom  sql.NullString
		dateTo    sql.NullString
		counts    string
		errMsg    sql.NullString
	)
	err := row.Scan(&run.ID, &run.StartedAt, &completed, &run.DryRun, &sources, &dateFrom, &dateTo,
		&run.CandidatesScanned, &run.Matched, &run.NeedsReview, &run.Skipped, &run.Conflicts,
		&run.Errors, &run.Unmatched, &run.TotalValueMatched, &counts, &run.Status, &errMsg)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(sources), &run.Sources); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	if err := json.Unmarshal([]byte(counts), &run.MatchTypeCounts); err != nil {
		return nil, fmt.Errorf("failed to decode match type counts: %w", err)
	}
	run.DateFrom = dateFrom.String
	run.DateTo = dateTo.String
	run.ErrorMessage = errMsg.String
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func nonNilRefs(r []CounterpartRef) []CounterpartRef {
	if r == nil {
		return []CounterpartRef{}
	}
	return r
}

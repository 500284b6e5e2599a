package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
)

const dateLayout = "2006-01-02"

// SaveRecord inserts or replaces a source record
func (s *Storage) SaveRecord(ctx context.Context, record *Record) error {
	if !record.Source.Valid() {
		return fmt.Errorf("failed to save record %s: unknown source %q", record.ID, record.Source)
	}
	if record.ID == "" {
		return fmt.Errorf("failed to save %s record: missing id", record.Source)
	}

	state := record.State
	if state == "" {
		state = candidate.StateUnreconciled
	}
	metadata, err := json.Marshal(nonNilFields(record.Fields))
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.ID, err)
	}
	link, err := encodeLink(record.Link)
	if err != nil {
		return fmt.Errorf("failed to encode link for %s: %w", record.ID, err)
	}
	updated := record.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	query := `
	INSERT OR REPLACE INTO records
	(source, id, record_date, state, link_json, metadata_json, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		string(record.Source),
		record.ID,
		formatDate(record.Date),
		string(state),
		link,
		string(metadata),
		updated,
	)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", record.ID, err)
	}
	return nil
}

// GetRecord retrieves a record by source and id
func (s *Storage) GetRecord(ctx context.Context, source candidate.Source, id string) (*Record, error) {
	query := `
	SELECT source, id, record_date, state, link_json, metadata_json, updated_at
	FROM records WHERE source = ? AND id = ?
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, string(source), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return record, nil
}

// Query returns one page of records. Records without a usable date are
// always included so the reconciler can report them.
func (s *Storage) Query(ctx context.Context, q store.Query) (store.Page, error) {
	var (
		clauses []string
		args    []any
	)
	if len(q.Sources) > 0 {
		clauses = append(clauses, "source IN ("+placeholders(len(q.Sources))+")")
		for _, src := range q.Sources {
			args = append(args, string(src))
		}
	}
	if len(q.States) > 0 {
		clauses = append(clauses, "state IN ("+placeholders(len(q.States))+")")
		for _, st := range q.States {
			args = append(args, string(st))
		}
	}
	if !q.From.IsZero() {
		clauses = append(clauses, "(record_date IS NULL OR record_date >= ?)")
		args = append(args, q.From.UTC().Format(dateLayout))
	}
	if !q.To.IsZero() {
		clauses = append(clauses, "(record_date IS NULL OR record_date <= ?)")
		args = append(args, q.To.UTC().Format(dateLayout))
	}

	query := `SELECT source, id, record_date, state, link_json, metadata_json, updated_at FROM records`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY source, id LIMIT ? OFFSET ?"

	limit := q.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return store.Page{}, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var page store.Page
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return store.Page{}, fmt.Errorf("failed to scan record: %w", err)
		}
		page.Records = append(page.Records, record.Raw())
	}
	if err := rows.Err(); err != nil {
		return store.Page{}, fmt.Errorf("failed to read records: %w", err)
	}
	return page, nil
}

// Update applies a reconciliation patch inside a transaction. The state
// check and the write happen together, so a record claimed by another run
// in the meantime yields store.ErrConflict.
func (s *Storage) Update(ctx context.Context, source candidate.Source, id string, patch store.Patch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update of %s %s: %w", source, id, err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		state    string
		linkJSON sql.NullString
		metaJSON string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT state, link_json, metadata_json FROM records WHERE source = ? AND id = ?`,
		string(source), id,
	).Scan(&state, &linkJSON, &metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to update %s %s: %w", source, id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s %s: %w", source, id, err)
	}

	current, err := decodeLink(linkJSON)
	if err != nil {
		return fmt.Errorf("failed to decode link of %s %s: %w", source, id, err)
	}
	if !patch.Allows(candidate.State(state), current) {
		return fmt.Errorf("%s %s is %s: %w", source, id, state, store.ErrConflict)
	}

	metadata := map[string]any{}
	if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
		return fmt.Errorf("failed to decode metadata of %s %s: %w", source, id, err)
	}
	merged, err := json.Marshal(patch.Merge(metadata))
	if err != nil {
		return fmt.Errorf("failed to encode metadata of %s %s: %w", source, id, err)
	}

	link := current
	if patch.Link != nil {
		link = patch.Link
	}
	encoded, err := encodeLink(link)
	if err != nil {
		return fmt.Errorf("failed to encode link of %s %s: %w", source, id, err)
	}

	updated := patch.Timestamp
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE records SET state = ?, link_json = ?, metadata_json = ?, updated_at = ? WHERE source = ? AND id = ?`,
		string(patch.State), encoded, string(merged), updated.UTC(), string(source), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", source, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update of %s %s: %w", source, id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		source, id, state string
		date, linkJSON    sql.NullString
		metaJSON          string
		updated           sql.NullTime
	)
	if err := row.Scan(&source, &id, &date, &state, &linkJSON, &metaJSON, &updated); err != nil {
		return nil, err
	}

	record := &Record{
		Source: candidate.Source(source),
		ID:     id,
		State:  candidate.State(state),
		Fields: map[string]any{},
	}
	if date.Valid && date.String != "" {
		if d, err := time.Parse(dateLayout, date.String); err == nil {
			record.Date = &d
		}
	}
	if updated.Valid {
		record.UpdatedAt = updated.Time
	}

	link, err := decodeLink(linkJSON)
	if err != nil {
		return nil, err
	}
	record.Link = link

	decoder := json.NewDecoder(strings.NewReader(metaJSON))
	decoder.UseNumber() // keep amounts exact
	if err := decoder.Decode(&record.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return record, nil
}

func encodeLink(link *candidate.Link) (sql.NullString, error) {
	if link == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(link)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeLink(raw sql.NullString) (*candidate.Link, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var link candidate.Link
	if err := json.Unmarshal([]byte(raw.String), &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func formatDate(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(dateLayout), Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nonNilFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return fields
}

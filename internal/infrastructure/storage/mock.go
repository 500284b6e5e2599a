package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It applies patches with the same rules as Storage.
type MockRepository struct {
	mu      sync.Mutex
	records map[string]*Record
	runs    map[string]*RunRecord
	matches map[string][]MatchRecord
	nextID  int64

	// Hooks for test assertions
	QueryCalls  int
	UpdateCalls int
	Updates     []MockUpdate

	// Error injection for testing error paths
	QueryErr       error
	QueryErrOnPage int              // 1-based page that fails with QueryErr; 0 fails every page
	UpdateErrs     map[string]error // keyed by candidate.KeyOf
	StartRunErr    error
	CompleteRunErr error
	SaveMatchesErr error
	SaveRecordErr  error
	ListRunsErr    error
}

// MockUpdate is one Update call seen by the mock
type MockUpdate struct {
	Source candidate.Source
	ID     string
	Patch  store.Patch
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		records:    make(map[string]*Record),
		runs:       make(map[string]*RunRecord),
		matches:    make(map[string][]MatchRecord),
		UpdateErrs: make(map[string]error),
		nextID:     1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveRecord saves a copy of record
func (m *MockRepository) SaveRecord(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveRecordErr != nil {
		return m.SaveRecordErr
	}
	copied := *record
	if copied.State == "" {
		copied.State = candidate.StateUnreconciled
	}
	copied.Fields = copyMap(record.Fields)
	m.records[candidate.KeyOf(record.Source, record.ID)] = &copied
	return nil
}

// GetRecord returns a copy of the stored record
func (m *MockRepository) GetRecord(_ context.Context, source candidate.Source, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[candidate.KeyOf(source, id)]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *record
	copied.Fields = copyMap(record.Fields)
	return &copied, nil
}

// Query pages through records ordered by source and id
func (m *MockRepository) Query(_ context.Context, q store.Query) (store.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCalls++
	if m.QueryErr != nil && (m.QueryErrOnPage == 0 || m.QueryErrOnPage == m.QueryCalls) {
		return store.Page{}, m.QueryErr
	}

	var matched []*Record
	for _, r := range m.records {
		if len(q.Sources) > 0 && !slices.Contains(q.Sources, r.Source) {
			continue
		}
		if len(q.States) > 0 && !slices.Contains(q.States, r.State) {
			continue
		}
		if r.Date != nil {
			day := r.Date.UTC().Format(dateLayout)
			if !q.From.IsZero() && day < q.From.UTC().Format(dateLayout) {
				continue
			}
			if !q.To.IsZero() && day > q.To.UTC().Format(dateLayout) {
				continue
			}
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Source != matched[j].Source {
			return matched[i].Source < matched[j].Source
		}
		return matched[i].ID < matched[j].ID
	})

	if q.Offset >= len(matched) {
		return store.Page{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	var page store.Page
	for _, r := range matched {
		raw := r.Raw()
		raw.Fields = copyMap(r.Fields)
		page.Records = append(page.Records, raw)
	}
	return page, nil
}

// Update applies patch the way Storage does
func (m *MockRepository) Update(_ context.Context, source candidate.Source, id string, patch store.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++

	key := candidate.KeyOf(source, id)
	if err, ok := m.UpdateErrs[key]; ok {
		return err
	}
	record, ok := m.records[key]
	if !ok {
		return fmt.Errorf("failed to update %s %s: %w", source, id, store.ErrNotFound)
	}
	if !patch.Allows(record.State, record.Link) {
		return fmt.Errorf("%s %s is %s: %w", source, id, record.State, store.ErrConflict)
	}

	record.State = patch.State
	if patch.Link != nil {
		link := *patch.Link
		record.Link = &link
	}
	record.Fields = patch.Merge(record.Fields)
	record.UpdatedAt = patch.Timestamp
	m.Updates = append(m.Updates, MockUpdate{Source: source, ID: id, Patch: patch})
	return nil
}

// SetState forces a record into state, simulating another writer
func (m *MockRepository) SetState(source candidate.Source, id string, state candidate.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[candidate.KeyOf(source, id)]; ok {
		record.State = state
	}
}

// StartRun records a run
func (m *MockRepository) StartRun(run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartRunErr != nil {
		return m.StartRunErr
	}
	copied := *run
	if copied.Status == "" {
		copied.Status = "running"
	}
	m.runs[run.ID] = &copied
	return nil
}

// CompleteRun replaces the run with its final state
func (m *MockRepository) CompleteRun(run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	existing, ok := m.runs[run.ID]
	if !ok {
		return fmt.Errorf("failed to complete run %s: %w", run.ID, store.ErrNotFound)
	}
	copied := *run
	copied.StartedAt = existing.StartedAt
	if copied.CompletedAt == nil {
		now := time.Now()
		copied.CompletedAt = &now
	}
	m.runs[run.ID] = &copied
	return nil
}

// GetRun retrieves a run by ID
func (m *MockRepository) GetRun(runID string) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns runs newest first
func (m *MockRepository) ListRuns(limit int) ([]RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListRunsErr != nil {
		return nil, m.ListRunsErr
	}
	runs := make([]RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// SaveMatchResults stores match results in memory
func (m *MockRepository) SaveMatchResults(runID string, results []MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveMatchesErr != nil {
		return m.SaveMatchesErr
	}
	for _, r := range results {
		r.ID = m.nextID
		r.RunID = runID
		m.nextID++
		m.matches[runID] = append(m.matches[runID], r)
	}
	return nil
}

// ListMatchResults returns stored match results
func (m *MockRepository) ListMatchResults(runID string, limit, offset int) ([]MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := m.matches[runID]
	if offset >= len(results) {
		return nil, nil
	}
	results = results[offset:]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	out := make([]MatchRecord, len(results))
	copy(out, results)
	return out, nil
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

package reconcile

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/stretchr/testify/mock"
)

// mockStore is a testify mock of store.Store
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Query(ctx context.Context, q store.Query) (store.Page, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(store.Page), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, source candidate.Source, id string, patch store.Patch) error {
	args := m.Called(ctx, source, id, patch)
	return args.Error(0)
}

// patches returns the patches passed to Update, keyed by candidate key
func (m *mockStore) patches() map[string]store.Patch {
	out := make(map[string]store.Patch)
	for _, call := range m.Calls {
		if call.Method != "Update" {
			continue
		}
		source := call.Arguments.Get(1).(candidate.Source)
		id := call.Arguments.Get(2).(string)
		out[candidate.KeyOf(source, id)] = call.Arguments.Get(3).(store.Patch)
	}
	return out
}

// fakeMetrics counts metric calls
type fakeMetrics struct {
	mu       sync.Mutex
	runs     []string
	matches  map[string]int
	skipped  map[string]int
	failures int
	value    float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{matches: map[string]int{}, skipped: map[string]int{}}
}

func (f *fakeMetrics) RunCompleted(_ bool, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, status)
}

func (f *fakeMetrics) MatchRecorded(matchType, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[matchType+"/"+outcome]++
}

func (f *fakeMetrics) CandidatesSkipped(reason string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipped[reason] += n
}

func (f *fakeMetrics) WriteFailed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures++
}

func (f *fakeMetrics) ValueMatched(amount float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value += amount
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

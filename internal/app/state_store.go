package app

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"lms-test-service/internal/domain"
)

// DefaultStateKey is the storage key holding every test state.
const DefaultStateKey = "lms_test_states"

// BlobStore is a key-value namespace holding opaque serialized values
// (memory, file, Redis, Postgres). Load returns (nil, nil) for a missing key.
type BlobStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// StateStore abstracts the durable testID -> TestState mapping.
type StateStore interface {
	Get(ctx context.Context, testID string) domain.TestState
	Set(ctx context.Context, testID string, state domain.TestState)
	Delete(ctx context.Context, testID string)
	IsCompleted(ctx context.Context, testID string) bool
	Complete(ctx context.Context, testID string, score, total int) domain.TestState
	List(ctx context.Context) map[string]domain.TestState
}

// TestStateStore keeps all test states as one JSON object under a single key.
// Persistence is best-effort: read failures yield an empty mapping and write
// failures are logged and dropped.
type TestStateStore struct {
	blobs  BlobStore
	key    string
	now    func() time.Time
	logger *log.Logger

	// serializes read-modify-write within this process; other writers to
	// the same key are last-write-wins.
	mu sync.Mutex
}

func NewTestStateStore(blobs BlobStore, key string, logger *log.Logger) *TestStateStore {
	return NewTestStateStoreWithClock(blobs, key, logger, time.Now)
}

// NewTestStateStoreWithClock is used by tests for deterministic completion times.
func NewTestStateStoreWithClock(blobs BlobStore, key string, logger *log.Logger, now func() time.Time) *TestStateStore {
	if key == "" {
		key = DefaultStateKey
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TestStateStore{blobs: blobs, key: key, now: now, logger: logger}
}

// Get returns the stored state, or NOT_STARTED when absent.
func (s *TestStateStore) Get(ctx context.Context, testID string) domain.TestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.loadLocked(ctx)[testID]; ok {
		return state
	}
	return domain.NotStarted()
}

// Set overwrites the record for testID. A completed record is never
// downgraded to NOT_STARTED here; use Delete for that. Completed records are
// normalized: the score is clamped to 0..total and a missing completion time
// is stamped with the current time.
func (s *TestStateStore) Set(ctx context.Context, testID string, state domain.TestState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(ctx, testID, state)
}

func (s *TestStateStore) setLocked(ctx context.Context, testID string, state domain.TestState) domain.TestState {
	states := s.loadLocked(ctx)
	if state.Completed() {
		state = s.normalizeCompleted(testID, state)
	} else {
		if prev, ok := states[testID]; ok && prev.Completed() {
			s.logger.Printf("teststate: ignoring downgrade of completed test %q", testID)
			return prev
		}
		state = domain.NotStarted()
	}
	states[testID] = state
	s.saveLocked(ctx, states)
	return state
}

func (s *TestStateStore) normalizeCompleted(testID string, state domain.TestState) domain.TestState {
	if state.Total < 0 {
		state.Total = 0
	}
	if state.Score < 0 || state.Score > state.Total {
		s.logger.Printf("teststate: clamping score %d/%d for test %q", state.Score, state.Total, testID)
		state.Score = min(max(state.Score, 0), state.Total)
	}
	if state.CompletedAt.IsZero() {
		state.CompletedAt = s.now()
	}
	state.CompletedAt = state.CompletedAt.UTC().Truncate(time.Millisecond)
	return state
}

// Delete removes the record for testID; missing records are a no-op.
func (s *TestStateStore) Delete(ctx context.Context, testID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := s.loadLocked(ctx)
	if _, ok := states[testID]; !ok {
		return
	}
	delete(states, testID)
	s.saveLocked(ctx, states)
}

func (s *TestStateStore) IsCompleted(ctx context.Context, testID string) bool {
	return s.Get(ctx, testID).Completed()
}

// Complete stores a COMPLETED state stamped with the current time and
// returns the record as stored.
func (s *TestStateStore) Complete(ctx context.Context, testID string, score, total int) domain.TestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(ctx, testID, domain.TestState{
		Status: domain.StatusCompleted,
		Score:  score,
		Total:  total,
	})
}

// List returns a copy of every stored state.
func (s *TestStateStore) List(ctx context.Context) map[string]domain.TestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// loadLocked decodes the mapping record by record; a record that cannot be
// decoded is logged and dropped without losing the others.
func (s *TestStateStore) loadLocked(ctx context.Context) map[string]domain.TestState {
	states := make(map[string]domain.TestState)
	data, err := s.blobs.Load(ctx, s.key)
	if err != nil {
		s.logger.Printf("teststate: error reading test states: %v", err)
		return states
	}
	if len(data) == 0 {
		return states
	}
	var records map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Printf("teststate: error decoding test states: %v", err)
		return states
	}
	for testID, raw := range records {
		var state domain.TestState
		if err := json.Unmarshal(raw, &state); err != nil {
			s.logger.Printf("teststate: dropping unreadable state for test %q: %v", testID, err)
			continue
		}
		states[testID] = state
	}
	return states
}

func (s *TestStateStore) saveLocked(ctx context.Context, states map[string]domain.TestState) {
	data, err := json.Marshal(states)
	if err != nil {
		s.logger.Printf("teststate: error encoding test states: %v", err)
		return
	}
	if err := s.blobs.Save(ctx, s.key, data); err != nil {
		s.logger.Printf("teststate: error saving test states: %v", err)
	}
}

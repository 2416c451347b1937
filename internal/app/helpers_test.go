package app_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"lms-test-service/internal/app"
	"lms-test-service/internal/domain"
)

// manualTicker lets tests decide when a second has passed.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() (*manualTicker, app.TickerFunc) {
	mt := &manualTicker{ch: make(chan time.Time)}
	return mt, func(time.Duration) app.Ticker { return mt }
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatalf("tick was not consumed")
	}
}

type countingStore struct {
	app.StateStore
	completes atomic.Int32
}

func (c *countingStore) Complete(ctx context.Context, testID string, score, total int) domain.TestState {
	c.completes.Add(1)
	return c.StateStore.Complete(ctx, testID, score, total)
}

type failingBlobs struct{}

func (failingBlobs) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("storage disabled")
}

func (failingBlobs) Save(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func fiveQuestions() []domain.Question {
	correct := []int{0, 1, 2, 3, 0}
	questions := make([]domain.Question, 0, len(correct))
	for i, c := range correct {
		questions = append(questions, domain.Question{
			ID:            "q" + string(rune('1'+i)),
			Prompt:        "Question",
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: c,
		})
	}
	return questions
}

func waitDone(t *testing.T, s *app.Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session was not submitted")
	}
}

func nextSnapshot(t *testing.T, ch <-chan domain.SessionSnapshot) domain.SessionSnapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("snapshot channel closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot received")
	}
	return domain.SessionSnapshot{}
}

// slowStore holds Complete until release is closed.
type slowStore struct {
	app.StateStore
	entered chan struct{}
	release chan struct{}
}

func newSlowStore() *slowStore {
	return &slowStore{
		StateStore: newStateStore(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (s *slowStore) Complete(ctx context.Context, testID string, score, total int) domain.TestState {
	close(s.entered)
	<-s.release
	return s.StateStore.Complete(ctx, testID, score, total)
}

// hungStore never finishes saving on its own; it gives up when ctx does.
type hungStore struct {
	app.StateStore
	err chan error
}

func (s *hungStore) Complete(ctx context.Context, testID string, score, total int) domain.TestState {
	<-ctx.Done()
	s.err <- ctx.Err()
	return domain.NotStarted()
}

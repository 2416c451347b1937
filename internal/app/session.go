package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"lms-test-service/internal/domain"
)

// Ticker is the part of *time.Ticker a session depends on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// SessionOption customizes a Session before it starts.
type SessionOption func(*Session)

// WithTicker replaces the wall-clock ticker (tests drive ticks manually).
func WithTicker(fn TickerFunc) SessionOption {
	return func(s *Session) { s.newTicker = fn }
}

func WithLogger(logger *log.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAttemptID fixes the attempt identifier instead of generating a UUID.
func WithAttemptID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithPersistTimeout bounds how long saving the result may take.
func WithPersistTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithFinishHook registers fn to run once, after the session is submitted or closed.
func WithFinishHook(fn func(*Session)) SessionOption {
	return func(s *Session) { s.onFinish = fn }
}

// DefaultPersistTimeout bounds the save of a submitted result.
const DefaultPersistTimeout = 10 * time.Second

// Session is one timed attempt at a test: created -> running -> submitted.
type Session struct {
	id        string
	testID    string
	questions []domain.Question
	index     map[string]int
	store     StateStore
	newTicker TickerFunc
	logger    *log.Logger
	onFinish  func(*Session)

	persistTimeout time.Duration

	mu          sync.Mutex
	phase       domain.Phase
	answers     map[string]int
	remaining   int
	timedOut    bool
	closed      bool
	result      domain.Result
	subscribers map[chan domain.SessionSnapshot]struct{}

	persistCtx context.Context
	stop       context.CancelFunc
	loopDone   chan struct{}
	done       chan struct{}
	finishOnce sync.Once
	closeOnce  sync.Once
}

// StartSession begins an attempt and its countdown. A nil question list is a
// caller error; an empty list is allowed and scores 0/0. A non-positive
// duration submits immediately.
//
// ctx only seeds values for persistence; cancelling it does not stop the
// attempt. Callers must Close the session when they stop driving it.
func StartSession(ctx context.Context, store StateStore, testID string, questions []domain.Question, durationSeconds int, opts ...SessionOption) (*Session, error) {
	if questions == nil {
		return nil, domain.ErrNilQuestions
	}
	s := newSession(store, testID, questions, opts...)
	s.start(ctx, durationSeconds)
	return s, nil
}

func newSession(store StateStore, testID string, questions []domain.Question, opts ...SessionOption) *Session {
	s := &Session{
		id:             uuid.NewString(),
		testID:         testID,
		questions:      append([]domain.Question(nil), questions...),
		index:          make(map[string]int, len(questions)),
		store:          store,
		newTicker:      NewTimeTicker,
		persistTimeout: DefaultPersistTimeout,
		logger:         log.Default(),
		phase:          domain.PhaseCreated,
		answers:        make(map[string]int),
		subscribers:    make(map[chan domain.SessionSnapshot]struct{}),
		loopDone:       make(chan struct{}),
		done:           make(chan struct{}),
	}
	for i, q := range s.questions {
		if _, dup := s.index[q.ID]; !dup {
			s.index[q.ID] = i
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) start(ctx context.Context, durationSeconds int) {
	s.persistCtx = context.WithoutCancel(ctx)
	loopCtx, stop := context.WithCancel(s.persistCtx)
	s.stop = stop

	s.mu.Lock()
	s.phase = domain.PhaseRunning
	if durationSeconds <= 0 {
		s.remaining = 0
		s.timedOut = true
		result, _ := s.beginSubmitLocked()
		s.mu.Unlock()
		close(s.loopDone)
		s.persist(result)
		s.finish()
		return
	}
	s.remaining = durationSeconds
	s.mu.Unlock()

	go s.run(loopCtx)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.loopDone)

	ticker := s.newTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C():
			if s.tick() {
				return
			}
		}
	}
}

// tick applies one second of countdown and reports whether the loop should stop.
func (s *Session) tick() bool {
	s.mu.Lock()
	if s.closed || s.phase == domain.PhaseSubmitted {
		s.mu.Unlock()
		return true
	}
	s.remaining--
	if s.remaining > 0 {
		s.broadcastLocked()
		s.mu.Unlock()
		return false
	}
	s.remaining = 0
	s.timedOut = true
	result, first := s.beginSubmitLocked()
	s.mu.Unlock()

	if first {
		s.persist(result)
		s.logger.Printf("test %s attempt %s: time is up, submitted automatically", s.testID, s.id)
		s.finish()
	}
	return true
}

// ID is the attempt identifier.
func (s *Session) ID() string { return s.id }

func (s *Session) TestID() string { return s.testID }

// Questions returns the question set in order.
func (s *Session) Questions() []domain.Question {
	return append([]domain.Question(nil), s.questions...)
}

// Done is closed once the session is submitted and its result saved.
func (s *Session) Done() <-chan struct{} { return s.done }

// RecordAnswer stores the selected option for a question, replacing any
// earlier choice. It reports false, and changes nothing, once the session is
// submitted or closed, or when the question or option does not exist.
func (s *Session) RecordAnswer(questionID string, option int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.phase != domain.PhaseRunning {
		return false
	}
	i, ok := s.index[questionID]
	if !ok || option < 0 || option >= len(s.questions[i].Options) {
		return false
	}
	s.answers[questionID] = option
	s.broadcastLocked()
	return true
}

// Answer returns the recorded option for a question.
func (s *Session) Answer(questionID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	option, ok := s.answers[questionID]
	return option, ok
}

// Submit scores the attempt and persists it. Only the first call scores and
// persists, and it returns once the result is saved; later calls return the
// same result without waiting. A session closed before submission is
// discarded and Submit returns a zero Result.
func (s *Session) Submit() domain.Result {
	s.mu.Lock()
	if s.closed && s.phase != domain.PhaseSubmitted {
		s.mu.Unlock()
		return domain.Result{}
	}
	result, first := s.beginSubmitLocked()
	s.mu.Unlock()

	if first {
		s.persist(result)
		s.finish()
	}
	return result
}

// Result returns the final result once submitted.
func (s *Session) Result() (domain.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.phase == domain.PhaseSubmitted
}

func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close stops the countdown and releases subscribers. It waits for the
// countdown goroutine to exit, is safe to call repeatedly, and does not
// submit an unsubmitted attempt.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.closeSubscribersLocked()
		s.mu.Unlock()

		s.stop()
		<-s.loopDone
		s.finish()
	})
}

// Subscribe returns a channel of snapshots starting with the current one.
// Slow readers only see the newest snapshot. The channel is closed after the
// final snapshot once the session is submitted or closed. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)

	s.mu.Lock()
	ch <- s.snapshotLocked()
	if s.closed || s.phase == domain.PhaseSubmitted {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// beginSubmitLocked scores the attempt and freezes it; first is false on
// repeats. Only the caller that gets first == true may call persist.
func (s *Session) beginSubmitLocked() (result domain.Result, first bool) {
	if s.phase == domain.PhaseSubmitted {
		return s.result, false
	}
	s.result = score(s.questions, s.answers)
	s.phase = domain.PhaseSubmitted
	return s.result, true
}

// persist saves the result without holding the session lock, then releases
// Done waiters and subscribers with the final snapshot.
func (s *Session) persist(result domain.Result) {
	ctx, cancel := context.WithTimeout(s.persistCtx, s.persistTimeout)
	s.store.Complete(ctx, s.testID, result.Score, result.Total)
	cancel()

	s.mu.Lock()
	close(s.done)
	s.broadcastLocked()
	s.closeSubscribersLocked()
	s.mu.Unlock()
}

func (s *Session) finish() {
	s.finishOnce.Do(func() {
		if s.onFinish != nil {
			s.onFinish(s)
		}
	})
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// full buffer: replace the oldest snapshot so the newest is never lost
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) closeSubscribersLocked() {
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		AttemptID:        s.id,
		TestID:           s.testID,
		Phase:            s.phase,
		RemainingSeconds: s.remaining,
		Remaining:        domain.FormatRemaining(s.remaining),
		Answered:         len(s.answers),
		Total:            len(s.questions),
		TimedOut:         s.timedOut,
	}
	if s.phase == domain.PhaseSubmitted {
		result := s.result
		snap.Result = &result
	}
	return snap
}

// score counts exact matches; unanswered and wrong answers both score zero.
func score(questions []domain.Question, answers map[string]int) domain.Result {
	result := domain.Result{Total: len(questions)}
	for _, q := range questions {
		if chosen, ok := answers[q.ID]; ok && chosen == q.CorrectOption {
			result.Score++
		}
	}
	return result
}

package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lms-test-service/internal/app"
	"lms-test-service/internal/domain"
	"lms-test-service/internal/infra/memory"
)

func newStateStore() *app.TestStateStore {
	return app.NewTestStateStore(memory.NewBlobStore(), "", nil)
}

func TestSessionEndToEndScoring(t *testing.T) {
	ctx := context.Background()
	states := newStateStore()
	_, ticker := newManualTicker()

	session, err := app.StartSession(ctx, states, "t1", fiveQuestions(), 600, app.WithTicker(ticker))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	for q, option := range map[string]int{"q1": 0, "q2": 1, "q3": 0, "q5": 0} {
		if !session.RecordAnswer(q, option) {
			t.Fatalf("answer %s rejected", q)
		}
	}

	result := session.Submit()
	if result.Score != 3 || result.Total != 5 {
		t.Fatalf("expected 3/5, got %+v", result)
	}

	state := states.Get(ctx, "t1")
	if state.Status != domain.StatusCompleted || state.Score != 3 || state.Total != 5 {
		t.Fatalf("unexpected stored state %+v", state)
	}
	if state.CompletedAt.IsZero() {
		t.Fatalf("expected completedAt to be set")
	}
}

func TestSessionSubmitIsIdempotent(t *testing.T) {
	store := &countingStore{StateStore: newStateStore()}
	_, ticker := newManualTicker()

	session, err := app.StartSession(context.Background(), store, "t1", fiveQuestions(), 600, app.WithTicker(ticker))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	session.RecordAnswer("q1", 0)
	first := session.Submit()
	second := session.Submit()

	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
	if n := store.completes.Load(); n != 1 {
		t.Fatalf("expected exactly one commit, got %d", n)
	}
}

func TestSessionLatestAnswerWins(t *testing.T) {
	_, ticker := newManualTicker()
	session, err := app.StartSession(context.Background(), newStateStore(), "t1", fiveQuestions(), 600, app.WithTicker(ticker))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	session.RecordAnswer("q1", 0)
	session.RecordAnswer("q1", 2)

	if got, ok := session.Answer("q1"); !ok || got != 2 {
		t.Fatalf("expected answer 2, got %d (%v)", got, ok)
	}
	if result := session.Submit(); result.Score != 0 {
		t.Fatalf("expected overwritten answer to be scored, got %+v", result)
	}
}

func TestSessionRejectsUnknownAnswers(t *testing.T) {
	_, ticker := newManualTicker()
	session, err := app.StartSession(context.Background(), newStateStore(), "t1", fiveQuestions(), 600, app.WithTicker(ticker))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	if session.RecordAnswer("q9", 0) {
		t.Fatalf("expected unknown question to be ignored")
	}
	if session.RecordAnswer("q1", 4) || session.RecordAnswer("q1", -1) {
		t.Fatalf("expected out of range option to be ignored")
	}
	if snap := session.Snapshot(); snap.Answered != 0 {
		t.Fatalf("expected no answers, got %d", snap.Answered)
	}
}

func TestSessionTimeoutForcesSubmission(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{StateStore: newStateStore()}
	mt, ticker := newManualTicker()

	session, err := app.StartSession(ctx, store, "t1", fiveQuestions(), 1, app.WithTicker(ticker))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	mt.tick(t)
	waitDone(t, session)

	result, ok := session.Result()
	if !ok || result.Score != 0 || result.Total != 5 {
		t.Fatalf("expected 0/5 after timeout, got %+v (%v)", result, ok)
	}
	snap := session.Snapshot()
	if !snap.TimedOut || snap.RemainingSeconds != 0 || snap.Phase != domain.PhaseSubmitted {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !store.IsCompleted(ctx, "t1") {
		t.Fatalf("expected timeout to persist the result")
	}
	if session.Submit() != result || store.completes.Load() != 1 {
		t.Fatalf("expected submit after timeout to be a no-op")
	}
}

func TestSessionCountdownPublishesSnapshots(t *testing.T) {
	mt, ticker := newManualTicker()
	session, err := app.StartSession(context.Background(), newStateStore(), "t1", fiveQuestions(), 3, app.WithTicker(ticker))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	updates, cancel := session.Subscribe()
	defer cancel()

	if snap := nextSnapshot(t, updates); snap.RemainingSeconds != 3 || snap.Remaining != "00:03" {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
	mt.tick(t)
	if snap := nextSnapshot(t, updates); snap.RemainingSeconds != 2 {
		t.Fatalf("expected 2 seconds left, got %+v", snap)
	}
	mt.tick(t)
	nextSnapshot(t, updates)
	mt.tick(t)

	final := nextSnapshot(t, updates)
	if final.Phase != domain.PhaseSubmitted || final.Result == nil {
		t.Fatalf("expected final snapshot, got %+v", final)
	}
	if _, open := <-updates; open {
		t.Fatalf("expected channel closed after submission")
	}
}

func TestSessionNonPositiveDurationSubmitsAtStart(t *testing.T) {
	ctx := context.Background()
	for _, duration := range []int{0, -5} {
		states := newStateStore()
		session, err := app.StartSession(ctx, states, "t1", fiveQuestions(), duration)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		waitDone(t, session)
		session.Close()

		if !states.IsCompleted(ctx, "t1") {
			t.Fatalf("duration %d: expected immediate submission", duration)
		}
	}
}

func TestSessionEmptyQuestionSet(t *testing.T) {
	_, ticker := newManualTicker()
	session, err := app.StartSession(context.Background(), newStateStore(), "t1", []domain.Question{}, 60, app.WithTicker(ticker))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	result := session.Submit()
	if result.Score != 0 || result.Total != 0 || result.Percentage() != 0 {
		t.Fatalf("expected 0/0 at 0%%, got %+v", result)
	}
}

func TestSessionNilQuestionsIsContractViolation(t *testing.T) {
	_, err := app.StartSession(context.Background(), newStateStore(), "t1", nil, 60)
	if !errors.Is(err, domain.ErrNilQuestions) {
		t.Fatalf("expected ErrNilQuestions, got %v", err)
	}
}

func TestSessionIgnoresAnswersAfterSubmit(t *testing.T) {
	_, ticker := newManualTicker()
	session, err := app.StartSession(context.Background(), newStateStore(), "t1", fiveQuestions(), 60, app.WithTicker(ticker))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	session.Submit()
	if session.RecordAnswer("q1", 0) {
		t.Fatalf("expected answer after submit to be ignored")
	}
	if _, ok := session.Answer("q1"); ok {
		t.Fatalf("expected no recorded answer")
	}
}

func TestSessionCloseReleasesTimerWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	states := newStateStore()
	mt, ticker := newManualTicker()
	finished := make(chan struct{})

	session, err := app.StartSession(ctx, states, "t1", fiveQuestions(), 60,
		app.WithTicker(ticker),
		app.WithFinishHook(func(*app.Session) { close(finished) }),
	)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	session.RecordAnswer("q1", 0)
	mt.tick(t)

	session.Close()
	session.Close()

	if !mt.stopped.Load() {
		t.Fatalf("expected ticker to be stopped")
	}
	select {
	case <-finished:
	default:
		t.Fatalf("expected finish hook to run on close")
	}
	if session.RecordAnswer("q2", 1) {
		t.Fatalf("expected closed session to ignore answers")
	}
	if result := session.Submit(); result != (domain.Result{}) {
		t.Fatalf("expected discarded session, got %+v", result)
	}
	if states.IsCompleted(ctx, "t1") {
		t.Fatalf("closing must not persist a result")
	}
}

func TestSessionScoreBound(t *testing.T) {
	questions := fiveQuestions()
	for mask := 0; mask < 1<<len(questions); mask++ {
		_, ticker := newManualTicker()
		session, err := app.StartSession(context.Background(), newStateStore(), "t1", questions, 60, app.WithTicker(ticker))
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		for i, q := range questions {
			if mask&(1<<i) != 0 {
				session.RecordAnswer(q.ID, q.CorrectOption)
			}
		}
		result := session.Submit()
		session.Close()
		if result.Score < 0 || result.Score > result.Total {
			t.Fatalf("score out of bounds: %+v", result)
		}
	}
}

func TestSessionStaysResponsiveWhileSaving(t *testing.T) {
	ctx := context.Background()
	store := newSlowStore()
	_, ticker := newManualTicker()

	session, err := app.StartSession(ctx, store, "t1", fiveQuestions(), 60, app.WithTicker(ticker))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()
	session.RecordAnswer("q1", 0)

	submitted := make(chan domain.Result, 1)
	go func() { submitted <- session.Submit() }()

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("result was never saved")
	}

	snapshots := make(chan domain.SessionSnapshot, 1)
	go func() { snapshots <- session.Snapshot() }()
	select {
	case snap := <-snapshots:
		if snap.Phase != domain.PhaseSubmitted || snap.Result == nil || snap.Result.Score != 1 {
			t.Fatalf("unexpected snapshot while saving %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("snapshot blocked while the result was being saved")
	}
	if session.RecordAnswer("q2", 1) {
		t.Fatalf("expected answers to be refused once submitted")
	}
	if again := session.Submit(); again.Score != 1 {
		t.Fatalf("expected repeated submit to return the cached result, got %+v", again)
	}
	select {
	case <-session.Done():
		t.Fatalf("done must wait for the save")
	default:
	}

	close(store.release)
	if result := <-submitted; result.Score != 1 || result.Total != 5 {
		t.Fatalf("unexpected result %+v", result)
	}
	waitDone(t, session)
	if !store.IsCompleted(ctx, "t1") {
		t.Fatalf("expected result saved")
	}
}

func TestSessionSaveIsBounded(t *testing.T) {
	store := &hungStore{StateStore: newStateStore(), err: make(chan error, 1)}
	_, ticker := newManualTicker()

	session, err := app.StartSession(context.Background(), store, "t1", fiveQuestions(), 60,
		app.WithTicker(ticker),
		app.WithPersistTimeout(20*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	session.Submit()
	waitDone(t, session)
	if err := <-store.err; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the save to time out, got %v", err)
	}
}

package app

import (
	"context"
	"log"
	"sort"

	"lms-test-service/internal/domain"
)

const (
	// DefaultDurationSeconds is used for definitions without a duration.
	DefaultDurationSeconds = 600
	// DefaultPassMark is the minimum percentage for a pass.
	DefaultPassMark = 40
)

// SessionRepository tracks active attempts by attempt ID (in-memory, Redis, etc).
type SessionRepository interface {
	Add(session *Session)
	Get(attemptID string) (*Session, bool)
	Remove(attemptID string)
}

// TestRepository loads test definitions (from cache/backing store).
type TestRepository interface {
	GetTest(ctx context.Context, testID string) (domain.TestDefinition, error)
	ListTests(ctx context.Context) ([]domain.TestDefinition, error)
}

// Options tunes TestService defaults.
type Options struct {
	DefaultDuration int
	// PassMark is the minimum percentage for a pass; nil means DefaultPassMark.
	PassMark *int
	Ticker   TickerFunc
	Logger   *log.Logger
}

// TestService contains the test-taking use cases.
type TestService struct {
	tests    TestRepository
	states   StateStore
	sessions SessionRepository

	defaultDuration int
	passMark        int
	ticker          TickerFunc
	logger          *log.Logger
}

func NewTestService(tests TestRepository, states StateStore, sessions SessionRepository, opts Options) *TestService {
	s := &TestService{
		tests:           tests,
		states:          states,
		sessions:        sessions,
		defaultDuration: opts.DefaultDuration,
		passMark:        DefaultPassMark,
		ticker:          opts.Ticker,
		logger:          opts.Logger,
	}
	if s.defaultDuration <= 0 {
		s.defaultDuration = DefaultDurationSeconds
	}
	if opts.PassMark != nil {
		s.passMark = *opts.PassMark
	}
	if s.ticker == nil {
		s.ticker = NewTimeTicker
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// StartTest loads a test and starts a timed attempt once the learner has
// accepted the instructions declaration.
func (s *TestService) StartTest(ctx context.Context, testID string, agreed bool) (*Session, error) {
	if !agreed {
		return nil, domain.ErrDeclarationRequired
	}
	def, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	duration := def.DurationSeconds
	if duration <= 0 {
		duration = s.defaultDuration
	}
	questions := def.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	return s.StartSession(ctx, testID, questions, duration)
}

// StartSession starts an attempt over an explicit question set and registers
// it until it is submitted or closed.
func (s *TestService) StartSession(ctx context.Context, testID string, questions []domain.Question, durationSeconds int) (*Session, error) {
	session, err := StartSession(ctx, s.states, testID, questions, durationSeconds,
		WithTicker(s.ticker),
		WithLogger(s.logger),
		WithFinishHook(func(done *Session) { s.sessions.Remove(done.ID()) }),
	)
	if err != nil {
		return nil, err
	}
	s.sessions.Add(session)
	// the finish hook may already have fired (zero duration, or an expiry
	// before Add); never leave a finished attempt registered.
	if _, submitted := session.Result(); submitted {
		s.sessions.Remove(session.ID())
	}
	s.logger.Printf("test %s: attempt %s started (%d questions, %ds)", testID, session.ID(), len(questions), durationSeconds)
	return session, nil
}

// Session returns an active attempt.
func (s *TestService) Session(attemptID string) (*Session, error) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *TestService) TestState(ctx context.Context, testID string) domain.TestState {
	return s.states.Get(ctx, testID)
}

func (s *TestService) IsTestCompleted(ctx context.Context, testID string) bool {
	return s.states.IsCompleted(ctx, testID)
}

// DeleteTestState clears a result so the test can be retaken.
func (s *TestService) DeleteTestState(ctx context.Context, testID string) {
	s.states.Delete(ctx, testID)
	s.logger.Printf("test %s: result deleted", testID)
}

// Report builds the result view of a completed test.
func (s *TestService) Report(ctx context.Context, testID string) (domain.Report, error) {
	state := s.states.Get(ctx, testID)
	if !state.Completed() {
		return domain.Report{}, domain.ErrTestNotCompleted
	}
	title := testID
	if def, err := s.tests.GetTest(ctx, testID); err == nil && def.Title != "" {
		title = def.Title
	}
	result := domain.Result{Score: state.Score, Total: state.Total}
	return domain.Report{
		TestID:      testID,
		Title:       title,
		Score:       result.Score,
		Total:       result.Total,
		Percentage:  result.Percentage(),
		Wrong:       result.Wrong(),
		Passed:      result.Passed(s.passMark),
		CompletedAt: state.CompletedAt,
	}, nil
}

// Catalog lists every test with the learner's completion flag.
func (s *TestService) Catalog(ctx context.Context) ([]domain.TestSummary, error) {
	defs, err := s.tests.ListTests(ctx)
	if err != nil {
		return nil, err
	}
	states := s.states.List(ctx)

	summaries := make([]domain.TestSummary, 0, len(defs))
	for _, def := range defs {
		summaries = append(summaries, domain.TestSummary{
			ID:              def.ID,
			CourseID:        def.CourseID,
			Title:           def.Title,
			Questions:       len(def.Questions),
			Marks:           def.Marks,
			DurationSeconds: def.DurationSeconds,
			Completed:       states[def.ID].Completed(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CourseID != summaries[j].CourseID {
			return summaries[i].CourseID < summaries[j].CourseID
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// TestStatus is the lifecycle status of a test for the current learner.
type TestStatus string

const (
	StatusNotStarted TestStatus = "NOT_STARTED"
	StatusCompleted  TestStatus = "COMPLETED"
)

// ISOLayout matches the browser's Date.toISOString output.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// TestState is the durable outcome record for a single test.
// Score, Total and CompletedAt are only meaningful when Status is COMPLETED.
type TestState struct {
	Status      TestStatus
	Score       int
	Total       int
	CompletedAt time.Time
}

// NotStarted is the state reported for tests without a stored record.
func NotStarted() TestState {
	return TestState{Status: StatusNotStarted}
}

// Completed reports whether the state is terminal.
func (s TestState) Completed() bool {
	return s.Status == StatusCompleted
}

type testStateWire struct {
	Status      TestStatus `json:"status"`
	Score       *int       `json:"score,omitempty"`
	Total       *int       `json:"total,omitempty"`
	CompletedAt string     `json:"completedAt,omitempty"`
}

// MarshalJSON writes score, total and completedAt only for completed tests.
func (s TestState) MarshalJSON() ([]byte, error) {
	w := testStateWire{Status: s.Status}
	if w.Status == "" {
		w.Status = StatusNotStarted
	}
	if s.Completed() {
		score, total := s.Score, s.Total
		w.Score = &score
		w.Total = &total
		if !s.CompletedAt.IsZero() {
			w.CompletedAt = s.CompletedAt.UTC().Format(ISOLayout)
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the persisted layout; unknown statuses are rejected.
func (s *TestState) UnmarshalJSON(data []byte) error {
	var w testStateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Status {
	case StatusNotStarted, "":
		*s = NotStarted()
		return nil
	case StatusCompleted:
	default:
		return fmt.Errorf("unknown test status %q", w.Status)
	}

	state := TestState{Status: StatusCompleted}
	if w.Score != nil {
		state.Score = *w.Score
	}
	if w.Total != nil {
		state.Total = *w.Total
	}
	if w.CompletedAt != "" {
		at, err := time.Parse(time.RFC3339Nano, w.CompletedAt)
		if err != nil {
			return fmt.Errorf("parse completedAt: %w", err)
		}
		state.CompletedAt = at
	}
	*s = state
	return nil
}

// Question is a single-answer multiple choice question.
type Question struct {
	ID            string   `json:"id" validate:"required"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options" validate:"min=1"`
	CorrectOption int      `json:"correctOption" validate:"gte=0"`
}

// PublicQuestion strips the answer key before a question is sent to a learner.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// Public returns the learner-facing view of q.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Prompt: q.Prompt, Options: q.Options}
}

// TestDefinition is a catalog entry: a timed question set within a course.
type TestDefinition struct {
	ID              string     `json:"id" validate:"required"`
	CourseID        string     `json:"courseId"`
	Title           string     `json:"title"`
	DurationSeconds int        `json:"durationSeconds" validate:"gte=0"`
	Marks           int        `json:"marks" validate:"gte=0"`
	Questions       []Question `json:"questions" validate:"dive"`
}

// TestSummary is a catalog row with the learner's completion flag.
type TestSummary struct {
	ID              string `json:"id"`
	CourseID        string `json:"courseId"`
	Title           string `json:"title"`
	Questions       int    `json:"questions"`
	Marks           int    `json:"marks"`
	DurationSeconds int    `json:"durationSeconds"`
	Completed       bool   `json:"completed"`
}

// Phase is the state of a test session.
type Phase string

const (
	PhaseCreated   Phase = "created"
	PhaseRunning   Phase = "running"
	PhaseSubmitted Phase = "submitted"
)

// Result is the final score of an attempt.
type Result struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// Percentage returns the rounded score percentage; an empty test scores 0.
func (r Result) Percentage() int {
	if r.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(r.Score) / float64(r.Total) * 100))
}

// Wrong counts incorrect and unattempted questions alike.
func (r Result) Wrong() int {
	return r.Total - r.Score
}

// Passed reports whether the percentage reaches passMark.
func (r Result) Passed(passMark int) bool {
	return r.Percentage() >= passMark
}

// SessionSnapshot is a point-in-time view of a running or finished attempt.
type SessionSnapshot struct {
	AttemptID        string  `json:"attemptId"`
	TestID           string  `json:"testId"`
	Phase            Phase   `json:"phase"`
	RemainingSeconds int     `json:"remainingSeconds"`
	Remaining        string  `json:"remaining"`
	Answered         int     `json:"answered"`
	Total            int     `json:"total"`
	TimedOut         bool    `json:"timedOut"`
	Result           *Result `json:"result,omitempty"`
}

// Report is the result view for a completed test.
type Report struct {
	TestID      string    `json:"testId"`
	Title       string    `json:"title"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Percentage  int       `json:"percentage"`
	Wrong       int       `json:"wrong"`
	Passed      bool      `json:"passed"`
	CompletedAt time.Time `json:"completedAt"`
}

// FormatRemaining renders seconds as MM:SS; negative values clamp to zero.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

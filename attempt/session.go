package attempt

import (
	"context"
	"sync"
	"time"

	"testhub/analytics"
	"testhub/models"
)

// State of a single attempt session.
type State int

const (
	StateActive State = iota
	StateFinalizing
	StateCompleted
	StateErrored // finalization failed; Submit may be retried
	StateClosed  // abandoned without submitting
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Result of a finalized attempt.
type Result struct {
	Score       int `json:"score"`
	TotalPoints int `json:"total_points"`
	Percentage  int `json:"percentage"`
}

// Session is one student's live run through a test. All mutable state is
// guarded by mu; the countdown goroutine is the only background activity
// and stops on every exit path.
type Session struct {
	Token string

	mu        sync.Mutex
	state     State
	test      models.Test
	questions []models.Question
	attempt   models.TestAttempt
	answers   map[uint]uint // questionID -> selected optionID
	current   int           // zero-based current-question index
	remaining int           // seconds left on the countdown

	stop     chan struct{}
	stopOnce sync.Once

	finalizeDone chan struct{} // closed when an in-flight finalization ends
	result       *Result
	lastErr      error

	store  Store
	nowFn  func() time.Time
	logf   func(format string, v ...interface{})
	onDone func() // fired once, after a successful finalization
}

// SetAnswer records (or overwrites) the selection for a question. Input is
// only accepted while the session is active.
func (s *Session) SetAnswer(questionID, optionID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrSessionClosed
	}
	s.answers[questionID] = optionID
	return nil
}

// Prev moves the current-question pointer back, clamped at the first question.
func (s *Session) Prev() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current > 0 {
		s.current--
	}
	return s.current
}

// Next moves the current-question pointer forward, clamped at the last question.
func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < len(s.questions)-1 {
		s.current++
	}
	return s.current
}

func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TimeLeft reports the remaining countdown in seconds.
func (s *Session) TimeLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Answers returns a copy of the captured selections.
func (s *Session) Answers() map[uint]uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]uint, len(s.answers))
	for q, o := range s.answers {
		out[q] = o
	}
	return out
}

func (s *Session) Test() models.Test { return s.test }

func (s *Session) Questions() []models.Question { return s.questions }

func (s *Session) Attempt() models.TestAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Result returns the finalized result, or nil while the attempt is open.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Submit finalizes the attempt: scores the captured answers and persists
// attempt completion plus answer rows. Safe to call concurrently with the
// countdown expiry; only one finalization runs, the other caller gets the
// same result. After a persistence failure Submit may be called again.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	return s.finalize(ctx, false)
}

// Close cancels the countdown and rejects further input without submitting.
// It reports whether the session was still open; completed sessions are left
// untouched.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	closed := false
	if s.state == StateActive || s.state == StateErrored {
		s.state = StateClosed
		closed = true
	}
	s.stopCountdown()
	return closed
}

func (s *Session) stopCountdown() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// countdown ticks once per interval while the session is active and
// triggers automatic finalization when the clock runs out.
func (s *Session) countdown(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state != StateActive {
				s.mu.Unlock()
				return
			}
			s.remaining--
			expired := s.remaining <= 0
			s.mu.Unlock()
			if expired {
				if _, err := s.finalize(context.Background(), true); err != nil {
					s.logf("auto-submit failed for attempt %d: %v", s.attempt.ID, err)
				}
				return
			}
		}
	}
}

func (s *Session) finalize(ctx context.Context, auto bool) (*Result, error) {
	s.mu.Lock()
	switch s.state {
	case StateCompleted:
		// Double-finalize (timeout racing a manual submit) is a no-op.
		r := s.result
		s.mu.Unlock()
		return r, nil
	case StateFinalizing:
		// Another trigger holds the finalize claim; wait it out and report
		// whatever it produced.
		done := s.finalizeDone
		s.mu.Unlock()
		<-done
		s.mu.Lock()
		r, err := s.result, s.lastErr
		s.mu.Unlock()
		if r != nil {
			return r, nil
		}
		return nil, err
	case StateClosed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}

	// Active or Errored (retry): claim the finalization.
	retry := s.state == StateErrored
	s.state = StateFinalizing
	s.finalizeDone = make(chan struct{})
	s.stopCountdown()
	selected := make(map[uint]uint, len(s.answers))
	for q, o := range s.answers {
		selected[q] = o
	}
	s.mu.Unlock()

	result, err := s.persist(ctx, selected, retry)

	s.mu.Lock()
	if err != nil {
		s.state = StateErrored
		s.lastErr = err
	} else {
		s.state = StateCompleted
		s.result = result
		s.lastErr = nil
	}
	close(s.finalizeDone)
	s.mu.Unlock()

	if err == nil {
		if auto {
			s.logf("attempt %d auto-submitted on timeout with score %d", s.attempt.ID, result.Score)
		}
		// Only the claim holder reaches this point, and a completed session
		// never re-enters finalization, so the hook fires at most once.
		if s.onDone != nil {
			s.onDone()
		}
	}
	return result, err
}

// persist writes attempt completion and the answer rows. On a retry it
// re-checks what already landed so a partial earlier failure never produces
// a duplicate completion or duplicate answer rows.
func (s *Session) persist(ctx context.Context, selected map[uint]uint, retry bool) (*Result, error) {
	score, rows := scoreAnswers(s.questions, selected, s.attempt.ID)
	completedAt := s.nowFn()

	alreadyCompleted := false
	if retry {
		stored, err := s.store.GetAttempt(ctx, s.attempt.ID)
		if err != nil {
			return nil, &PersistenceError{Op: "finalization re-check", Err: err}
		}
		if stored.CompletedAt != nil {
			alreadyCompleted = true
			completedAt = *stored.CompletedAt
			if stored.Score != nil {
				score = *stored.Score
			}
		}
	}

	if !alreadyCompleted {
		if err := s.store.CompleteAttempt(ctx, s.attempt.ID, completedAt, score); err != nil {
			return nil, &PersistenceError{Op: "attempt completion", Err: err}
		}
	}

	existing, err := s.store.CountAnswers(ctx, s.attempt.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "answer re-check", Err: err}
	}
	if existing == 0 {
		if err := s.store.InsertAnswers(ctx, rows); err != nil {
			return nil, &PersistenceError{Op: "answer insert", Err: err}
		}
	}

	s.mu.Lock()
	s.attempt.CompletedAt = &completedAt
	s.attempt.Score = &score
	s.mu.Unlock()

	total := analytics.TotalPoints(s.questions)
	return &Result{Score: score, TotalPoints: total, Percentage: analytics.Percent(score, total)}, nil
}

package attempt

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"testhub/models"
)

// Engine drives attempt sessions: eligibility, creation, countdown and
// finalization. One Engine serves all students; sessions are independent
// and looked up by an opaque token.
type Engine struct {
	catalog  Catalog
	store    Store
	profiles Profiles
	logger   *log.Logger

	now    func() time.Time
	tick   time.Duration // countdown tick, one second outside of tests
	retain time.Duration // how long finished sessions stay readable

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewEngine(catalog Catalog, store Store, profiles Profiles, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		catalog:  catalog,
		store:    store,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
		tick:     time.Second,
		retain:   5 * time.Minute,
		sessions: make(map[string]*Session),
	}
}

// Start runs the eligibility check and, if it passes, creates the attempt
// record and returns a live session with the countdown already ticking.
// The countdown begins only after the attempt row exists, so no setup time
// is charged to the student.
func (e *Engine) Start(ctx context.Context, testID, studentID uint) (*Session, error) {
	test, err := e.catalog.GetPublishedTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	completed, err := e.store.ListCompletedAttempts(ctx, testID, studentID)
	if err != nil {
		return nil, &PersistenceError{Op: "eligibility check", Err: err}
	}
	if len(completed) > 0 && !test.AllowUnlimitedAttempts {
		return nil, ErrAlreadyAttempted
	}

	questions, err := e.catalog.GetQuestionsWithOptions(ctx, testID)
	if err != nil {
		return nil, err
	}

	name, roll, err := e.profiles.GetProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrProfileIncomplete
	}

	a := models.TestAttempt{
		TestID:      testID,
		StudentID:   studentID,
		StudentName: name,
		StudentRoll: roll,
		StartedAt:   e.now(),
	}
	if err := e.store.CreateAttempt(ctx, &a); err != nil {
		return nil, &PersistenceError{Op: "attempt creation", Err: err}
	}

	s := &Session{
		Token:     uuid.NewString(),
		state:     StateActive,
		test:      *test,
		questions: questions,
		attempt:   a,
		answers:   make(map[uint]uint),
		remaining: test.DurationMinutes * 60,
		stop:      make(chan struct{}),
		store:     e.store,
		nowFn:     e.now,
		logf:      e.logger.Printf,
	}

	// Finished sessions stay readable for a while (the client fetches the
	// result through the same token), then get evicted so the registry does
	// not grow with every completed attempt.
	s.onDone = func() {
		time.AfterFunc(e.retain, func() { e.evict(s.Token) })
	}

	e.mu.Lock()
	e.sessions[s.Token] = s
	e.mu.Unlock()

	go s.countdown(e.tick)

	e.logger.Printf("attempt %d started: test %d, student %d, %ds on the clock",
		a.ID, testID, studentID, s.remaining)
	return s, nil
}

// Session looks up a live session by token.
func (e *Engine) Session(token string) (*Session, error) {
	e.mu.RLock()
	s, ok := e.sessions[token]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close abandons a session: the countdown is cancelled and the unfinished
// attempt record is discarded so the student may start over. The session
// leaves the registry only once the discard lands; on a store failure the
// handle stays resolvable and Close may be retried.
func (e *Engine) Close(ctx context.Context, token string) error {
	e.mu.RLock()
	s, ok := e.sessions[token]
	e.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Close()
	if s.State() == StateClosed {
		if err := e.store.DiscardAttempt(ctx, s.Attempt().ID); err != nil {
			return &PersistenceError{Op: "attempt discard", Err: err}
		}
	}

	e.evict(token)
	return nil
}

func (e *Engine) evict(token string) {
	e.mu.Lock()
	delete(e.sessions, token)
	e.mu.Unlock()
}

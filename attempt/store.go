package attempt

import (
	"context"
	"testhub/models"
	"time"
)

// Catalog is the read-only view of authored tests the engine consumes.
type Catalog interface {
	// GetPublishedTest returns ErrTestNotFound for missing or unpublished tests.
	GetPublishedTest(ctx context.Context, testID uint) (*models.Test, error)
	// GetQuestionsWithOptions returns the test's questions in creation order
	// with their options preloaded. Order must be stable: the session's
	// current-question index is positional.
	GetQuestionsWithOptions(ctx context.Context, testID uint) ([]models.Question, error)
}

// Store persists attempts and answers.
type Store interface {
	CreateAttempt(ctx context.Context, a *models.TestAttempt) error
	ListCompletedAttempts(ctx context.Context, testID, studentID uint) ([]models.TestAttempt, error)
	// CompleteAttempt sets completed_at and score exactly once.
	CompleteAttempt(ctx context.Context, attemptID uint, completedAt time.Time, score int) error
	InsertAnswers(ctx context.Context, answers []models.Answer) error
	// CountAnswers tells a finalization retry whether answer rows already landed.
	CountAnswers(ctx context.Context, attemptID uint) (int64, error)
	GetAttempt(ctx context.Context, attemptID uint) (*models.TestAttempt, error)
	ListAllCompletedAttempts(ctx context.Context, testID uint) ([]models.TestAttempt, error)
	// DiscardAttempt drops an abandoned in-progress attempt. Completed
	// attempts are never discarded.
	DiscardAttempt(ctx context.Context, attemptID uint) error
}

// Profiles yields the student record-keeping fields copied onto an attempt.
type Profiles interface {
	GetProfile(ctx context.Context, userID uint) (name, roll string, err error)
}

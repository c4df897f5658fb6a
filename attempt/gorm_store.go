package attempt

import (
	"context"
	"errors"
	"testhub/models"
	"time"

	"gorm.io/gorm"
)

// GormStore backs Catalog, Store and Profiles with the shared GORM handle.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (g *GormStore) GetPublishedTest(ctx context.Context, testID uint) (*models.Test, error) {
	var test models.Test
	err := g.DB.WithContext(ctx).
		Where("id = ? AND is_published = ?", testID, true).
		First(&test).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, &PersistenceError{Op: "test lookup", Err: err}
	}
	return &test, nil
}

func (g *GormStore) GetQuestionsWithOptions(ctx context.Context, testID uint) ([]models.Question, error) {
	var questions []models.Question
	err := g.DB.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("options.id ASC") }).
		Where("test_id = ?", testID).
		Order("position ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, &PersistenceError{Op: "question fetch", Err: err}
	}
	return questions, nil
}

func (g *GormStore) CreateAttempt(ctx context.Context, a *models.TestAttempt) error {
	return g.DB.WithContext(ctx).Create(a).Error
}

func (g *GormStore) ListCompletedAttempts(ctx context.Context, testID, studentID uint) ([]models.TestAttempt, error) {
	var attempts []models.TestAttempt
	err := g.DB.WithContext(ctx).
		Where("test_id = ? AND student_id = ? AND completed_at IS NOT NULL", testID, studentID).
		Find(&attempts).Error
	return attempts, err
}

func (g *GormStore) CompleteAttempt(ctx context.Context, attemptID uint, completedAt time.Time, score int) error {
	return g.DB.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Where("id = ? AND completed_at IS NULL", attemptID).
		Updates(map[string]interface{}{
			"completed_at": completedAt,
			"score":        score,
		}).Error
}

func (g *GormStore) InsertAnswers(ctx context.Context, answers []models.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	return g.DB.WithContext(ctx).Create(&answers).Error
}

func (g *GormStore) CountAnswers(ctx context.Context, attemptID uint) (int64, error) {
	var count int64
	err := g.DB.WithContext(ctx).
		Model(&models.Answer{}).
		Where("test_attempt_id = ?", attemptID).
		Count(&count).Error
	return count, err
}

func (g *GormStore) GetAttempt(ctx context.Context, attemptID uint) (*models.TestAttempt, error) {
	var a models.TestAttempt
	if err := g.DB.WithContext(ctx).First(&a, attemptID).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (g *GormStore) ListAllCompletedAttempts(ctx context.Context, testID uint) ([]models.TestAttempt, error) {
	var attempts []models.TestAttempt
	err := g.DB.WithContext(ctx).
		Where("test_id = ? AND completed_at IS NOT NULL", testID).
		Order("completed_at DESC").
		Find(&attempts).Error
	return attempts, err
}

func (g *GormStore) DiscardAttempt(ctx context.Context, attemptID uint) error {
	return g.DB.WithContext(ctx).
		Where("id = ? AND completed_at IS NULL", attemptID).
		Delete(&models.TestAttempt{}).Error
}

func (g *GormStore) GetProfile(ctx context.Context, userID uint) (string, string, error) {
	var user models.User
	if err := g.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrProfileIncomplete
		}
		return "", "", &PersistenceError{Op: "profile fetch", Err: err}
	}
	return user.Name, user.RollNumber, nil
}

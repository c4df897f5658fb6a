package models

import (
	"time"

	"gorm.io/gorm"
)

// TestAttempt is one student's timed run through a test. CompletedAt stays
// nil while the attempt is in progress; Score is set exactly once, at
// finalization, and the row is never mutated afterwards.
type TestAttempt struct {
	gorm.Model
	TestID      uint `gorm:"index;not null"`
	StudentID   uint `gorm:"index;not null"`
	StudentName string
	StudentRoll string
	StartedAt   time.Time `gorm:"not null"`
	CompletedAt *time.Time
	Score       *int
}

type Answer struct {
	gorm.Model
	TestAttemptID    uint `gorm:"index;not null"`
	QuestionID       uint `gorm:"not null"`
	SelectedOptionID uint `gorm:"not null"`
	IsCorrect        bool `gorm:"not null"`
}

package models

import "gorm.io/gorm"

type Test struct {
	gorm.Model
	Title                  string `gorm:"not null"`
	Description            string
	DurationMinutes        int  `gorm:"not null;default:30"`
	IsPublished            bool `gorm:"default:false"`
	AllowUnlimitedAttempts bool `gorm:"default:false"`
	CreatedBy              uint `gorm:"index"`
	Questions              []Question
}

type Question struct {
	gorm.Model
	TestID      uint `gorm:"index;not null"`
	Text        string
	Explanation string
	Points      int `gorm:"not null;default:1"`
	Position    int `gorm:"not null"` // creation order, drives the question index
	Options     []Option
}

type Option struct {
	gorm.Model
	QuestionID uint `gorm:"index;not null"`
	Text       string
	IsCorrect  bool `gorm:"not null;default:false"`
}

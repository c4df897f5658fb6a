package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"testhub/models"
)

func TestTotalPoints(t *testing.T) {
	questions := []models.Question{
		{Points: 1},
		{Points: 2},
		{Points: 5},
	}
	assert.Equal(t, 8, TotalPoints(questions))
	assert.Equal(t, 0, TotalPoints(nil))
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name        string
		score       int
		totalPoints int
		want        int
	}{
		{"full marks", 3, 3, 100},
		{"one of three rounds down", 1, 3, 33},
		{"two of three rounds up", 2, 3, 67},
		{"half", 1, 2, 50},
		{"zero score", 0, 5, 0},
		{"zero total points", 3, 0, 0},
		{"negative total points", 3, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(tt.score, tt.totalPoints))
		})
	}
}

func TestPassed(t *testing.T) {
	tests := []struct {
		name        string
		score       int
		totalPoints int
		want        bool
	}{
		{"exactly at threshold", 4, 10, true},
		{"just below threshold", 3, 10, false},
		{"above threshold", 5, 10, true},
		{"zero-point test cannot be passed", 0, 0, false},
		{"zero-point test with a score", 3, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Passed(tt.score, tt.totalPoints))
		})
	}
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(10, nil))
	assert.Equal(t, Summary{}, Summarize(0, []int{}))
}

func TestSummarize(t *testing.T) {
	// 10-point test, threshold at 4: scores 2 and 3 fail, 5 and 10 pass.
	got := Summarize(10, []int{5, 2, 10, 3})

	assert.Equal(t, 4, got.TotalAttempts)
	assert.Equal(t, 5, got.AverageScore) // (5+2+10+3)/4
	assert.Equal(t, 50, got.PassRate)
	assert.Equal(t, 10, got.HighestScore)
	assert.Equal(t, 2, got.LowestScore)
}

func TestSummarizeRoundsAverage(t *testing.T) {
	got := Summarize(10, []int{1, 2})
	assert.Equal(t, 2, got.AverageScore) // 1.5 rounds up

	got = Summarize(10, []int{1, 1, 2})
	assert.Equal(t, 1, got.AverageScore) // 1.33 rounds down
}

func TestSummarizeSingleAttempt(t *testing.T) {
	got := Summarize(3, []int{2})

	assert.Equal(t, 1, got.TotalAttempts)
	assert.Equal(t, 2, got.AverageScore)
	assert.Equal(t, 100, got.PassRate)
	assert.Equal(t, 2, got.HighestScore)
	assert.Equal(t, 2, got.LowestScore)
}

func TestScoresSkipsIncompleteRows(t *testing.T) {
	now := time.Now()
	five, seven := 5, 7

	attempts := []models.TestAttempt{
		{CompletedAt: &now, Score: &five},
		{CompletedAt: nil, Score: &seven},  // still in progress
		{CompletedAt: &now, Score: nil},    // completed but never scored
		{CompletedAt: &now, Score: &seven}, // completed and scored
	}

	assert.Equal(t, []int{5, 7}, Scores(attempts))
	assert.Empty(t, Scores(nil))
}

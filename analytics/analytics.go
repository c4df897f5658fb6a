// Package analytics derives summary statistics over completed test
// attempts. It only reads; every function here is pure.
package analytics

import (
	"math"

	"testhub/models"
)

// PassThreshold is the fraction of total points a score needs to count as
// a pass. 40% is the canonical value, matching the analytics view of the
// original platform.
const PassThreshold = 0.4

type Summary struct {
	TotalAttempts int `json:"total_attempts"`
	AverageScore  int `json:"average_score"`
	PassRate      int `json:"pass_rate"`
	HighestScore  int `json:"highest_score"`
	LowestScore   int `json:"lowest_score"`
}

// TotalPoints sums a test's question points. The value is never stored, so
// every consumer (scoring, analytics, history) computes it through here.
func TotalPoints(questions []models.Question) int {
	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return total
}

// Percent converts a raw score to a rounded percentage, guarding the
// zero-points case.
func Percent(score, totalPoints int) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(totalPoints) * 100))
}

// Passed reports whether a raw score clears the pass threshold. A test
// without points cannot be passed, matching Percent's zero-points guard.
func Passed(score, totalPoints int) bool {
	if totalPoints <= 0 {
		return false
	}
	return float64(score) >= PassThreshold*float64(totalPoints)
}

// Summarize aggregates completed-attempt scores for one test. An empty
// score list yields an all-zero summary, never NaN.
func Summarize(totalPoints int, scores []int) Summary {
	if len(scores) == 0 {
		return Summary{}
	}

	sum := 0
	highest := scores[0]
	lowest := scores[0]
	passed := 0
	for _, s := range scores {
		sum += s
		if s > highest {
			highest = s
		}
		if s < lowest {
			lowest = s
		}
		if Passed(s, totalPoints) {
			passed++
		}
	}

	return Summary{
		TotalAttempts: len(scores),
		AverageScore:  int(math.Round(float64(sum) / float64(len(scores)))),
		PassRate:      int(math.Round(float64(passed) / float64(len(scores)) * 100)),
		HighestScore:  highest,
		LowestScore:   lowest,
	}
}

// Scores extracts the raw scores from completed attempts, skipping any row
// that has no score recorded.
func Scores(attempts []models.TestAttempt) []int {
	scores := make([]int, 0, len(attempts))
	for _, a := range attempts {
		if a.CompletedAt == nil || a.Score == nil {
			continue
		}
		scores = append(scores, *a.Score)
	}
	return scores
}

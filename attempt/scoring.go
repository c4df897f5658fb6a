package attempt

import "testhub/models"

// scoreAnswers computes the raw score and the answer rows to persist.
// Correctness is re-resolved from the option set at save time rather than
// cached at capture time. Unanswered questions and selections that match
// none of the question's options contribute 0.
func scoreAnswers(questions []models.Question, selected map[uint]uint, attemptID uint) (int, []models.Answer) {
	score := 0
	rows := make([]models.Answer, 0, len(selected))
	for _, q := range questions {
		optionID, answered := selected[q.ID]
		if !answered {
			continue
		}
		correct := false
		for _, o := range q.Options {
			if o.ID == optionID {
				correct = o.IsCorrect
				break
			}
		}
		if correct {
			score += q.Points
		}
		rows = append(rows, models.Answer{
			TestAttemptID:    attemptID,
			QuestionID:       q.ID,
			SelectedOptionID: optionID,
			IsCorrect:        correct,
		})
	}
	return score, rows
}

package controllers

import (
	"errors"
	"strconv"
	"testhub/analytics"
	"testhub/attempt"
	"testhub/config"
	"testhub/models"
	"testhub/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AttemptsController is the HTTP face of the attempt engine plus the
// student's read-only views (available tests, history).
type AttemptsController struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Engine *attempt.Engine
}

func NewAttemptsController(db *gorm.DB, cfg *config.Config, engine *attempt.Engine) *AttemptsController {
	return &AttemptsController{DB: db, Cfg: cfg, Engine: engine}
}

// GetAvailableTests lists published tests the student may still take:
// everything not yet attempted, plus tests allowing unlimited attempts.
func (ac *AttemptsController) GetAvailableTests(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ac.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var attemptedIDs []uint
	if err := ac.DB.Model(&models.TestAttempt{}).
		Where("student_id = ? AND completed_at IS NOT NULL", userID).
		Distinct().
		Pluck("test_id", &attemptedIDs).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	attempted := make(map[uint]bool, len(attemptedIDs))
	for _, id := range attemptedIDs {
		attempted[id] = true
	}

	var tests []models.Test
	if err := ac.DB.Where("is_published = ?", true).
		Order("created_at DESC").
		Find(&tests).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	var result []fiber.Map
	for _, test := range tests {
		if attempted[test.ID] && !test.AllowUnlimitedAttempts {
			continue
		}
		var questionCount int64
		ac.DB.Model(&models.Question{}).Where("test_id = ?", test.ID).Count(&questionCount)

		result = append(result, fiber.Map{
			"id":                       test.ID,
			"title":                    test.Title,
			"description":              test.Description,
			"duration_minutes":         test.DurationMinutes,
			"allow_unlimited_attempts": test.AllowUnlimitedAttempts,
			"questions":                questionCount,
		})
	}

	return utils.Success(c, fiber.StatusOK, result)
}

// GetHistory lists the student's completed attempts with the same
// percentage computation used everywhere else.
func (ac *AttemptsController) GetHistory(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ac.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var attempts []models.TestAttempt
	if err := ac.DB.Where("student_id = ? AND completed_at IS NOT NULL", userID).
		Order("completed_at DESC").
		Find(&attempts).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	var result []fiber.Map
	for _, a := range attempts {
		var test models.Test
		if err := ac.DB.Preload("Questions").First(&test, a.TestID).Error; err != nil {
			continue
		}

		total := analytics.TotalPoints(test.Questions)
		score := 0
		if a.Score != nil {
			score = *a.Score
		}

		result = append(result, fiber.Map{
			"attempt_id":   a.ID,
			"test_id":      test.ID,
			"title":        test.Title,
			"score":        score,
			"total_points": total,
			"percentage":   analytics.Percent(score, total),
			"passed":       analytics.Passed(score, total),
			"started_at":   a.StartedAt,
			"completed_at": a.CompletedAt,
		})
	}

	return utils.Success(c, fiber.StatusOK, result)
}

func (ac *AttemptsController) StartAttempt(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ac.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	session, err := ac.Engine.Start(c.UserContext(), uint(testID), userID)
	if err != nil {
		return ac.engineError(c, err)
	}

	// Options go out without the is_correct flag; the answer key stays
	// server-side.
	var questions []fiber.Map
	for _, q := range session.Questions() {
		var options []fiber.Map
		for _, o := range q.Options {
			options = append(options, fiber.Map{
				"id":   o.ID,
				"text": o.Text,
			})
		}
		questions = append(questions, fiber.Map{
			"id":      q.ID,
			"text":    q.Text,
			"points":  q.Points,
			"options": options,
		})
	}

	test := session.Test()
	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"token":        session.Token,
		"test_id":      test.ID,
		"title":        test.Title,
		"description":  test.Description,
		"time_left":    session.TimeLeft(),
		"total_points": analytics.TotalPoints(session.Questions()),
		"questions":    questions,
	})
}

// session resolves the token parameter to a session owned by the caller.
func (ac *AttemptsController) session(c *fiber.Ctx) (*attempt.Session, error) {
	userID, err := utils.ExtractUserIDFromToken(c, ac.Cfg)
	if err != nil {
		return nil, utils.Unauthorized(c, "Unauthorized")
	}

	s, err := ac.Engine.Session(c.Params("token"))
	if err != nil {
		return nil, utils.NotFound(c, "Attempt session not found")
	}
	if s.Attempt().StudentID != userID {
		return nil, utils.Forbidden(c, "This attempt belongs to another student")
	}
	return s, nil
}

func (ac *AttemptsController) GetAttemptState(c *fiber.Ctx) error {
	s, ferr := ac.session(c)
	if s == nil {
		return ferr
	}

	resp := fiber.Map{
		"state":            s.State().String(),
		"current_question": s.Current(),
		"time_left":        s.TimeLeft(),
		"answers":          s.Answers(),
	}
	if r := s.Result(); r != nil {
		resp["result"] = r
	}
	return utils.Success(c, fiber.StatusOK, resp)
}

func (ac *AttemptsController) SaveAnswer(c *fiber.Ctx) error {
	s, ferr := ac.session(c)
	if s == nil {
		return ferr
	}

	var input struct {
		QuestionID uint `json:"question_id"`
		OptionID   uint `json:"option_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.QuestionID == 0 || input.OptionID == 0 {
		return utils.BadRequest(c, "question_id and option_id are required")
	}

	if err := s.SetAnswer(input.QuestionID, input.OptionID); err != nil {
		return ac.engineError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"answers": s.Answers(),
	})
}

func (ac *AttemptsController) PrevQuestion(c *fiber.Ctx) error {
	s, ferr := ac.session(c)
	if s == nil {
		return ferr
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"current_question": s.Prev(),
	})
}

func (ac *AttemptsController) NextQuestion(c *fiber.Ctx) error {
	s, ferr := ac.session(c)
	if s == nil {
		return ferr
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"current_question": s.Next(),
	})
}

func (ac *AttemptsController) SubmitAttempt(c *fiber.Ctx) error {
	s, ferr := ac.session(c)
	if s == nil {
		return ferr
	}

	result, err := s.Submit(c.UserContext())
	if err != nil {
		return ac.engineError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, result)
}

func (ac *AttemptsController) AbandonAttempt(c *fiber.Ctx) error {
	s, ferr := ac.session(c)
	if s == nil {
		return ferr
	}

	if err := ac.Engine.Close(c.UserContext(), s.Token); err != nil {
		return ac.engineError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message": "Attempt abandoned",
	})
}

// engineError maps the engine's typed failures onto HTTP responses so the
// client can branch on kind.
func (ac *AttemptsController) engineError(c *fiber.Ctx, err error) error {
	var perr *attempt.PersistenceError
	switch {
	case errors.Is(err, attempt.ErrTestNotFound):
		return utils.NotFound(c, "Test not found or not available")
	case errors.Is(err, attempt.ErrAlreadyAttempted):
		return utils.Forbidden(c, "You have already attempted this test")
	case errors.Is(err, attempt.ErrProfileIncomplete):
		return utils.BadRequest(c, "Complete your profile before taking a test")
	case errors.Is(err, attempt.ErrSessionNotFound):
		return utils.NotFound(c, "Attempt session not found")
	case errors.Is(err, attempt.ErrSessionClosed):
		return utils.Forbidden(c, "This attempt is no longer active")
	case errors.As(err, &perr):
		// The session keeps its answers; the client may retry the submit.
		return utils.Error(c, fiber.StatusInternalServerError, err, fiber.Map{"retryable": true})
	default:
		return utils.InternalServerError(c, "Unexpected error")
	}
}

package controllers

import (
	"errors"
	"strconv"
	"testhub/config"
	"testhub/models"
	"testhub/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TestsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewTestsController(db *gorm.DB, cfg *config.Config) *TestsController {
	return &TestsController{DB: db, Cfg: cfg}
}

type OptionInput struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionInput struct {
	Text        string        `json:"text" validate:"required"`
	Explanation string        `json:"explanation"`
	Points      int           `json:"points" validate:"required,min=1"`
	Options     []OptionInput `json:"options" validate:"required,min=2,dive"`
}

type CreateTestInput struct {
	Title                  string          `json:"title" validate:"required"`
	Description            string          `json:"description"`
	DurationMinutes        int             `json:"duration_minutes" validate:"required,min=1"`
	AllowUnlimitedAttempts bool            `json:"allow_unlimited_attempts"`
	IsPublished            bool            `json:"is_published"`
	Questions              []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// hasCorrectOption enforces that a question is answerable: at least one of
// its options must be marked correct.
func hasCorrectOption(q QuestionInput) bool {
	for _, o := range q.Options {
		if o.IsCorrect {
			return true
		}
	}
	return false
}

func (tc *TestsController) CreateTest(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var input CreateTestInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	if err := validate.Struct(input); err != nil {
		return utils.ValidationError(c, err)
	}
	for i, q := range input.Questions {
		if !hasCorrectOption(q) {
			return utils.BadRequest(c, "Question "+strconv.Itoa(i+1)+" has no correct option")
		}
	}

	test := models.Test{
		Title:                  input.Title,
		Description:            input.Description,
		DurationMinutes:        input.DurationMinutes,
		AllowUnlimitedAttempts: input.AllowUnlimitedAttempts,
		IsPublished:            input.IsPublished,
		CreatedBy:              userID,
	}
	for i, q := range input.Questions {
		question := models.Question{
			Text:        q.Text,
			Explanation: q.Explanation,
			Points:      q.Points,
			Position:    i + 1,
		}
		for _, o := range q.Options {
			question.Options = append(question.Options, models.Option{
				Text:      o.Text,
				IsCorrect: o.IsCorrect,
			})
		}
		test.Questions = append(test.Questions, question)
	}

	if err := tc.DB.Create(&test).Error; err != nil {
		return utils.InternalServerError(c, "Could not create test")
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"message": "Test created",
		"test_id": test.ID,
	})
}

func (tc *TestsController) GetMyTests(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var tests []models.Test
	if err := tc.DB.Where("created_by = ?", userID).
		Order("created_at DESC").
		Find(&tests).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	var result []fiber.Map
	for _, test := range tests {
		var attemptCount int64
		tc.DB.Model(&models.TestAttempt{}).
			Where("test_id = ? AND completed_at IS NOT NULL", test.ID).
			Count(&attemptCount)

		result = append(result, fiber.Map{
			"id":                       test.ID,
			"title":                    test.Title,
			"description":              test.Description,
			"duration_minutes":         test.DurationMinutes,
			"is_published":             test.IsPublished,
			"allow_unlimited_attempts": test.AllowUnlimitedAttempts,
			"attempts":                 attemptCount,
			"created_at":               test.CreatedAt,
		})
	}

	return utils.Success(c, fiber.StatusOK, result)
}

// getOwnTest loads a test and verifies the caller authored it.
func (tc *TestsController) getOwnTest(c *fiber.Ctx, preloadQuestions bool) (*models.Test, error) {
	userID, err := utils.ExtractUserIDFromToken(c, tc.Cfg)
	if err != nil {
		return nil, utils.Unauthorized(c, "Unauthorized")
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return nil, utils.BadRequest(c, "Invalid test ID")
	}

	query := tc.DB
	if preloadQuestions {
		query = query.Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC, questions.id ASC")
		}).Preload("Questions.Options")
	}

	var test models.Test
	if err := query.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound(c, "Test not found")
		}
		return nil, utils.InternalServerError(c, "Could not query database")
	}

	if test.CreatedBy != userID {
		return nil, utils.Forbidden(c, "You don't have permission to manage this test")
	}

	return &test, nil
}

func (tc *TestsController) GetTest(c *fiber.Ctx) error {
	test, ferr := tc.getOwnTest(c, true)
	if test == nil {
		return ferr
	}
	return utils.Success(c, fiber.StatusOK, test)
}

func (tc *TestsController) UpdateTest(c *fiber.Ctx) error {
	test, ferr := tc.getOwnTest(c, false)
	if test == nil {
		return ferr
	}

	var input struct {
		Title                  *string `json:"title"`
		Description            *string `json:"description"`
		DurationMinutes        *int    `json:"duration_minutes"`
		AllowUnlimitedAttempts *bool   `json:"allow_unlimited_attempts"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	if input.Title != nil && *input.Title != "" {
		test.Title = *input.Title
	}
	if input.Description != nil {
		test.Description = *input.Description
	}
	if input.DurationMinutes != nil {
		if *input.DurationMinutes < 1 {
			return utils.BadRequest(c, "Duration must be at least one minute")
		}
		test.DurationMinutes = *input.DurationMinutes
	}
	if input.AllowUnlimitedAttempts != nil {
		test.AllowUnlimitedAttempts = *input.AllowUnlimitedAttempts
	}

	if err := tc.DB.Save(test).Error; err != nil {
		return utils.InternalServerError(c, "Could not update test")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message": "Test updated",
		"test":    test,
	})
}

func (tc *TestsController) SetPublished(c *fiber.Ctx) error {
	test, ferr := tc.getOwnTest(c, false)
	if test == nil {
		return ferr
	}

	var input struct {
		IsPublished bool `json:"is_published"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	test.IsPublished = input.IsPublished
	if err := tc.DB.Save(test).Error; err != nil {
		return utils.InternalServerError(c, "Could not update test")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message":      "Test updated",
		"is_published": test.IsPublished,
	})
}

func (tc *TestsController) DeleteTest(c *fiber.Ctx) error {
	test, ferr := tc.getOwnTest(c, false)
	if test == nil {
		return ferr
	}

	err := tc.DB.Transaction(func(tx *gorm.DB) error {
		var questionIDs []uint
		if err := tx.Model(&models.Question{}).
			Where("test_id = ?", test.ID).
			Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&models.Option{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("test_id = ?", test.ID).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(test).Error
	})
	if err != nil {
		return utils.InternalServerError(c, "Could not delete test")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message": "Test deleted",
	})
}

func (tc *TestsController) AddQuestion(c *fiber.Ctx) error {
	test, ferr := tc.getOwnTest(c, false)
	if test == nil {
		return ferr
	}

	var input QuestionInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(input); err != nil {
		return utils.ValidationError(c, err)
	}
	if !hasCorrectOption(input) {
		return utils.BadRequest(c, "Question has no correct option")
	}

	// New questions go to the end of the positional order
	var questionCount int64
	tc.DB.Model(&models.Question{}).Where("test_id = ?", test.ID).Count(&questionCount)

	question := models.Question{
		TestID:      test.ID,
		Text:        input.Text,
		Explanation: input.Explanation,
		Points:      input.Points,
		Position:    int(questionCount) + 1,
	}
	for _, o := range input.Options {
		question.Options = append(question.Options, models.Option{
			Text:      o.Text,
			IsCorrect: o.IsCorrect,
		})
	}

	if err := tc.DB.Create(&question).Error; err != nil {
		return utils.InternalServerError(c, "Could not create question")
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"message":  "Question added",
		"question": question,
	})
}

func (tc *TestsController) UpdateQuestion(c *fiber.Ctx) error {
	test, ferr := tc.getOwnTest(c, false)
	if test == nil {
		return ferr
	}

	questionID, err := strconv.Atoi(c.Params("questionId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid question ID")
	}

	var question models.Question
	if err := tc.DB.Where("id = ? AND test_id = ?", questionID, test.ID).First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Question not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	var input QuestionInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(input); err != nil {
		return utils.ValidationError(c, err)
	}
	if !hasCorrectOption(input) {
		return utils.BadRequest(c, "Question has no correct option")
	}

	question.Text = input.Text
	question.Explanation = input.Explanation
	question.Points = input.Points

	// Replace the option set wholesale; partial option edits are not worth
	// the reconciliation headache.
	err = tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", question.ID).Delete(&models.Option{}).Error; err != nil {
			return err
		}
		for _, o := range input.Options {
			if err := tx.Create(&models.Option{
				QuestionID: question.ID,
				Text:       o.Text,
				IsCorrect:  o.IsCorrect,
			}).Error; err != nil {
				return err
			}
		}
		return tx.Save(&question).Error
	})
	if err != nil {
		return utils.InternalServerError(c, "Could not update question")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message":  "Question updated",
		"question": question,
	})
}

func (tc *TestsController) DeleteQuestion(c *fiber.Ctx) error {
	test, ferr := tc.getOwnTest(c, false)
	if test == nil {
		return ferr
	}

	questionID, err := strconv.Atoi(c.Params("questionId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid question ID")
	}

	var question models.Question
	if err := tc.DB.Where("id = ? AND test_id = ?", questionID, test.ID).First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Question not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	err = tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", question.ID).Delete(&models.Option{}).Error; err != nil {
			return err
		}
		return tx.Delete(&question).Error
	})
	if err != nil {
		return utils.InternalServerError(c, "Could not delete question")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message": "Question deleted",
	})
}

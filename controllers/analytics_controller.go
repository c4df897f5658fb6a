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

type AnalyticsController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Store *attempt.GormStore
}

func NewAnalyticsController(db *gorm.DB, cfg *config.Config, store *attempt.GormStore) *AnalyticsController {
	return &AnalyticsController{DB: db, Cfg: cfg, Store: store}
}

// GetTestAnalytics returns the aggregate summary and per-attempt rows for
// one of the caller's tests. Point totals and percentages come from the
// same helpers the engine scores with, so the two views never drift apart.
func (ac *AnalyticsController) GetTestAnalytics(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, ac.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	var test models.Test
	if err := ac.DB.Preload("Questions").First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Test not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if test.CreatedBy != userID {
		return utils.Forbidden(c, "You don't have permission to view this analytics")
	}

	attempts, err := ac.Store.ListAllCompletedAttempts(c.UserContext(), test.ID)
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	totalPoints := analytics.TotalPoints(test.Questions)
	summary := analytics.Summarize(totalPoints, analytics.Scores(attempts))

	var rows []fiber.Map
	for _, a := range attempts {
		score := 0
		if a.Score != nil {
			score = *a.Score
		}
		rows = append(rows, fiber.Map{
			"attempt_id":   a.ID,
			"student_name": a.StudentName,
			"student_roll": a.StudentRoll,
			"score":        score,
			"percentage":   analytics.Percent(score, totalPoints),
			"passed":       analytics.Passed(score, totalPoints),
			"completed_at": a.CompletedAt,
		})
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"test_id":      test.ID,
		"title":        test.Title,
		"total_points": totalPoints,
		"summary":      summary,
		"attempts":     rows,
	})
}

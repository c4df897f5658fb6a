package routes

import (
	"log"
	"testhub/attempt"
	"testhub/config"
	"testhub/controllers"
	"testhub/middleware"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *log.Logger) {
	store := attempt.NewGormStore(db)
	engine := attempt.NewEngine(store, store, store, logger)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	teacherOnly := middleware.RequireRole(cfg, "teacher")
	studentOnly := middleware.RequireRole(cfg, "student")

	// User routes
	userController := controllers.NewUserController(db, cfg)
	app.Get("/api/users/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/users/profile", authMiddleware, userController.UpdateProfile)

	// Teacher routes: authoring and analytics
	testsController := controllers.NewTestsController(db, cfg)
	analyticsController := controllers.NewAnalyticsController(db, cfg, store)
	teacher := app.Group("/api/teacher/tests", authMiddleware, teacherOnly)
	teacher.Post("/", testsController.CreateTest)
	teacher.Get("/", testsController.GetMyTests)
	teacher.Get("/:id", testsController.GetTest)
	teacher.Put("/:id", testsController.UpdateTest)
	teacher.Put("/:id/publish", testsController.SetPublished)
	teacher.Delete("/:id", testsController.DeleteTest)
	teacher.Post("/:id/questions", testsController.AddQuestion)
	teacher.Put("/:id/questions/:questionId", testsController.UpdateQuestion)
	teacher.Delete("/:id/questions/:questionId", testsController.DeleteQuestion)
	teacher.Get("/:id/analytics", analyticsController.GetTestAnalytics)

	// Student routes: taking tests
	attemptsController := controllers.NewAttemptsController(db, cfg, engine)
	student := app.Group("/api/student", authMiddleware, studentOnly)
	student.Get("/tests", attemptsController.GetAvailableTests)
	student.Get("/history", attemptsController.GetHistory)
	student.Post("/tests/:id/attempts", attemptsController.StartAttempt)
	student.Get("/attempts/:token", attemptsController.GetAttemptState)
	student.Put("/attempts/:token/answer", attemptsController.SaveAnswer)
	student.Post("/attempts/:token/prev", attemptsController.PrevQuestion)
	student.Post("/attempts/:token/next", attemptsController.NextQuestion)
	student.Post("/attempts/:token/submit", attemptsController.SubmitAttempt)
	student.Delete("/attempts/:token", attemptsController.AbandonAttempt)
}

package utils

import (
	"fmt"
	"testhub/config"
	"testhub/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs the schema migration. Split out from InitDB so tests can run
// it against an in-memory database.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.LoginHistory{},
		&models.Test{},
		&models.Question{},
		&models.Option{},
		&models.TestAttempt{},
		&models.Answer{},
	)
	if err != nil {
		return err
	}

	// At most one in-progress attempt per student per test. The eligibility
	// pre-check in the attempt engine admits a narrow race when a student
	// opens two sessions at once; this index closes it at the store layer.
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_test_attempts_active
		ON test_attempts (test_id, student_id)
		WHERE completed_at IS NULL AND deleted_at IS NULL`).Error
}

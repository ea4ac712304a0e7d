package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/coursegate-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return ensureIndexes(db)
}

// ensureIndexes adds indexes that gorm tags cannot express.
func ensureIndexes(db *gorm.DB) error {
	stmts := []string{
		// One open submission per student and course.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_proof_one_pending ON payment_proof (student_id, course_id) WHERE status = 'pending'`,
	}
	if db.Dialector.Name() == "postgres" {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_payment_proof_pending_created ON payment_proof (created_at) WHERE status = 'pending'`,
			`CREATE INDEX IF NOT EXISTS idx_payment_proof_student_course ON payment_proof (student_id, course_id, created_at DESC)`,
		)
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}

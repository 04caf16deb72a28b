// database/migrate.go - Database Migration Runner
package database

import (
	"fmt"
	"log"

	"deckhub/models"

	"gorm.io/gorm"
)

// RunMigrations creates or updates every table and the supporting indexes.
func RunMigrations(db *gorm.DB) error {
	log.Println("🔄 Running database migrations...")

	if err := db.AutoMigrate(
		&models.User{},
		&models.Deck{},
		&models.DeckLike{},
		&models.GameLog{},
		&models.Badge{},
		&models.UserBadge{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return err
	}

	log.Println("✅ All migrations completed successfully")
	return nil
}

// createIndexes adds the composite indexes the achievement counts rely on.
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_game_logs_user_seed ON game_logs(user_id, is_seed)",
		"CREATE INDEX IF NOT EXISTS idx_game_logs_user_format ON game_logs(user_id, format)",
		"CREATE INDEX IF NOT EXISTS idx_game_logs_user_outcome ON game_logs(user_id, outcome)",
		"CREATE INDEX IF NOT EXISTS idx_decks_user_created ON decks(user_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_user_badges_user ON user_badges(user_id)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

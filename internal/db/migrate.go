package db

import (
	"fmt"

	"github.com/rmaia/agendabot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.ChatLink{},
		&models.Location{},
		&models.Appointment{},
		&models.Reminder{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops all tables and recreates them.
func Reset(db *gorm.DB) error {
	for _, m := range AllModels() {
		if err := db.Migrator().DropTable(m); err != nil {
			return fmt.Errorf("db: drop table %T: %w", m, err)
		}
	}
	return AutoMigrate(db)
}

// UpsertChatLink binds a chat identity to a user, updating the binding in
// place when the identity was already linked (possibly to another account).
func UpsertChatLink(db *gorm.DB, link models.ChatLink) error {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "username"}),
	}).Create(&link)
	if result.Error != nil {
		return fmt.Errorf("db: upsert chat link %s/%s: %w", link.Platform, link.ChatID, result.Error)
	}
	return nil
}

// LookupOwner resolves the owner account bound to a chat identity. Returns
// gorm.ErrRecordNotFound when the identity has never been linked.
func LookupOwner(db *gorm.DB, platform, chatID string) (string, error) {
	var link models.ChatLink
	if err := db.Where("platform = ? AND chat_id = ?", platform, chatID).First(&link).Error; err != nil {
		return "", err
	}
	return link.UserID, nil
}

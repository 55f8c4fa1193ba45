package models

import "time"

// User is a durable owner account. Appointments, locations and reminders
// all hang off a user; chat identities are bound to one via ChatLink.
type User struct {
	ID        string `gorm:"primaryKey;size:36"`
	Email     string `gorm:"size:256;not null;uniqueIndex"`
	Name      string `gorm:"size:128"`
	CreatedAt time.Time

	ChatLinks []ChatLink `gorm:"foreignKey:UserID"`
}

// ChatLink binds an external chat identity (platform + chat id) to a user.
// One chat identity maps to at most one user; re-linking updates in place.
type ChatLink struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Platform  string `gorm:"size:16;not null;uniqueIndex:idx_platform_chat"`
	ChatID    string `gorm:"size:128;not null;uniqueIndex:idx_platform_chat"`
	Username  string `gorm:"size:128"`
	UserID    string `gorm:"size:36;not null;index"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}

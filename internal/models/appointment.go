package models

import "time"

// Appointment statuses.
const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// Appointment priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Appointment is a scheduled calendar entry. EndTime equals StartTime when
// created from chat: duration is never inferred from free text.
type Appointment struct {
	ID         string    `gorm:"primaryKey;size:36"`
	UserID     string    `gorm:"size:36;not null;index"`
	Title      string    `gorm:"not null"`
	StartTime  time.Time `gorm:"not null;index"`
	EndTime    time.Time `gorm:"not null"`
	Status     string    `gorm:"size:16;default:scheduled;index"`
	Priority   string    `gorm:"size:8;default:medium"`
	LocationID *string   `gorm:"size:36"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	User     User      `gorm:"foreignKey:UserID"`
	Location *Location `gorm:"foreignKey:LocationID"`
}

// Location is a place an appointment happens at. Names are deduplicated
// case-insensitively per owner; two users can each have their own "Tatuapé".
type Location struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:36;not null;index"`
	Name      string `gorm:"size:128;not null"`
	Type      string `gorm:"size:16;default:other"`
	CreatedAt time.Time
}

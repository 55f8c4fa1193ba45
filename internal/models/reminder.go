package models

import "time"

// Reminder statuses. A reminder transitions pending → sent on delivery, or
// pending → failed once its retry budget is exhausted.
const (
	ReminderPending = "pending"
	ReminderSent    = "sent"
	ReminderFailed  = "failed"
)

// Reminder is a one-shot notification scheduled ahead of an appointment.
// Created only when the reminder time is still in the future; a missed
// window simply produces no reminder.
type Reminder struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	UserID        string    `gorm:"size:36;not null;index"`
	AppointmentID string    `gorm:"size:36;not null;index"`
	ReminderTime  time.Time `gorm:"not null;index"`
	Channel       string    `gorm:"size:16;not null"`
	Status        string    `gorm:"size:16;default:pending;index"`
	Message       string    `gorm:"type:text"`
	Attempts      int       `gorm:"default:0"`
	SentAt        *time.Time
	CreatedAt     time.Time

	Appointment Appointment `gorm:"foreignKey:AppointmentID"`
}

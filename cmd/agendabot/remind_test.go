package main

import (
	"strings"
	"testing"
	"time"

	"github.com/rmaia/agendabot/internal/config"
	"github.com/rmaia/agendabot/internal/db"
	"github.com/rmaia/agendabot/internal/models"
	"gorm.io/gorm"
)

// openConfigDB opens the sqlite database referenced by a test config.
func openConfigDB(t *testing.T, cfgPath string) *gorm.DB {
	t.Helper()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return gormDB
}

func seedDueReminder(t *testing.T, gormDB *gorm.DB) {
	t.Helper()
	user := models.User{ID: "user-1", Email: "renata@example.com", Name: "Renata"}
	if err := gormDB.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	appt := models.Appointment{
		ID:        "appt-1",
		UserID:    user.ID,
		Title:     "Dentista",
		StartTime: time.Now().Add(30 * time.Minute),
		EndTime:   time.Now().Add(30 * time.Minute),
		Status:    models.AppointmentScheduled,
		Priority:  models.PriorityMedium,
	}
	if err := gormDB.Create(&appt).Error; err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	rem := models.Reminder{
		UserID:        user.ID,
		AppointmentID: appt.ID,
		ReminderTime:  time.Now().Add(-time.Minute),
		Channel:       "discord",
		Status:        models.ReminderPending,
		Message:       "Lembrete",
	}
	if err := gormDB.Create(&rem).Error; err != nil {
		t.Fatalf("create reminder: %v", err)
	}
}

func TestRemindRunCmd_DryRunNoDue(t *testing.T) {
	cfgPath := initTestDB(t)

	out, err := runCommand(t, "remind", "run", "--dry-run", "--config", cfgPath)
	if err != nil {
		t.Fatalf("remind run --dry-run failed: %v", err)
	}
	if !strings.Contains(out, "No due reminders.") {
		t.Errorf("expected 'No due reminders.', got: %s", out)
	}
}

func TestRemindRunCmd_DryRunListsDue(t *testing.T) {
	cfgPath := initTestDB(t)
	gormDB := openConfigDB(t, cfgPath)
	seedDueReminder(t, gormDB)

	out, err := runCommand(t, "remind", "run", "--dry-run", "--config", cfgPath)
	if err != nil {
		t.Fatalf("remind run --dry-run failed: %v", err)
	}
	if !strings.Contains(out, "1 due reminder(s):") {
		t.Errorf("expected due count, got: %s", out)
	}
	if !strings.Contains(out, `"Dentista"`) {
		t.Errorf("expected appointment title, got: %s", out)
	}

	// Dry run must not touch reminder status.
	var rem models.Reminder
	if err := gormDB.First(&rem).Error; err != nil {
		t.Fatalf("load reminder: %v", err)
	}
	if rem.Status != models.ReminderPending {
		t.Errorf("status = %q, want pending after dry run", rem.Status)
	}
}

func TestRemindRunCmd_NoPlatformConfigured(t *testing.T) {
	cfgPath := initTestDB(t)

	_, err := runCommand(t, "remind", "run", "--config", cfgPath)
	if err == nil {
		t.Fatal("expected error without a configured platform")
	}
	if !strings.Contains(err.Error(), "unsupported platform") {
		t.Errorf("error = %q, want to contain 'unsupported platform'", err.Error())
	}
}

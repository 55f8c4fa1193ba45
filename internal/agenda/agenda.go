// Package agenda coordinates appointment creation: identity lookup, text
// extraction, location resolution and reminder scheduling.
package agenda

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rmaia/agendabot/internal/db"
	"github.com/rmaia/agendabot/internal/extract"
	"github.com/rmaia/agendabot/internal/models"
	"gorm.io/gorm"
)

// Caller-discriminated failures. Both are user-facing conditions: the
// router turns them into actionable chat replies, never raw errors.
var (
	// ErrNotLinked means the chat identity has no bound owner account.
	ErrNotLinked = errors.New("agenda: chat identity not linked to an account")
	// ErrNoSchedule means no actionable date/time could be extracted.
	ErrNoSchedule = errors.New("agenda: no actionable date in text")
)

// Service is the appointment orchestrator.
type Service struct {
	db        *gorm.DB
	extractor *extract.Extractor
	lead      time.Duration
	now       func() time.Time
}

// Opts holds parameters for creating a Service.
type Opts struct {
	DB        *gorm.DB
	Extractor *extract.Extractor
	Lead      time.Duration    // reminder lead before start; defaults to 1h
	Now       func() time.Time // defaults to time.Now; injectable for tests
}

// New creates a Service.
func New(opts Opts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("agenda: db is required")
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("agenda: extractor is required")
	}
	lead := opts.Lead
	if lead <= 0 {
		lead = time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:        opts.DB,
		extractor: opts.Extractor,
		lead:      lead,
		now:       now,
	}, nil
}

// CreateAppointment builds an appointment from free-form text for the owner
// bound to the given chat identity. Steps run fail-fast in order: owner
// lookup, extraction, location resolve-or-create (best effort), appointment
// persist, reminder persist if the reminder window is still open.
//
// End time equals start time: duration is never inferred from text.
func (s *Service) CreateAppointment(platform, chatID, title, rawText string) (*models.Appointment, error) {
	userID, err := db.LookupOwner(s.db, platform, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotLinked
		}
		return nil, fmt.Errorf("agenda: lookup owner: %w", err)
	}

	res := s.extractor.Extract(rawText)
	if res.Start == nil {
		return nil, ErrNoSchedule
	}

	// Location is best effort: a failure here is logged and the
	// appointment proceeds without one.
	locationID := s.resolveLocation(userID, res.Location)

	appt := models.Appointment{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		StartTime:  *res.Start,
		EndTime:    *res.Start,
		Status:     models.AppointmentScheduled,
		Priority:   models.PriorityMedium,
		LocationID: locationID,
	}
	if err := s.db.Create(&appt).Error; err != nil {
		return nil, fmt.Errorf("agenda: create appointment: %w", err)
	}

	if err := s.scheduleReminder(&appt, platform); err != nil {
		return nil, err
	}

	if err := s.db.Preload("Location").First(&appt, "id = ?", appt.ID).Error; err != nil {
		return nil, fmt.Errorf("agenda: reload appointment: %w", err)
	}
	return &appt, nil
}

// resolveLocation looks up the named location for the owner, creating it on
// first mention. Lookup is case-insensitive on the exact name; no fuzzy
// matching. Returns nil when name is empty or persistence fails.
func (s *Service) resolveLocation(userID, name string) *string {
	if name == "" {
		return nil
	}

	var existing models.Location
	err := s.db.Where("user_id = ? AND LOWER(name) = LOWER(?)", userID, name).First(&existing).Error
	if err == nil {
		return &existing.ID
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("agenda: location lookup %q: %v", name, err)
		return nil
	}

	loc := models.Location{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   name,
		Type:   "other",
	}
	if err := s.db.Create(&loc).Error; err != nil {
		log.Printf("agenda: create location %q: %v", name, err)
		return nil
	}
	return &loc.ID
}

// scheduleReminder persists a pending reminder at start minus lead, but
// only when that moment is still in the future. An appointment too close
// to its start simply gets no reminder.
func (s *Service) scheduleReminder(appt *models.Appointment, channel string) error {
	reminderTime := appt.StartTime.Add(-s.lead)
	if !reminderTime.After(s.now()) {
		return nil
	}

	rem := models.Reminder{
		UserID:        appt.UserID,
		AppointmentID: appt.ID,
		ReminderTime:  reminderTime,
		Channel:       channel,
		Status:        models.ReminderPending,
		Message:       fmt.Sprintf("Lembrete: %s começa em %s.", appt.Title, leadText(s.lead)),
	}
	if err := s.db.Create(&rem).Error; err != nil {
		return fmt.Errorf("agenda: create reminder: %w", err)
	}
	return nil
}

// leadText renders the reminder lead in Portuguese.
func leadText(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hora"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d horas", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d minutos", int(d/time.Minute))
	}
}

// ListUpcoming returns the owner's next appointments within the coming
// seven days, soonest first, capped at ten.
func (s *Service) ListUpcoming(platform, chatID string) ([]models.Appointment, error) {
	userID, err := db.LookupOwner(s.db, platform, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotLinked
		}
		return nil, fmt.Errorf("agenda: lookup owner: %w", err)
	}

	now := s.now()
	var appts []models.Appointment
	err = s.db.Preload("Location").
		Where("user_id = ? AND start_time >= ? AND start_time <= ? AND status = ?",
			userID, now, now.AddDate(0, 0, 7), models.AppointmentScheduled).
		Order("start_time ASC").
		Limit(10).
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("agenda: list upcoming: %w", err)
	}
	return appts, nil
}

// ListForDay returns the owner's scheduled appointments within [dayStart,
// dayEnd), soonest first. Used by the daily digest.
func (s *Service) ListForDay(userID string, dayStart, dayEnd time.Time) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.db.Preload("Location").
		Where("user_id = ? AND start_time >= ? AND start_time < ? AND status = ?",
			userID, dayStart, dayEnd, models.AppointmentScheduled).
		Order("start_time ASC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("agenda: list for day: %w", err)
	}
	return appts, nil
}

// Package reminder delivers due appointment reminders through the chat
// transport. A single periodic task scans pending reminders and sends each
// at most once; per-item failures never abort the rest of a cycle.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rmaia/agendabot/internal/models"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Sender delivers a message to a chat channel. The bot adapter satisfies
// this; tests inject mocks.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// Dispatcher finds due reminders and sends them.
type Dispatcher struct {
	db          *gorm.DB
	sender      Sender
	loc         *time.Location
	maxAttempts int
	now         func() time.Time

	// mu makes cycles single-flight: an overlapping cycle is skipped
	// instead of double-sending the same due reminders.
	mu sync.Mutex
}

// Opts holds parameters for creating a Dispatcher.
type Opts struct {
	DB          *gorm.DB
	Sender      Sender
	Location    *time.Location   // for localized start times; defaults to time.Local
	MaxAttempts int              // delivery attempts before marking failed; defaults to 5
	Now         func() time.Time // defaults to time.Now; injectable for tests
}

// New creates a Dispatcher.
func New(opts Opts) (*Dispatcher, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("reminder: db is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("reminder: sender is required")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		db:          opts.DB,
		sender:      opts.Sender,
		loc:         loc,
		maxAttempts: maxAttempts,
		now:         now,
	}, nil
}

// cronParser uses standard 5-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Run executes dispatch cycles on the given cron schedule until the context
// is cancelled. Errors inside a cycle are logged, never fatal.
func (d *Dispatcher) Run(ctx context.Context, cronExpr string) error {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("reminder: parse schedule %q: %w", cronExpr, err)
	}

	now := d.now()
	timer := time.NewTimer(sched.Next(now).Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			d.ProcessReminders(ctx)
			now = d.now()
			timer.Reset(sched.Next(now).Sub(now))
		}
	}
}

// ProcessReminders runs one dispatch cycle: select due pending reminders,
// resolve each owner's chat channel, send, and mark sent. Idempotent once a
// reminder reaches a terminal status. If another cycle is still in flight,
// this one is skipped.
func (d *Dispatcher) ProcessReminders(ctx context.Context) {
	if !d.mu.TryLock() {
		log.Printf("reminder: previous cycle still running, skipping")
		return
	}
	defer d.mu.Unlock()

	var due []models.Reminder
	err := d.db.Preload("Appointment").Preload("Appointment.Location").
		Where("status = ? AND reminder_time <= ?", models.ReminderPending, d.now()).
		Order("reminder_time ASC").
		Find(&due).Error
	if err != nil {
		log.Printf("reminder: query due reminders: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("reminder: %d due reminder(s)", len(due))
	for i := range due {
		if ctx.Err() != nil {
			return
		}
		if err := d.dispatchOne(ctx, &due[i]); err != nil {
			// Isolated per item: the rest of the cycle continues.
			log.Printf("reminder: dispatch %d: %v", due[i].ID, err)
		}
	}
}

// dispatchOne attempts delivery of a single reminder.
func (d *Dispatcher) dispatchOne(ctx context.Context, rem *models.Reminder) error {
	chatID, err := d.resolveChannel(rem)
	if err != nil {
		return d.recordFailure(rem, fmt.Errorf("resolve channel: %w", err))
	}

	if err := d.sender.Send(ctx, chatID, d.formatMessage(rem)); err != nil {
		return d.recordFailure(rem, fmt.Errorf("send: %w", err))
	}

	now := d.now()
	updates := map[string]interface{}{
		"status":   models.ReminderSent,
		"sent_at":  now,
		"attempts": rem.Attempts + 1,
	}
	if err := d.db.Model(&models.Reminder{}).Where("id = ?", rem.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// resolveChannel finds the chat identity to deliver to: first the link on
// the reminder's own channel platform, then any link the owner has.
func (d *Dispatcher) resolveChannel(rem *models.Reminder) (string, error) {
	var link models.ChatLink
	err := d.db.Where("user_id = ? AND platform = ?", rem.UserID, rem.Channel).First(&link).Error
	if err == nil {
		return link.ChatID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	// Secondary lookup: any platform the owner is linked on.
	err = d.db.Where("user_id = ?", rem.UserID).Order("id ASC").First(&link).Error
	if err != nil {
		return "", err
	}
	return link.ChatID, nil
}

// recordFailure bumps the attempt counter and, once the retry budget is
// spent, parks the reminder in the terminal failed status so it is not
// retried forever.
func (d *Dispatcher) recordFailure(rem *models.Reminder, cause error) error {
	attempts := rem.Attempts + 1
	updates := map[string]interface{}{"attempts": attempts}
	if attempts >= d.maxAttempts {
		updates["status"] = models.ReminderFailed
		log.Printf("reminder: %d failed permanently after %d attempts", rem.ID, attempts)
	}
	if err := d.db.Model(&models.Reminder{}).Where("id = ?", rem.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("record failure (%v): %w", cause, err)
	}
	return cause
}

// formatMessage renders the reminder for chat: title, localized start time
// and location when present.
func (d *Dispatcher) formatMessage(rem *models.Reminder) string {
	appt := rem.Appointment
	msg := "🔔 *Lembrete de Compromisso*\n\n"
	msg += fmt.Sprintf("📌 *%s*\n", appt.Title)
	msg += fmt.Sprintf("🕒 Hoje às %s\n", appt.StartTime.In(d.loc).Format("15:04"))
	if appt.Location != nil && appt.Location.Name != "" {
		msg += fmt.Sprintf("📍 %s\n", appt.Location.Name)
	}
	return msg
}

package dashboard

import (
	"fmt"
	"time"

	"github.com/rmaia/agendabot/internal/models"
	"gorm.io/gorm"
)

// AppointmentRow holds appointment data for display.
type AppointmentRow struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	When     string `json:"when"`
	UserName string `json:"user_name"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// UpcomingAppointments returns scheduled appointments for the next days,
// soonest first.
func UpcomingAppointments(db *gorm.DB, loc *time.Location, days, limit int) ([]AppointmentRow, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 50
	}
	now := time.Now()

	var appts []models.Appointment
	err := db.Preload("Location").
		Where("status = ? AND start_time >= ? AND start_time < ?",
			models.AppointmentScheduled, now, now.AddDate(0, 0, days)).
		Order("start_time ASC").
		Limit(limit).
		Find(&appts).Error
	if err != nil {
		return nil, err
	}

	// Resolve owner names in one pass.
	names := make(map[string]string)
	var users []models.User
	if err := db.Find(&users).Error; err == nil {
		for _, u := range users {
			names[u.ID] = u.Name
		}
	}

	rows := make([]AppointmentRow, len(appts))
	for i, a := range appts {
		row := AppointmentRow{
			ID:       a.ID,
			Title:    a.Title,
			When:     a.StartTime.In(loc).Format("02/01 15:04"),
			UserName: names[a.UserID],
			Status:   a.Status,
			Priority: a.Priority,
		}
		if a.Location != nil {
			row.Location = a.Location.Name
		}
		rows[i] = row
	}
	return rows, nil
}

// StatusSummary holds appointment counts by status.
type StatusSummary struct {
	Scheduled int64 `json:"scheduled"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Total     int64 `json:"total"`
}

// AppointmentSummary returns appointment counts grouped by status.
func AppointmentSummary(db *gorm.DB) (StatusSummary, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := db.Model(&models.Appointment{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return StatusSummary{}, err
	}

	var s StatusSummary
	for _, r := range rows {
		s.Total += r.Count
		switch r.Status {
		case models.AppointmentScheduled:
			s.Scheduled += r.Count
		case models.AppointmentCompleted:
			s.Completed += r.Count
		case models.AppointmentCancelled:
			s.Cancelled += r.Count
		}
	}
	return s, nil
}

// ReminderStats holds reminder counts by delivery status.
type ReminderStats struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

// ReminderSummary returns reminder counts grouped by status.
func ReminderSummary(db *gorm.DB) (ReminderStats, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := db.Model(&models.Reminder{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return ReminderStats{}, err
	}

	var s ReminderStats
	for _, r := range rows {
		switch r.Status {
		case models.ReminderPending:
			s.Pending += r.Count
		case models.ReminderSent:
			s.Sent += r.Count
		case models.ReminderFailed:
			s.Failed += r.Count
		}
	}
	return s, nil
}

// LocationRow holds location data with its appointment count.
type LocationRow struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Appointments int64  `json:"appointments"`
}

// LocationSummary returns all locations with the number of appointments
// pointing at each.
func LocationSummary(db *gorm.DB) ([]LocationRow, error) {
	var locs []models.Location
	if err := db.Order("name ASC").Find(&locs).Error; err != nil {
		return nil, err
	}

	rows := make([]LocationRow, len(locs))
	for i, l := range locs {
		var count int64
		db.Model(&models.Appointment{}).Where("location_id = ?", l.ID).Count(&count)
		rows[i] = LocationRow{
			ID:           l.ID,
			Name:         l.Name,
			Type:         l.Type,
			Appointments: count,
		}
	}
	return rows, nil
}

// DeliveryRow holds a dispatched reminder for display.
type DeliveryRow struct {
	ID          uint   `json:"id"`
	Appointment string `json:"appointment"`
	Channel     string `json:"channel"`
	Status      string `json:"status"`
	SentAgo     string `json:"sent_ago"`
}

// RecentDeliveries returns the most recently dispatched reminders (sent or
// failed), newest first.
func RecentDeliveries(db *gorm.DB, limit int) ([]DeliveryRow, error) {
	var rems []models.Reminder
	err := db.Preload("Appointment").
		Where("status <> ?", models.ReminderPending).
		Order("id DESC").
		Limit(limit).
		Find(&rems).Error
	if err != nil {
		return nil, err
	}

	rows := make([]DeliveryRow, len(rems))
	for i, r := range rems {
		sentAt := time.Time{}
		if r.SentAt != nil {
			sentAt = *r.SentAt
		}
		rows[i] = DeliveryRow{
			ID:          r.ID,
			Appointment: r.Appointment.Title,
			Channel:     r.Channel,
			Status:      r.Status,
			SentAgo:     TimeAgo(sentAt),
		}
	}
	return rows, nil
}

// TimeAgo formats a past timestamp as a short relative string.
func TimeAgo(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

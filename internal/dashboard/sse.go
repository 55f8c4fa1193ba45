package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rmaia/agendabot/internal/models"
	"gorm.io/gorm"
)

// reminderEvent holds data for a reminder-delivery SSE event.
type reminderEvent struct {
	ID            uint   `json:"id"`
	AppointmentID string `json:"appointment_id"`
	Channel       string `json:"channel"`
	Status        string `json:"status"`
	Pending       int64  `json:"pending"`
}

// handleSSE creates an SSE handler that polls for freshly dispatched
// reminders and streams them to the client.
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		// Send connected event.
		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// If no DB, just send connected and return — tests use nil DB.
		if db == nil {
			return
		}

		// Only alert on reminders dispatched after the stream opened.
		var lastSeenID uint
		var maxRem models.Reminder
		if err := db.Where("status != ?", models.ReminderPending).
			Order("id DESC").Limit(1).First(&maxRem).Error; err == nil {
			lastSeenID = maxRem.ID
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var dispatched []models.Reminder
				db.Where("status != ? AND id > ?", models.ReminderPending, lastSeenID).
					Order("id ASC").
					Find(&dispatched)

				if len(dispatched) == 0 {
					continue
				}
				lastSeenID = dispatched[len(dispatched)-1].ID

				var pending int64
				db.Model(&models.Reminder{}).
					Where("status = ?", models.ReminderPending).
					Count(&pending)

				latest := dispatched[len(dispatched)-1]
				writeSSE(c.Writer, "reminder", reminderEvent{
					ID:            latest.ID,
					AppointmentID: latest.AppointmentID,
					Channel:       latest.Channel,
					Status:        latest.Status,
					Pending:       pending,
				})
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}

package dashboard

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, loc *time.Location) {
	// Page.
	router.GET("/", handleIndex(db, loc))

	// JSON API.
	router.GET("/api/appointments", handleAppointments(db, loc))
	router.GET("/api/summary", handleSummary(db))
	router.GET("/api/reminders", handleReminders(db))
	router.GET("/api/locations", handleLocations(db))

	// SSE endpoint: live reminder deliveries.
	router.GET("/api/events", handleSSE(db))
}

func handleIndex(db *gorm.DB, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", indexData(db, loc))
	}
}

// indexData gathers everything the index template renders. Query failures
// degrade to empty sections rather than a broken page.
func indexData(db *gorm.DB, loc *time.Location) gin.H {
	data := gin.H{
		"Appointments": []AppointmentRow{},
		"Summary":      StatusSummary{},
		"Reminders":    ReminderStats{},
		"Locations":    []LocationRow{},
		"Deliveries":   []DeliveryRow{},
	}
	if db == nil {
		return data
	}

	if appts, err := UpcomingAppointments(db, loc, 7, 50); err == nil {
		data["Appointments"] = appts
	} else {
		log.Printf("dashboard: upcoming appointments: %v", err)
	}
	if s, err := AppointmentSummary(db); err == nil {
		data["Summary"] = s
	} else {
		log.Printf("dashboard: appointment summary: %v", err)
	}
	if r, err := ReminderSummary(db); err == nil {
		data["Reminders"] = r
	} else {
		log.Printf("dashboard: reminder summary: %v", err)
	}
	if locs, err := LocationSummary(db); err == nil {
		data["Locations"] = locs
	} else {
		log.Printf("dashboard: location summary: %v", err)
	}
	if dels, err := RecentDeliveries(db, 10); err == nil {
		data["Deliveries"] = dels
	} else {
		log.Printf("dashboard: recent deliveries: %v", err)
	}
	return data
}

func handleAppointments(db *gorm.DB, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := UpcomingAppointments(db, loc, 7, 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func handleSummary(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := AppointmentSummary(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func handleReminders(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := ReminderSummary(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func handleLocations(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := LocationSummary(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

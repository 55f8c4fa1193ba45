package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rmaia/agendabot/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.ChatLink{},
		&models.Location{},
		&models.Appointment{},
		&models.Reminder{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func seedDashboardData(t *testing.T, db *gorm.DB) {
	t.Helper()
	user := models.User{ID: "user-1", Email: "renata@example.com", Name: "Renata"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	loc := models.Location{ID: "loc-1", UserID: user.ID, Name: "São Caetano", Type: "other"}
	if err := db.Create(&loc).Error; err != nil {
		t.Fatalf("create location: %v", err)
	}

	tomorrow := time.Now().Add(24 * time.Hour)
	appts := []models.Appointment{
		{ID: "appt-1", UserID: user.ID, Title: "Dentista", StartTime: tomorrow, EndTime: tomorrow,
			Status: models.AppointmentScheduled, Priority: models.PriorityMedium, LocationID: &loc.ID},
		{ID: "appt-2", UserID: user.ID, Title: "Antiga", StartTime: time.Now().Add(-48 * time.Hour),
			EndTime: time.Now().Add(-48 * time.Hour), Status: models.AppointmentCompleted, Priority: models.PriorityMedium},
	}
	for i := range appts {
		if err := db.Create(&appts[i]).Error; err != nil {
			t.Fatalf("create appointment: %v", err)
		}
	}

	sentAt := time.Now().Add(-2 * time.Hour)
	rems := []models.Reminder{
		{UserID: user.ID, AppointmentID: "appt-1", ReminderTime: tomorrow.Add(-time.Hour),
			Channel: "discord", Status: models.ReminderPending, Message: "Lembrete"},
		{UserID: user.ID, AppointmentID: "appt-2", ReminderTime: time.Now().Add(-49 * time.Hour),
			Channel: "discord", Status: models.ReminderSent, Message: "Lembrete", SentAt: &sentAt},
	}
	for i := range rems {
		if err := db.Create(&rems[i]).Error; err != nil {
			t.Fatalf("create reminder: %v", err)
		}
	}
}

// --- Query tests ---

func TestUpcomingAppointments(t *testing.T) {
	db := openTestDB(t)
	seedDashboardData(t, db)

	rows, err := UpcomingAppointments(db, time.Local, 7, 50)
	if err != nil {
		t.Fatalf("upcoming appointments: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (only the scheduled future appointment)", len(rows))
	}
	row := rows[0]
	if row.Title != "Dentista" || row.UserName != "Renata" || row.Location != "São Caetano" {
		t.Errorf("row = %+v", row)
	}
}

func TestAppointmentSummary(t *testing.T) {
	db := openTestDB(t)
	seedDashboardData(t, db)

	s, err := AppointmentSummary(db)
	if err != nil {
		t.Fatalf("appointment summary: %v", err)
	}
	if s.Scheduled != 1 || s.Completed != 1 || s.Total != 2 {
		t.Errorf("summary = %+v", s)
	}
}

func TestReminderSummary(t *testing.T) {
	db := openTestDB(t)
	seedDashboardData(t, db)

	s, err := ReminderSummary(db)
	if err != nil {
		t.Fatalf("reminder summary: %v", err)
	}
	if s.Pending != 1 || s.Sent != 1 || s.Failed != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestLocationSummary(t *testing.T) {
	db := openTestDB(t)
	seedDashboardData(t, db)

	rows, err := LocationSummary(db)
	if err != nil {
		t.Fatalf("location summary: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Name != "São Caetano" || rows[0].Appointments != 1 {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestRecentDeliveries(t *testing.T) {
	db := openTestDB(t)
	seedDashboardData(t, db)

	rows, err := RecentDeliveries(db, 10)
	if err != nil {
		t.Fatalf("recent deliveries: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (pending reminders excluded)", len(rows))
	}
	row := rows[0]
	if row.Appointment != "Antiga" || row.Status != models.ReminderSent {
		t.Errorf("row = %+v", row)
	}
	if row.SentAgo != "2h ago" {
		t.Errorf("SentAgo = %q, want %q", row.SentAgo, "2h ago")
	}
}

func TestIndexData_NilDB(t *testing.T) {
	data := indexData(nil, time.Local)
	if data["Appointments"] == nil {
		t.Error("Appointments should not be nil")
	}
	if data["Locations"] == nil {
		t.Error("Locations should not be nil")
	}
	if data["Deliveries"] == nil {
		t.Error("Deliveries should not be nil")
	}
}

// --- Server tests ---

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
	if !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db is required")
	}
}

func TestEmbeddedTemplates(t *testing.T) {
	data, err := templatesFS.ReadFile("templates/index.html")
	if err != nil {
		t.Fatalf("index.html not embedded: %v", err)
	}
	if !strings.Contains(string(data), "Agendabot") {
		t.Error("index.html does not contain 'Agendabot'")
	}
}

// findFreePort finds an available port for testing.
func findFreePort() int {
	// Use a high port range unlikely to conflict.
	return 18080 + int(time.Now().UnixNano()%1000)
}

// startTestServer runs a dashboard server against db on the given port.
func startTestServer(ctx context.Context, db *gorm.DB, port int) error {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	tmpl, err := parseTemplates()
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)
	registerRoutes(router, db, time.Local)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func setupTestServer(t *testing.T) (string, func()) {
	t.Helper()
	db := openTestDB(t)
	seedDashboardData(t, db)

	port := findFreePort()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- startTestServer(ctx, db, port)
	}()

	baseURL := fmt.Sprintf("http://localhost:%d", port)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/api/summary")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	return baseURL, func() {
		cancel()
		<-errCh
	}
}

func TestIndex_Returns200(t *testing.T) {
	baseURL, cleanup := setupTestServer(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Dentista") {
		t.Error("index page missing seeded appointment")
	}
}

func TestAPIAppointments(t *testing.T) {
	baseURL, cleanup := setupTestServer(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/appointments")
	if err != nil {
		t.Fatalf("GET /api/appointments: %v", err)
	}
	defer resp.Body.Close()

	var rows []AppointmentRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0].Title != "Dentista" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestAPISummary(t *testing.T) {
	baseURL, cleanup := setupTestServer(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/summary")
	if err != nil {
		t.Fatalf("GET /api/summary: %v", err)
	}
	defer resp.Body.Close()

	var s StatusSummary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Total != 2 {
		t.Errorf("summary = %+v", s)
	}
}

func TestAPIReminders(t *testing.T) {
	baseURL, cleanup := setupTestServer(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/reminders")
	if err != nil {
		t.Fatalf("GET /api/reminders: %v", err)
	}
	defer resp.Body.Close()

	var s ReminderStats
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Pending != 1 || s.Sent != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestUnknownRoute_Returns404(t *testing.T) {
	baseURL, cleanup := setupTestServer(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		name string
		when time.Time
		want string
	}{
		{"zero", time.Time{}, "—"},
		{"minutes", time.Now().Add(-5 * time.Minute), "5m ago"},
		{"hours", time.Now().Add(-3 * time.Hour), "3h ago"},
		{"days", time.Now().Add(-48 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeAgo(tt.when); got != tt.want {
				t.Errorf("TimeAgo = %q, want %q", got, tt.want)
			}
		})
	}
}

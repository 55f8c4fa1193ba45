package bot

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rmaia/agendabot/internal/agenda"
	"github.com/rmaia/agendabot/internal/config"
	"github.com/rmaia/agendabot/internal/extract"
	"github.com/rmaia/agendabot/internal/models"
)

func testCfg() *config.Config {
	cfg, err := config.Parse([]byte("bot:\n  platform: discord\n  discord:\n    bot_token: t\n"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// ---------------------------------------------------------------------------
// NewDaemon validation tests
// ---------------------------------------------------------------------------

func TestNewDaemon_NilDB(t *testing.T) {
	_, err := NewDaemon(DaemonOpts{
		Config:  testCfg(),
		Adapter: NewMockAdapter(),
	})
	if err == nil {
		t.Fatal("expected error for nil DB")
	}
	if !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %q", err)
	}
}

func TestNewDaemon_NilConfig(t *testing.T) {
	_, err := NewDaemon(DaemonOpts{
		DB:      openBotTestDB(t),
		Adapter: NewMockAdapter(),
	})
	if err == nil {
		t.Fatal("expected error for nil config")
	}
	if !strings.Contains(err.Error(), "config is required") {
		t.Errorf("error = %q", err)
	}
}

func TestNewDaemon_NilAdapter(t *testing.T) {
	_, err := NewDaemon(DaemonOpts{
		DB:     openBotTestDB(t),
		Config: testCfg(),
	})
	if err == nil {
		t.Fatal("expected error for nil adapter")
	}
	if !strings.Contains(err.Error(), "adapter is required") {
		t.Errorf("error = %q", err)
	}
}

func TestNewDaemon_Success(t *testing.T) {
	d, err := NewDaemon(DaemonOpts{
		DB:      openBotTestDB(t),
		Config:  testCfg(),
		Adapter: NewMockAdapter(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil {
		t.Fatal("expected non-nil daemon")
	}
}

// ---------------------------------------------------------------------------
// Run lifecycle tests
// ---------------------------------------------------------------------------

func TestRun_ConnectsAndShutdown(t *testing.T) {
	mock := NewMockAdapter()
	var buf bytes.Buffer

	d, err := NewDaemon(DaemonOpts{
		DB:      openBotTestDB(t),
		Config:  testCfg(),
		Adapter: mock,
		Out:     &buf,
	})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	waitFor(t, func() bool {
		return strings.Contains(buf.String(), "Agendabot online")
	}, 2*time.Second)

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}

	output := buf.String()
	if !strings.Contains(output, "Agendabot shutting down") {
		t.Errorf("missing shutdown message in output: %s", output)
	}
	if !strings.Contains(output, "Agendabot stopped") {
		t.Errorf("missing stopped message in output: %s", output)
	}
}

func TestRun_HandlesClosed(t *testing.T) {
	mock := NewMockAdapter()
	var buf bytes.Buffer

	d, err := NewDaemon(DaemonOpts{
		DB:      openBotTestDB(t),
		Config:  testCfg(),
		Adapter: mock,
		Out:     &buf,
	})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- d.Run(context.Background())
	}()

	waitFor(t, func() bool {
		return strings.Contains(buf.String(), "Agendabot online")
	}, 2*time.Second)

	// Close the adapter externally (simulates platform disconnect).
	mock.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}

	if !strings.Contains(buf.String(), "inbound channel closed") {
		t.Errorf("missing channel closed message in output: %s", buf.String())
	}
}

// ---------------------------------------------------------------------------
// Inbound routing tests
// ---------------------------------------------------------------------------

func TestRun_InboundRoutedToRouter(t *testing.T) {
	mock := NewMockAdapter()
	var buf bytes.Buffer

	d, err := NewDaemon(DaemonOpts{
		DB:      openBotTestDB(t),
		Config:  testCfg(),
		Adapter: mock,
		Out:     &buf,
	})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	waitFor(t, func() bool {
		return strings.Contains(buf.String(), "Agendabot online")
	}, 2*time.Second)

	initialCount := mock.SentCount()

	mock.SimulateInbound(InboundMessage{
		Platform:  "discord",
		ChannelID: "chat-1",
		UserName:  "renata",
		Text:      "/ajuda",
	})

	waitFor(t, func() bool {
		return mock.SentCount() > initialCount
	}, 2*time.Second)

	last, _ := mock.LastSent()
	if last.Text != msgHelp {
		t.Errorf("reply = %q, want help text", last.Text)
	}

	cancel()
	<-done
}

func TestRun_BotUserIDFiltering(t *testing.T) {
	mock := NewMockAdapter()
	mock.SetBotUserID("BOT123")
	var buf bytes.Buffer

	d, err := NewDaemon(DaemonOpts{
		DB:      openBotTestDB(t),
		Config:  testCfg(),
		Adapter: mock,
		Out:     &buf,
	})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	waitFor(t, func() bool {
		return strings.Contains(buf.String(), "Agendabot online")
	}, 2*time.Second)

	countBefore := mock.SentCount()

	// Message from the bot itself must be filtered.
	mock.SimulateInbound(InboundMessage{
		Platform:  "discord",
		ChannelID: "chat-1",
		UserID:    "BOT123",
		UserName:  "agendabot",
		Text:      "/ajuda",
	})

	time.Sleep(100 * time.Millisecond)

	if mock.SentCount() != countBefore {
		t.Errorf("expected no new messages (self-message should be filtered), got %d new",
			mock.SentCount()-countBefore)
	}

	cancel()
	<-done
}

// ---------------------------------------------------------------------------
// Digest tests
// ---------------------------------------------------------------------------

func TestFireDigest_SendsPerLinkedUser(t *testing.T) {
	db := openBotTestDB(t)
	user := seedLinkedUser(t, db, "renata@example.com", "discord", "chat-1")

	loc, _ := time.LoadLocation("America/Sao_Paulo")
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 23, 0, 0, 0, loc)
	appt := models.Appointment{
		ID:        "appt-1",
		UserID:    user.ID,
		Title:     "Consulta",
		StartTime: today,
		EndTime:   today,
		Status:    models.AppointmentScheduled,
		Priority:  models.PriorityMedium,
	}
	if err := db.Create(&appt).Error; err != nil {
		t.Fatalf("create appointment: %v", err)
	}

	mock := NewMockAdapter()
	ctx := context.Background()
	mock.Connect(ctx)

	cfg := testCfg()
	cfg.Timezone = "America/Sao_Paulo"

	d := &Daemon{db: db, cfg: cfg, adapter: mock, out: &bytes.Buffer{}}

	extractor := extract.New(extract.Opts{Location: loc})
	svc, err := agenda.New(agenda.Opts{DB: db, Extractor: extractor})
	if err != nil {
		t.Fatalf("new agenda service: %v", err)
	}

	d.fireDigest(ctx, svc)

	if mock.SentCount() != 1 {
		t.Fatalf("expected 1 digest, got %d", mock.SentCount())
	}
	last, _ := mock.LastSent()
	if last.ChannelID != "chat-1" {
		t.Errorf("digest channel = %q, want chat-1", last.ChannelID)
	}
	if !strings.Contains(last.Text, "Consulta") {
		t.Errorf("digest = %q", last.Text)
	}
}

func TestFireDigest_SkipsEmptyDay(t *testing.T) {
	db := openBotTestDB(t)
	seedLinkedUser(t, db, "renata@example.com", "discord", "chat-1")

	mock := NewMockAdapter()
	ctx := context.Background()
	mock.Connect(ctx)

	d := &Daemon{db: db, cfg: testCfg(), adapter: mock, out: &bytes.Buffer{}}

	loc, _ := time.LoadLocation("America/Sao_Paulo")
	extractor := extract.New(extract.Opts{Location: loc})
	svc, err := agenda.New(agenda.Opts{DB: db, Extractor: extractor})
	if err != nil {
		t.Fatalf("new agenda service: %v", err)
	}

	d.fireDigest(ctx, svc)

	if mock.SentCount() != 0 {
		t.Fatalf("expected no digest for an empty day, got %d", mock.SentCount())
	}
}

func TestRunDigestScheduler_Disabled(t *testing.T) {
	d := &Daemon{
		cfg:     testCfg(),
		adapter: NewMockAdapter(),
		out:     &bytes.Buffer{},
	}

	// Digest disabled by default — should return immediately.
	done := make(chan struct{})
	go func() {
		d.runDigestScheduler(context.Background(), nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runDigestScheduler should return immediately when disabled")
	}
}

// waitFor polls condition fn until it returns true or timeout expires.
func waitFor(t *testing.T, fn func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("waitFor timed out after %v", timeout)
}

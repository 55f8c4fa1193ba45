package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/rmaia/agendabot/internal/agenda"
	"github.com/rmaia/agendabot/internal/config"
	"github.com/rmaia/agendabot/internal/extract"
	"github.com/rmaia/agendabot/internal/intent"
	"github.com/rmaia/agendabot/internal/models"
	"github.com/rmaia/agendabot/internal/reminder"
	"github.com/rmaia/agendabot/internal/session"
	"gorm.io/gorm"
)

// Daemon is the main bot process. It connects to a chat platform via an
// Adapter, pumps inbound messages through the Router, and runs the reminder
// dispatch loop and the optional daily digest alongside.
type Daemon struct {
	db          *gorm.DB
	cfg         *config.Config
	adapter     Adapter
	transcriber Transcriber
	out         io.Writer
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	DB          *gorm.DB
	Config      *config.Config
	Adapter     Adapter
	Transcriber Transcriber // optional; enables voice notes
	Out         io.Writer   // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("bot: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("bot: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Transcriber == nil {
		fmt.Fprintf(out, "bot: no transcriber configured; voice notes disabled\n")
	}
	return &Daemon{
		db:          opts.DB,
		cfg:         opts.Config,
		adapter:     opts.Adapter,
		transcriber: opts.Transcriber,
		out:         out,
	}, nil
}

// adapterSender bridges the reminder dispatcher to the chat adapter.
type adapterSender struct {
	adapter Adapter
}

func (s adapterSender) Send(ctx context.Context, channelID, text string) error {
	return s.adapter.Send(ctx, OutboundMessage{ChannelID: channelID, Text: text})
}

// Run starts the bot daemon. It connects the adapter, builds all subsystems
// (Router, reminder Dispatcher, digest scheduler), and blocks until the
// context is cancelled. On shutdown it closes the adapter gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Agendabot connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("bot: connect: %w", err)
	}

	// Extract bot user ID if the adapter supports it.
	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	loc := d.cfg.Location()

	extractor := extract.New(extract.Opts{
		Location:     loc,
		YearRollover: d.cfg.YearRollover(),
		ExtraPlaces:  d.cfg.Extract.ExtraPlaces,
	})

	agendaSvc, err := agenda.New(agenda.Opts{
		DB:        d.db,
		Extractor: extractor,
		Lead:      d.cfg.ReminderLead(),
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("bot: build agenda service: %w", err)
	}

	sessions := session.NewMemoryStore(d.cfg.SessionTTL())

	router, err := NewRouter(RouterOpts{
		DB:          d.db,
		Sessions:    sessions,
		Intents:     intent.NewRuleResolver(),
		Agenda:      agendaSvc,
		Adapter:     d.adapter,
		Transcriber: d.transcriber,
		Location:    loc,
		BotUserID:   botUserID,
		Out:         d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("bot: build router: %w", err)
	}

	dispatcher, err := reminder.New(reminder.Opts{
		DB:          d.db,
		Sender:      adapterSender{adapter: d.adapter},
		Location:    loc,
		MaxAttempts: d.cfg.Reminders.MaxAttempts,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("bot: build dispatcher: %w", err)
	}

	// Start listening for inbound messages.
	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("bot: listen: %w", err)
	}

	// Reminder dispatch loop.
	go func() {
		if err := dispatcher.Run(ctx, d.cfg.Reminders.PollCron); err != nil {
			log.Printf("bot: reminder loop: %v", err)
		}
	}()

	// Daily digest scheduler.
	go d.runDigestScheduler(ctx, agendaSvc)

	fmt.Fprintf(d.out, "Agendabot online\n")

	// Main event loop: pump inbound messages until context is cancelled.
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Agendabot shutting down...\n")
			if err := d.adapter.Close(); err != nil {
				log.Printf("bot: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Agendabot stopped\n")
			return nil

		case msg, ok := <-inbound:
			if !ok {
				// Adapter closed the channel.
				fmt.Fprintf(d.out, "Agendabot inbound channel closed\n")
				return nil
			}
			router.Handle(ctx, msg)
		}
	}
}

// runDigestScheduler fires a morning agenda digest for every linked user on
// the configured cron. It returns immediately if the digest is disabled.
func (d *Daemon) runDigestScheduler(ctx context.Context, agendaSvc *agenda.Service) {
	digestCfg := d.cfg.Digest
	if !digestCfg.Enabled || digestCfg.Cron == "" {
		return
	}

	next := nextCronDuration(digestCfg.Cron)
	if next <= 0 {
		log.Printf("bot: digest cron %q is invalid; digest disabled", digestCfg.Cron)
		return
	}
	timer := time.NewTimer(next)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.fireDigest(ctx, agendaSvc)
			if next := nextCronDuration(digestCfg.Cron); next > 0 {
				timer.Reset(next)
			}
		}
	}
}

// fireDigest sends today's agenda to every user with a chat link on the
// active platform. Users with an empty day are skipped.
func (d *Daemon) fireDigest(ctx context.Context, agendaSvc *agenda.Service) {
	loc := d.cfg.Location()
	now := time.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	var links []models.ChatLink
	if err := d.db.Where("platform = ?", d.cfg.Bot.Platform).Find(&links).Error; err != nil {
		log.Printf("bot: digest: list chat links: %v", err)
		return
	}

	for _, link := range links {
		appts, err := agendaSvc.ListForDay(link.UserID, dayStart, dayEnd)
		if err != nil {
			log.Printf("bot: digest for %s: %v", link.UserID, err)
			continue
		}
		if len(appts) == 0 {
			continue
		}
		text := formatDigest(appts, loc)
		if err := d.adapter.Send(ctx, OutboundMessage{ChannelID: link.ChatID, Text: text}); err != nil {
			log.Printf("bot: send digest to %s: %v", link.ChatID, err)
		}
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rmaia/agendabot/internal/bot"
	"github.com/rmaia/agendabot/internal/config"
	"github.com/rmaia/agendabot/internal/db"
	"github.com/rmaia/agendabot/internal/models"
	"github.com/rmaia/agendabot/internal/reminder"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newRemindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Reminder dispatch commands",
	}

	cmd.AddCommand(newRemindRunCmd())
	return cmd
}

func newRemindRunCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reminder dispatch cycle",
		Long: `Selects due pending reminders, delivers each to its owner's linked chat,
and marks them sent. With --dry-run, prints what would be sent instead of
delivering; reminders stay pending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemindRun(cmd, configPath, dryRun)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agendabot.yaml", "path to Agendabot config file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print due reminders without delivering")
	return cmd
}

func runRemindRun(cmd *cobra.Command, configPath string, dryRun bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}

	if dryRun {
		return dryRunReminders(gormDB, cfg, out)
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Close()

	dispatcher, err := reminder.New(reminder.Opts{
		DB:          gormDB,
		Sender:      adapterChannelSender{adapter},
		Location:    cfg.Location(),
		MaxAttempts: cfg.Reminders.MaxAttempts,
	})
	if err != nil {
		return err
	}

	dispatcher.ProcessReminders(ctx)
	fmt.Fprintln(out, "Dispatch cycle complete.")
	return nil
}

// dryRunReminders lists due reminders without touching their status.
func dryRunReminders(gormDB *gorm.DB, cfg *config.Config, out io.Writer) error {
	var due []models.Reminder
	err := gormDB.Preload("Appointment").
		Where("status = ? AND reminder_time <= ?", models.ReminderPending, time.Now()).
		Order("reminder_time ASC").
		Find(&due).Error
	if err != nil {
		return fmt.Errorf("remind: query due reminders: %w", err)
	}

	if len(due) == 0 {
		fmt.Fprintln(out, "No due reminders.")
		return nil
	}

	loc := cfg.Location()
	fmt.Fprintf(out, "%d due reminder(s):\n", len(due))
	for _, rem := range due {
		when := rem.Appointment.StartTime.In(loc).Format("02/01 15:04")
		fmt.Fprintf(out, "  #%d %s — %q at %s (attempts: %d)\n",
			rem.ID, rem.Channel, rem.Appointment.Title, when, rem.Attempts)
	}
	return nil
}

// adapterChannelSender adapts a bot.Adapter to the reminder.Sender interface.
type adapterChannelSender struct {
	adapter bot.Adapter
}

func (a adapterChannelSender) Send(ctx context.Context, channelID, text string) error {
	return a.adapter.Send(ctx, bot.OutboundMessage{ChannelID: channelID, Text: text})
}

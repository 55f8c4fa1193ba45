package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rmaia/agendabot/internal/bot"
	discordadapter "github.com/rmaia/agendabot/internal/bot/discord"
	slackadapter "github.com/rmaia/agendabot/internal/bot/slack"
	"github.com/rmaia/agendabot/internal/config"
	"github.com/rmaia/agendabot/internal/db"
	"github.com/rmaia/agendabot/internal/transcribe"
	"github.com/spf13/cobra"
)

func newBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Manage the chat bot daemon",
	}

	cmd.AddCommand(newBotStartCmd())
	return cmd
}

func newBotStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Agendabot daemon",
		Long:  "Connects to the configured chat platform, listens for messages, and runs the reminder dispatch loop until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBotStart(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agendabot.yaml", "path to Agendabot config file")
	return cmd
}

func runBotStart(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	transcriber, err := createTranscriber(cfg)
	if err != nil {
		return err
	}

	daemon, err := bot.NewDaemon(bot.DaemonOpts{
		DB:          gormDB,
		Config:      cfg,
		Adapter:     adapter,
		Transcriber: transcriber,
		Out:         cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return daemon.Run(ctx)
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (bot.Adapter, error) {
	switch cfg.Bot.Platform {
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Bot.Discord.BotToken,
			ChannelID: cfg.Bot.Channel,
		})
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken:  cfg.Bot.Slack.AppToken,
			BotToken:  cfg.Bot.Slack.BotToken,
			ChannelID: cfg.Bot.Channel,
		})
	default:
		return nil, fmt.Errorf("bot: unsupported platform %q", cfg.Bot.Platform)
	}
}

// createTranscriber builds the voice-note transcriber, or nil when no
// OpenAI API key is configured.
func createTranscriber(cfg *config.Config) (bot.Transcriber, error) {
	if cfg.Transcription.OpenAIAPIKey == "" {
		return nil, nil
	}

	opts := transcribe.Opts{APIKey: cfg.Transcription.OpenAIAPIKey}
	// Slack serves voice-note files behind bot-token auth.
	if cfg.Bot.Platform == "slack" {
		opts.AuthHeader = "Bearer " + cfg.Bot.Slack.BotToken
	}

	return transcribe.New(opts)
}

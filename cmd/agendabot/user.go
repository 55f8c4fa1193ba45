package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rmaia/agendabot/internal/config"
	"github.com/rmaia/agendabot/internal/db"
	"github.com/rmaia/agendabot/internal/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User account management commands",
	}

	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserLinkCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "add <email> <name>",
		Short: "Create a user account",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(cmd, configPath, args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agendabot.yaml", "path to Agendabot config file")
	return cmd
}

func runUserAdd(cmd *cobra.Command, configPath, email, name string) error {
	out := cmd.OutOrStdout()

	gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	var existing models.User
	err = gormDB.Where("LOWER(email) = ?", email).First(&existing).Error
	if err == nil {
		return fmt.Errorf("user: %s already exists (%s)", email, existing.Name)
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("user: lookup %s: %w", email, err)
	}

	user := models.User{
		ID:    uuid.NewString(),
		Email: email,
		Name:  name,
	}
	if err := gormDB.Create(&user).Error; err != nil {
		return fmt.Errorf("user: create %s: %w", email, err)
	}

	fmt.Fprintf(out, "Created user %s <%s> (id: %s)\n", name, email, user.ID)
	return nil
}

func newUserLinkCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "link <email> <platform> <chat_id>",
		Short: "Bind a chat identity to a user account",
		Long:  "Links a platform chat id (Discord channel, Slack channel) to an existing user, so messages from that chat act on the user's agenda. Re-linking an identity moves it to the new user.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserLink(cmd, configPath, args[0], args[1], args[2])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agendabot.yaml", "path to Agendabot config file")
	return cmd
}

func runUserLink(cmd *cobra.Command, configPath, email, platform, chatID string) error {
	out := cmd.OutOrStdout()

	gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if err := gormDB.Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("user: no account with email %s — create one with 'agendabot user add'", email)
		}
		return fmt.Errorf("user: lookup %s: %w", email, err)
	}

	if err := db.UpsertChatLink(gormDB, models.ChatLink{
		Platform: platform,
		ChatID:   chatID,
		UserID:   user.ID,
	}); err != nil {
		return err
	}

	fmt.Fprintf(out, "Linked %s:%s to %s <%s>\n", platform, chatID, user.Name, user.Email)
	return nil
}

func newUserListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user accounts and their chat links",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agendabot.yaml", "path to Agendabot config file")
	return cmd
}

func runUserList(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	var users []models.User
	if err := gormDB.Preload("ChatLinks").Order("email ASC").Find(&users).Error; err != nil {
		return fmt.Errorf("user: list: %w", err)
	}

	if len(users) == 0 {
		fmt.Fprintln(out, "No users yet. Create one with 'agendabot user add <email> <name>'.")
		return nil
	}

	for _, u := range users {
		fmt.Fprintf(out, "%s <%s>\n", u.Name, u.Email)
		for _, link := range u.ChatLinks {
			fmt.Fprintf(out, "  %s:%s\n", link.Platform, link.ChatID)
		}
	}
	return nil
}

// connectFromConfig loads the config file and opens the database.
func connectFromConfig(configPath string) (*gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return db.Connect(cfg.Database)
}

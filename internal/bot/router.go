package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rmaia/agendabot/internal/agenda"
	"github.com/rmaia/agendabot/internal/db"
	"github.com/rmaia/agendabot/internal/intent"
	"github.com/rmaia/agendabot/internal/models"
	"github.com/rmaia/agendabot/internal/session"
	"gorm.io/gorm"
)

// cancelKeyword aborts a scheduling conversation from any state.
const cancelKeyword = "cancelar"

// Transcriber converts a voice-note audio URL to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// Router classifies inbound chat messages and drives the scheduling
// conversation: commands, session-state routing, intent resolution and the
// voice path.
type Router struct {
	db          *gorm.DB
	sessions    session.Store
	intents     intent.Resolver
	agenda      *agenda.Service
	adapter     Adapter
	transcriber Transcriber // optional; voice notes fail gracefully without it
	loc         *time.Location
	botUserID   string
	out         io.Writer
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	DB          *gorm.DB
	Sessions    session.Store
	Intents     intent.Resolver
	Agenda      *agenda.Service
	Adapter     Adapter
	Transcriber Transcriber    // optional
	Location    *time.Location // defaults to time.Local
	BotUserID   string         // bot's user ID for self-message filtering
	Out         io.Writer      // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("bot: router: db is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("bot: router: session store is required")
	}
	if opts.Intents == nil {
		return nil, fmt.Errorf("bot: router: intent resolver is required")
	}
	if opts.Agenda == nil {
		return nil, fmt.Errorf("bot: router: agenda service is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: router: adapter is required")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Router{
		db:          opts.DB,
		sessions:    opts.Sessions,
		intents:     opts.Intents,
		agenda:      opts.Agenda,
		adapter:     opts.Adapter,
		transcriber: opts.Transcriber,
		loc:         loc,
		botUserID:   opts.BotUserID,
		out:         out,
	}, nil
}

// Handle classifies and routes a single inbound message. Routing paths:
//  1. Bot self-message → ignore
//  2. Voice note → transcribe, then continue as text
//  3. Slash command → command handler
//  4. Session awaiting details → appointment creation
//  5. Cancellation keyword → clear session
//  6. Fresh utterance → intent resolver
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if r.isSelfMessage(msg) {
		return
	}

	text := strings.TrimSpace(msg.Text)
	fromVoice := false

	if msg.AudioURL != "" {
		transcribed, ok := r.transcribe(ctx, msg)
		if !ok {
			return
		}
		text = strings.TrimSpace(transcribed)
		fromVoice = true
	}
	if text == "" {
		return
	}

	fmt.Fprintf(r.out, "bot: router: recv [ch=%s user=%s voice=%t] %q\n",
		msg.ChannelID, msg.UserName, fromVoice, truncate(text, 80))

	if strings.HasPrefix(text, "/") {
		r.handleCommand(ctx, msg, text)
		return
	}

	key := session.Key(msg.Platform, msg.ChannelID)
	sess := r.sessions.Get(key)

	if sess.State == session.StateAwaiting {
		r.handleSchedulingAnswer(ctx, msg, key, text)
		return
	}

	if strings.EqualFold(text, cancelKeyword) {
		r.sessions.Clear(key)
		r.reply(ctx, msg, msgCancelled)
		return
	}

	res := r.intents.Classify(text)
	switch res.Intent {
	case intent.AppointmentCreate:
		r.sessions.Set(key, session.Session{State: session.StateAwaiting})
		r.reply(ctx, msg, msgAskDetails)
	case intent.AppointmentList:
		r.sendAgenda(ctx, msg)
	case intent.None:
		if fromVoice {
			// Voice fallback: the whole utterance may already carry the
			// schedule ("dentista amanhã às 15h"), so try a direct create
			// before giving up.
			if r.tryDirectCreate(ctx, msg, text) {
				return
			}
		}
		r.reply(ctx, msg, msgNotUnderstood)
	default:
		if res.Answer != "" {
			r.reply(ctx, msg, res.Answer)
		}
	}
}

// handleSchedulingAnswer processes the message that follows a scheduling
// intent: the whole text is both the title and the extraction input.
func (r *Router) handleSchedulingAnswer(ctx context.Context, msg InboundMessage, key, text string) {
	if strings.EqualFold(text, cancelKeyword) {
		r.sessions.Clear(key)
		r.reply(ctx, msg, msgCancelled)
		return
	}

	appt, err := r.agenda.CreateAppointment(msg.Platform, msg.ChannelID, text, text)
	switch {
	case err == nil:
		r.sessions.Clear(key)
		r.reply(ctx, msg, formatConfirmation(appt, r.loc))
	case errors.Is(err, agenda.ErrNoSchedule):
		// Session stays awaiting so the user can correct the date.
		r.reply(ctx, msg, fmt.Sprintf("Não consegui agendar: %s\n%s", msgBadDate, msgRetryHint))
	case errors.Is(err, agenda.ErrNotLinked):
		r.sessions.Clear(key)
		r.reply(ctx, msg, msgNotLinked)
	default:
		log.Printf("bot: create appointment: %v", err)
		r.sessions.Clear(key)
		r.reply(ctx, msg, msgGenericError)
	}
}

// tryDirectCreate attempts an appointment straight from an unclassified
// voice transcription. Reports whether the message was handled.
func (r *Router) tryDirectCreate(ctx context.Context, msg InboundMessage, text string) bool {
	appt, err := r.agenda.CreateAppointment(msg.Platform, msg.ChannelID, text, text)
	if err != nil {
		return false
	}
	r.reply(ctx, msg, formatConfirmation(appt, r.loc))
	return true
}

// handleCommand dispatches slash commands.
func (r *Router) handleCommand(ctx context.Context, msg InboundMessage, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/start":
		linked := true
		if _, err := db.LookupOwner(r.db, msg.Platform, msg.ChannelID); err != nil {
			linked = false
		}
		name := msg.UserName
		if name == "" {
			name = "visitante"
		}
		r.reply(ctx, msg, formatWelcome(name, linked))
	case "/login":
		r.handleLogin(ctx, msg, fields)
	case "/agenda":
		r.sendAgenda(ctx, msg)
	case "/ajuda", "/help":
		r.reply(ctx, msg, msgHelp)
	default:
		r.reply(ctx, msg, msgHelp)
	}
}

// handleLogin binds the chat identity to the account owning the given
// email. Re-linking an identity moves it to the new account.
func (r *Router) handleLogin(ctx context.Context, msg InboundMessage, fields []string) {
	if len(fields) < 2 {
		r.reply(ctx, msg, msgLoginUsage)
		return
	}
	email := strings.ToLower(fields[1])

	var user models.User
	if err := r.db.Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.reply(ctx, msg, msgLoginUnknown)
			return
		}
		log.Printf("bot: login lookup %q: %v", email, err)
		r.reply(ctx, msg, msgGenericError)
		return
	}

	link := models.ChatLink{
		Platform: msg.Platform,
		ChatID:   msg.ChannelID,
		Username: msg.UserName,
		UserID:   user.ID,
	}
	if err := db.UpsertChatLink(r.db, link); err != nil {
		log.Printf("bot: link identity: %v", err)
		r.reply(ctx, msg, msgGenericError)
		return
	}
	r.reply(ctx, msg, msgLoginOK)
}

// sendAgenda replies with the user's upcoming appointments.
func (r *Router) sendAgenda(ctx context.Context, msg InboundMessage) {
	appts, err := r.agenda.ListUpcoming(msg.Platform, msg.ChannelID)
	if err != nil {
		if errors.Is(err, agenda.ErrNotLinked) {
			r.reply(ctx, msg, msgNotLinked)
			return
		}
		log.Printf("bot: list agenda: %v", err)
		r.reply(ctx, msg, msgGenericError)
		return
	}
	r.reply(ctx, msg, formatAgenda(appts, r.loc))
}

// transcribe converts a voice note to text, echoing the transcription back
// to the user the way the rest of the flow expects typed text.
func (r *Router) transcribe(ctx context.Context, msg InboundMessage) (string, bool) {
	if r.transcriber == nil {
		r.reply(ctx, msg, msgAudioError)
		return "", false
	}
	r.reply(ctx, msg, msgTranscribing)

	text, err := r.transcriber.Transcribe(ctx, msg.AudioURL)
	if err != nil {
		log.Printf("bot: transcribe: %v", err)
		r.reply(ctx, msg, msgAudioError)
		return "", false
	}
	r.reply(ctx, msg, fmt.Sprintf("📝 Você disse: %q", text))
	return text, true
}

// reply sends a message back to the originating channel (best effort).
func (r *Router) reply(ctx context.Context, msg InboundMessage, text string) {
	if err := r.adapter.Send(ctx, OutboundMessage{ChannelID: msg.ChannelID, Text: text}); err != nil {
		log.Printf("bot: reply to %s: %v", msg.ChannelID, err)
	}
}

// isSelfMessage reports whether the message came from the bot itself.
func (r *Router) isSelfMessage(msg InboundMessage) bool {
	return r.botUserID != "" && msg.UserID == r.botUserID
}

// truncate shortens s to max runes for log lines.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

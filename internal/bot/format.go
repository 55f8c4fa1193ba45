package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rmaia/agendabot/internal/models"
)

// User-facing replies, in Brazilian Portuguese like the rest of the
// conversation surface.
const (
	msgNotLinked     = "Você precisa vincular sua conta primeiro. Use /login <seu_email>"
	msgBadDate       = "Não entendi a data. Tente algo como \"amanhã às 10h\" ou \"25/12 às 14h\"."
	msgRetryHint     = "Tente novamente, por exemplo: \"Reunião amanhã às 14h\" ou digite \"cancelar\"."
	msgCancelled     = "Operação cancelada."
	msgNotUnderstood = "Desculpe, não entendi. Pode reformular?"
	msgAskDetails    = "Claro! Qual o compromisso e o horário? (Ex: \"Dentista amanhã às 15h\")"
	msgGenericError  = "Ocorreu um erro ao processar sua mensagem."
	msgEmptyAgenda   = "📅 Você não tem compromissos agendados para os próximos 7 dias."
	msgHelp          = "Comandos disponíveis:\n/start - Iniciar\n/login <email> - Vincular conta\n/agenda - Ver compromissos\n/ajuda - Esta mensagem"
	msgLoginUsage    = "Por favor, forneça seu email. Exemplo: /login seu@email.com"
	msgLoginUnknown  = "Email não encontrado. Verifique se você já criou uma conta."
	msgLoginOK       = "Conta vinculada com sucesso! Agora você pode agendar compromissos."
	msgTranscribing  = "🎤 Recebi seu áudio! Transcrevendo..."
	msgAudioError    = "Erro ao processar áudio. Tente enviar como texto."
)

// formatWelcome greets a user on /start, branching on whether their chat
// identity is already linked.
func formatWelcome(firstName string, linked bool) string {
	if linked {
		return fmt.Sprintf("Bem-vindo de volta, %s! O que deseja fazer hoje?", firstName)
	}
	return fmt.Sprintf("Olá %s! Bem-vindo ao Agendabot.\n\nPara começar, você precisa vincular sua conta.\nUse o comando /login <seu_email> para iniciar o processo.", firstName)
}

// formatConfirmation renders the reply for a freshly created appointment.
func formatConfirmation(appt *models.Appointment, loc *time.Location) string {
	msg := fmt.Sprintf("Agendamento confirmado! ✅\n\"%s\" para %s.", appt.Title, formatWhen(appt.StartTime, loc))
	if appt.Location != nil && appt.Location.Name != "" {
		msg += fmt.Sprintf("\n📍 Local: %s", appt.Location.Name)
	}
	return msg
}

// formatAgenda renders the upcoming appointment list for /agenda.
func formatAgenda(appts []models.Appointment, loc *time.Location) string {
	if len(appts) == 0 {
		return msgEmptyAgenda
	}

	var b strings.Builder
	b.WriteString("📅 *Seus Próximos Compromissos:*\n\n")
	for i, appt := range appts {
		fmt.Fprintf(&b, "%d. *%s*\n   📆 %s\n", i+1, appt.Title, formatWhen(appt.StartTime, loc))
		if appt.Location != nil && appt.Location.Name != "" {
			fmt.Fprintf(&b, "   📍 %s\n", appt.Location.Name)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatDigest renders the daily agenda digest pushed to a linked channel.
func formatDigest(appts []models.Appointment, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("☀️ *Sua agenda de hoje:*\n\n")
	for _, appt := range appts {
		fmt.Fprintf(&b, "🕒 %s — *%s*", appt.StartTime.In(loc).Format("15:04"), appt.Title)
		if appt.Location != nil && appt.Location.Name != "" {
			fmt.Fprintf(&b, " (📍 %s)", appt.Location.Name)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatWhen renders a start time as "dd/MM às HH:mm".
func formatWhen(ts time.Time, loc *time.Location) string {
	local := ts.In(loc)
	return fmt.Sprintf("%s às %s", local.Format("02/01"), local.Format("15:04"))
}

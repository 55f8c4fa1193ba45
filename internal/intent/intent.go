// Package intent classifies raw chat text into an intent label. The core
// pipeline consumes the Resolver as a black box; RuleResolver is the
// built-in implementation, a keyword matcher over a small pt-BR corpus.
// A model-backed resolver can be swapped in behind the same interface.
package intent

import "strings"

// Well-known intent labels.
const (
	None              = "None"
	Greeting          = "greetings.hello"
	AppointmentCreate = "appointment.create"
	AppointmentList   = "appointment.list"
)

// Result is a classification outcome: the intent label and an optional
// canned answer for intents with a fixed response.
type Result struct {
	Intent string
	Answer string
}

// Resolver maps raw text to an intent.
type Resolver interface {
	Classify(text string) Result
}

// rule pairs an intent with the phrases that signal it. Phrases are matched
// as whole-word sequences within the (lowercased) input.
type rule struct {
	intent  string
	phrases []string
}

// rules are checked in order; scheduling intents come before greetings so
// "bom dia, quero marcar consulta" schedules instead of greeting back.
var rules = []rule{
	{
		intent: AppointmentCreate,
		phrases: []string{
			"agendar compromisso", "agendar consulta", "agendar exame", "agendar para",
			"marcar reunião", "marcar reuniao", "marcar consulta", "marcar algo",
			"quero marcar", "quero agendar", "novo agendamento", "novo compromisso",
			"consulta dia", "exame dia", "dentista amanhã", "dentista amanha",
			"reunião às", "reuniao as", "agendar",
		},
	},
	{
		intent: AppointmentList,
		phrases: []string{
			"ver minha agenda", "minha agenda", "meus compromissos",
			"o que tenho para hoje", "o que tenho hoje",
			"listar reuniões", "listar reunioes", "listar compromissos",
			"próximos compromissos", "proximos compromissos",
		},
	},
	{
		intent: Greeting,
		phrases: []string{
			"olá", "ola", "oi", "bom dia", "boa tarde", "boa noite",
		},
	},
}

// answers are the canned responses sent when an intent needs no further
// pipeline work.
var answers = map[string]string{
	Greeting:          "Olá! Como posso ajudar com sua agenda hoje?",
	AppointmentCreate: "Claro, qual o título do compromisso e o horário?",
	AppointmentList:   "Vou verificar sua agenda. Um momento...",
}

// RuleResolver classifies text by phrase matching.
type RuleResolver struct{}

// NewRuleResolver creates the built-in rule-based resolver.
func NewRuleResolver() *RuleResolver {
	return &RuleResolver{}
}

// Classify returns the first intent whose phrase list matches the text, or
// None when nothing matches.
func (r *RuleResolver) Classify(text string) Result {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Result{Intent: None}
	}

	for _, rl := range rules {
		for _, phrase := range rl.phrases {
			if containsPhrase(lower, phrase) {
				return Result{Intent: rl.intent, Answer: answers[rl.intent]}
			}
		}
	}
	return Result{Intent: None}
}

// containsPhrase reports whether phrase appears in text on word boundaries.
// A bare substring check would make "oi" match inside "foi".
func containsPhrase(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		idx = start + 1
	}
}

func boundaryBefore(text string, i int) bool {
	return i == 0 || !isWordByte(text[i-1])
}

func boundaryAfter(text string, i int) bool {
	return i >= len(text) || !isWordByte(text[i])
}

// isWordByte treats ASCII letters and digits as word characters. Accented
// letters are multi-byte in UTF-8 and never equal these bytes, so phrases
// containing them still terminate words correctly for this corpus.
func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

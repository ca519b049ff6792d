// Package intent classifies inbound text into a coarse intent and extracts
// booking entities (specialty, day, time). Matching is case-insensitive
// keyword and pattern matching against a fixed Spanish vocabulary; it is
// best-effort and never fails.
package intent

import (
	"regexp"
	"strings"
)

// Intent is the coarse classification of a user message.
type Intent string

const (
	IntentUnknown  Intent = "UNKNOWN"
	IntentGreeting Intent = "GREETING_OR_MENU"
	IntentCancel   Intent = "CANCEL"
	IntentPrices   Intent = "PRICES"
	IntentHours    Intent = "HOURS"
	IntentBook     Intent = "BOOK"
)

// Extraction is the result of classifying one message. Entity fields are
// empty when nothing matched.
type Extraction struct {
	Intent    Intent
	Specialty string
	Day       string
	Time      string
}

// greetings and cancels match the whole (trimmed, lowercased) message only,
// so "hola, quiero una cita" still reaches the booking flow.
var greetings = map[string]bool{
	"hola": true, "menu": true, "menú": true, "buenas": true, "empezar": true,
}

var cancels = map[string]bool{
	"cancelar": true, "cancela": true, "reiniciar": true, "anular": true, "salir": true,
}

var bookKeywords = []string{"cita", "reserv", "agenda", "turno", "consulta"}

// specialties maps a canonical specialty to the keywords that select it.
// Order matters: first match wins.
var specialties = []struct {
	Name     string
	Keywords []string
}{
	{"dental", []string{"dental", "dentista", "muela", "diente", "odonto"}},
	{"fisioterapia", []string{"fisio", "masaje", "espalda", "contractura"}},
	{"estética", []string{"estetica", "estética", "botox", "láser", "laser", "depilación", "depilacion"}},
	{"medicina general", []string{"médico", "medico", "general", "cabecera", "familia"}},
}

var weekdays = []string{
	"lunes", "martes", "miércoles", "miercoles", "jueves", "viernes",
	"sábado", "sabado", "domingo",
}

var (
	numericDayPattern = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})\b`)
	clockPattern      = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	morningPattern    = regexp.MustCompile(`\b(?:por|de)\s+la\s+mañana\b`)
)

// Extract classifies text and pulls out any booking entities it mentions.
func Extract(text string) Extraction {
	t := strings.ToLower(strings.TrimSpace(text))

	ex := Extraction{
		Intent:    classify(t),
		Specialty: extractSpecialty(t),
		Time:      extractTime(t),
	}
	ex.Day = extractDay(t, ex.Time)
	return ex
}

func classify(t string) Intent {
	switch {
	case t == "":
		return IntentUnknown
	case cancels[t]:
		return IntentCancel
	case greetings[t]:
		return IntentGreeting
	case containsAny(t, bookKeywords):
		return IntentBook
	case strings.Contains(t, "precio") || strings.Contains(t, "tarifa"):
		return IntentPrices
	case strings.Contains(t, "horario"):
		return IntentHours
	default:
		return IntentUnknown
	}
}

func extractSpecialty(t string) string {
	for _, sp := range specialties {
		if containsAny(t, sp.Keywords) {
			return sp.Name
		}
	}
	return ""
}

// extractDay recognizes weekday names, a standalone "mañana" (tomorrow),
// "hoy", and DD-MM / DD/MM patterns. "mañana" preceded by "por la" or
// "de la" is a time of day, not a day; timeHint disambiguates.
func extractDay(t, timeHint string) string {
	for _, d := range weekdays {
		if strings.Contains(t, d) {
			return d
		}
	}
	if m := numericDayPattern.FindString(t); m != "" {
		return m
	}
	if strings.Contains(t, "hoy") {
		return "hoy"
	}
	if strings.Contains(t, "mañana") && !(timeHint == "mañana" && morningPattern.MatchString(t)) {
		return "mañana"
	}
	return ""
}

func extractTime(t string) string {
	if m := clockPattern.FindString(t); m != "" {
		return m
	}
	if morningPattern.MatchString(t) {
		return "mañana"
	}
	if strings.Contains(t, "tarde") {
		return "tarde"
	}
	return ""
}

func containsAny(t string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

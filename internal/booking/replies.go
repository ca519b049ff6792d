package booking

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"citabot/internal/domain"

	"gopkg.in/yaml.v3"
)

// Replies holds every user-facing text the bot can send. Fields with a
// %s placeholder are format strings; an override file must keep the
// placeholder count.
type Replies struct {
	Menu          string `yaml:"menu"`
	Canceled      string `yaml:"canceled"`
	Prices        string `yaml:"prices"`
	Hours         string `yaml:"hours"`
	NotUnderstood string `yaml:"notUnderstood"`
	AskSpecialty  string `yaml:"askSpecialty"`
	AskDay        string `yaml:"askDay"`
	AskAnotherDay string `yaml:"askAnotherDay"`
	NoSlots       string `yaml:"noSlots"`
	GatewayDown   string `yaml:"gatewayDown"`
	SlotsHeader   string `yaml:"slotsHeader"`
	SlotsFooter   string `yaml:"slotsFooter"`
	ChooseSlot    string `yaml:"chooseSlot"`
	LostList      string `yaml:"lostList"`
	SlotChosen    string `yaml:"slotChosen"`    // %s = slot label
	Summary       string `yaml:"summary"`       // %s = specialty, day, slot label, name
	ConfirmRepeat string `yaml:"confirmRepeat"`
	Booked        string `yaml:"booked"`        // %s = specialty, slot label, name
	BookRejected  string `yaml:"bookRejected"`  // %s = gateway reason
	BookRetry     string `yaml:"bookRetry"`
	Restarted     string `yaml:"restarted"`
	Inconsistent  string `yaml:"inconsistent"`
}

func DefaultReplies() Replies {
	return Replies{
		Menu: "Hola 👋 Escribe:\n" +
			"• *cita* para pedir cita\n" +
			"• *precios*\n" +
			"• *horario*\n\n" +
			"En cualquier momento: *cancelar*",
		Canceled: "Listo ✅ Proceso cancelado. Escribe *hola* para empezar.",
		Prices: "💶 Precios orientativos:\n" +
			"- Consulta: 30€\n" +
			"- Revisión: 20€\n\n" +
			"Escribe *hola* para menú.",
		Hours: "🕒 Horario:\n" +
			"L–V 9:00–14:00 y 16:00–20:00\n" +
			"S 10:00–13:00\n\n" +
			"Escribe *hola* para menú.",
		NotUnderstood: "No te he entendido 😅 Escribe *hola* para ver opciones.",
		AskSpecialty:  "Perfecto 📅 ¿Para qué especialidad? (ej: dental, fisio, estética)",
		AskDay:        "Genial ✅ ¿Qué día te viene bien? (ej: martes / mañana / 12-03)",
		AskAnotherDay: "Vale 🙂 dime otro día (ej: jueves / mañana / 12-03).",
		NoSlots:       "Ese día no me salen huecos 😕. Dime otro día (ej: miércoles / mañana).",
		GatewayDown:   "No pude consultar huecos 😕. Dime otro día o prueba de nuevo.",
		SlotsHeader:   "Tengo estos huecos:\n\n",
		SlotsFooter:   "\nResponde 1, 2 o 3 (o escribe *otro día*).",
		ChooseSlot:    "Elige 1, 2 o 3 (o escribe *otro día*).",
		LostList:      "Se me perdió la lista 😅. Dime otra vez el día (ej: martes / mañana).",
		SlotChosen:    "Perfecto ✅ Has elegido: *%s*\nDime tu nombre y apellido.",
		Summary: "Confirma tu solicitud:\n" +
			"• Especialidad: *%s*\n" +
			"• Día: *%s*\n" +
			"• Opción: *%s*\n" +
			"• Nombre: *%s*\n\n" +
			"Responde *SI* para confirmar o *NO* para cancelar.",
		ConfirmRepeat: "Responde *SI* para confirmar o *NO* para cancelar.",
		Booked: "✅ ¡Perfecto! Hemos recibido tu solicitud.\n\n" +
			"📌 Resumen:\n" +
			"• %s\n" +
			"• %s\n" +
			"• %s\n\n" +
			"📲 Recepción la confirmará en breve.\n" +
			"Escribe *hola* para volver al menú.",
		BookRejected: "No he podido reservar ese hueco 😕 (%s).\nDime otro día (ej: miércoles / mañana).",
		BookRetry:    "No pude confirmar la reserva 😕. Responde *SI* para intentarlo de nuevo o *NO* para cancelar.",
		Restarted:    "He reiniciado el proceso. Escribe *cita* para empezar.",
		Inconsistent: "Algo ha ido mal por mi parte 😅 He reiniciado el proceso. Escribe *cita* para empezar.",
	}
}

// LoadReplies returns the defaults merged with any non-empty fields from
// the YAML file at path. A missing or unreadable file keeps the defaults.
func LoadReplies(path string, logger *slog.Logger) Replies {
	replies := DefaultReplies()
	if path == "" {
		return replies
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("cannot read replies file, using defaults", "path", path, "err", err)
		return replies
	}

	var override Replies
	if err := yaml.Unmarshal(data, &override); err != nil {
		logger.Warn("cannot parse replies file, using defaults", "path", path, "err", err)
		return replies
	}

	merge(&replies, override)
	logger.Info("loaded reply overrides", "path", path)
	return replies
}

func merge(base *Replies, override Replies) {
	fields := []struct {
		dst *string
		src string
	}{
		{&base.Menu, override.Menu},
		{&base.Canceled, override.Canceled},
		{&base.Prices, override.Prices},
		{&base.Hours, override.Hours},
		{&base.NotUnderstood, override.NotUnderstood},
		{&base.AskSpecialty, override.AskSpecialty},
		{&base.AskDay, override.AskDay},
		{&base.AskAnotherDay, override.AskAnotherDay},
		{&base.NoSlots, override.NoSlots},
		{&base.GatewayDown, override.GatewayDown},
		{&base.SlotsHeader, override.SlotsHeader},
		{&base.SlotsFooter, override.SlotsFooter},
		{&base.ChooseSlot, override.ChooseSlot},
		{&base.LostList, override.LostList},
		{&base.SlotChosen, override.SlotChosen},
		{&base.Summary, override.Summary},
		{&base.ConfirmRepeat, override.ConfirmRepeat},
		{&base.Booked, override.Booked},
		{&base.BookRejected, override.BookRejected},
		{&base.BookRetry, override.BookRetry},
		{&base.Restarted, override.Restarted},
		{&base.Inconsistent, override.Inconsistent},
	}
	for _, f := range fields {
		if f.src != "" {
			*f.dst = f.src
		}
	}
}

var slotDigits = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣"}

// renderSlots formats the candidate list the way the clinic bot numbers
// its options.
func (r Replies) renderSlots(slots []domain.Slot) string {
	var sb strings.Builder
	sb.WriteString(r.SlotsHeader)
	for i, slot := range slots {
		digit := fmt.Sprintf("%d.", i+1)
		if i < len(slotDigits) {
			digit = slotDigits[i]
		}
		fmt.Fprintf(&sb, "%s %s\n", digit, slot.Label)
	}
	sb.WriteString(r.SlotsFooter)
	return sb.String()
}

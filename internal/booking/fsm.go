// Package booking implements the conversation engine that turns inbound
// WhatsApp messages into appointment bookings: a per-user finite state
// machine (specialty → day → slot → name → confirmation) driven by the
// intent extractor and the scheduling gateway.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"citabot/internal/domain"
	"citabot/internal/intent"
	"citabot/internal/metrics"
	"citabot/internal/scheduler"

	"github.com/google/uuid"
)

// Engine consumes one inbound message plus current session state and
// produces the outbound replies. Sessions are mutated only here, under
// the dispatcher's per-user serialization.
type Engine struct {
	store   domain.SessionStore
	gateway domain.SchedulerGateway
	history domain.AppointmentStore // optional
	replies Replies
	logger  *slog.Logger

	newRequestID func() string
}

// EngineConfig holds the engine dependencies.
type EngineConfig struct {
	Store   domain.SessionStore
	Gateway domain.SchedulerGateway
	History domain.AppointmentStore // nil disables the appointment log
	Replies Replies
	Logger  *slog.Logger

	// NewRequestID overrides idempotency-key generation (tests).
	NewRequestID func() string
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewRequestID == nil {
		cfg.NewRequestID = uuid.NewString
	}
	return &Engine{
		store:        cfg.Store,
		gateway:      cfg.Gateway,
		history:      cfg.History,
		replies:      cfg.Replies,
		logger:       cfg.Logger,
		newRequestID: cfg.NewRequestID,
	}
}

// Handle runs one FSM step for the given user and message text.
// Every path returns normal replies; the engine never propagates an error
// to the channel.
func (e *Engine) Handle(ctx context.Context, userID, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	t := strings.ToLower(text)
	ex := intent.Extract(text)

	// Global transitions, evaluated before any step-specific logic.
	switch ex.Intent {
	case intent.IntentCancel:
		e.store.Reset(userID)
		return []string{e.replies.Canceled}
	case intent.IntentGreeting:
		e.store.Reset(userID)
		return []string{e.replies.Menu}
	}

	s := e.store.Get(userID)

	switch s.Step {
	case domain.StepIdle:
		return e.handleIdle(ctx, s, t, ex)
	case domain.StepAskSpecialty:
		return e.handleAskSpecialty(ctx, s, text, ex)
	case domain.StepAskDay:
		return e.handleAskDay(ctx, s, text, ex)
	case domain.StepAskSlot:
		return e.handleAskSlot(s, t)
	case domain.StepAskName:
		return e.handleAskName(s, text)
	case domain.StepConfirm:
		return e.handleConfirm(ctx, s, t)
	default:
		// Unknown step value: the FSM must never get stuck.
		e.logger.Warn("unknown session step, restarting", "user", userID, "step", s.Step)
		e.store.Reset(userID)
		return []string{e.replies.Restarted}
	}
}

func (e *Engine) handleIdle(ctx context.Context, s *domain.Session, t string, ex intent.Extraction) []string {
	switch {
	case ex.Intent == intent.IntentBook || t == "1":
		s.Data = domain.BookingData{
			Specialty: ex.Specialty,
			DayText:   ex.Day,
			TimeText:  ex.Time,
		}
		if s.Data.Specialty != "" {
			return e.fetchSlots(ctx, s)
		}
		s.Step = domain.StepAskSpecialty
		return []string{e.replies.AskSpecialty}

	case ex.Intent == intent.IntentPrices || t == "2":
		return []string{e.replies.Prices}

	case ex.Intent == intent.IntentHours || t == "3":
		return []string{e.replies.Hours}

	default:
		return []string{e.replies.NotUnderstood}
	}
}

func (e *Engine) handleAskSpecialty(ctx context.Context, s *domain.Session, text string, ex intent.Extraction) []string {
	if ex.Specialty != "" {
		s.Data.Specialty = ex.Specialty
	} else {
		s.Data.Specialty = strings.TrimSpace(text)
	}
	if ex.Day != "" && s.Data.DayText == "" {
		s.Data.DayText = ex.Day
	}
	return e.fetchSlots(ctx, s)
}

func (e *Engine) handleAskDay(ctx context.Context, s *domain.Session, text string, ex intent.Extraction) []string {
	if ex.Day != "" {
		s.Data.DayText = ex.Day
	} else {
		s.Data.DayText = strings.TrimSpace(text)
	}
	if ex.Time != "" {
		s.Data.TimeText = ex.Time
	}
	return e.fetchSlots(ctx, s)
}

// fetchSlots asks the gateway for candidates and advances the session.
// Any previously held candidate list is discarded first so a later index
// selection can never refer to a stale list.
func (e *Engine) fetchSlots(ctx context.Context, s *domain.Session) []string {
	s.Data.Candidates = nil
	s.Data.Chosen = nil
	s.Data.RequestID = ""

	slots, err := e.gateway.Suggest(ctx, domain.SuggestRequest{
		Phone:     s.UserID,
		Specialty: s.Data.Specialty,
		DayText:   s.Data.DayText,
	})
	if err != nil {
		metrics.GatewayErrors.Inc()
		e.logger.Error("suggest failed", "user", s.UserID, "err", err)
		s.Step = domain.StepAskDay
		return []string{e.replies.GatewayDown}
	}
	if len(slots) == 0 {
		s.Step = domain.StepAskDay
		return []string{e.replies.NoSlots}
	}

	s.Data.Candidates = slots
	s.Step = domain.StepAskSlot
	return []string{e.replies.renderSlots(slots)}
}

func (e *Engine) handleAskSlot(s *domain.Session, t string) []string {
	if strings.Contains(t, "otro") {
		s.Data.Candidates = nil
		s.Data.Chosen = nil
		s.Step = domain.StepAskDay
		return []string{e.replies.AskAnotherDay}
	}

	if len(s.Data.Candidates) == 0 {
		s.Step = domain.StepAskDay
		return []string{e.replies.LostList}
	}

	idx, err := strconv.Atoi(t)
	if err != nil || idx < 1 || idx > len(s.Data.Candidates) {
		// Re-prompt without mutating data or step.
		return []string{e.replies.ChooseSlot}
	}

	chosen := s.Data.Candidates[idx-1]
	s.Data.Chosen = &chosen
	s.Data.Candidates = nil
	s.Step = domain.StepAskName
	return []string{fmt.Sprintf(e.replies.SlotChosen, chosen.Label)}
}

func (e *Engine) handleAskName(s *domain.Session, text string) []string {
	s.Data.Name = strings.TrimSpace(text)
	s.Step = domain.StepConfirm
	s.Data.RequestID = e.newRequestID()

	label := "-"
	if s.Data.Chosen != nil {
		label = s.Data.Chosen.Label
	}
	day := s.Data.DayText
	if day == "" {
		day = "-"
	}
	return []string{fmt.Sprintf(e.replies.Summary, s.Data.Specialty, day, label, s.Data.Name)}
}

func (e *Engine) handleConfirm(ctx context.Context, s *domain.Session, t string) []string {
	switch {
	case isAffirmative(t):
		return e.book(ctx, s)
	case t == "no":
		e.store.Reset(s.UserID)
		return []string{e.replies.Canceled}
	default:
		return []string{e.replies.ConfirmRepeat}
	}
}

func (e *Engine) book(ctx context.Context, s *domain.Session) []string {
	if s.Data.Chosen == nil {
		// Confirmation reached without a chosen slot: unrecoverable here.
		e.logger.Error("confirm without chosen slot", "user", s.UserID)
		e.store.Reset(s.UserID)
		return []string{e.replies.Inconsistent}
	}

	req := domain.BookingRequest{
		Phone:     s.UserID,
		Name:      s.Data.Name,
		Specialty: s.Data.Specialty,
		DayText:   s.Data.DayText,
		Slot:      *s.Data.Chosen,
		RequestID: s.Data.RequestID,
	}

	label, err := e.gateway.Book(ctx, req)
	switch {
	case err == nil:
		metrics.BookingsConfirmed.Inc()
		e.recordAppointment(ctx, req, label)
		e.store.Reset(s.UserID)
		return []string{fmt.Sprintf(e.replies.Booked, req.Specialty, label, req.Name)}

	case errors.Is(err, scheduler.ErrRejected):
		// The slot was lost to someone else: back to day selection with a
		// fresh idempotency round.
		metrics.GatewayErrors.Inc()
		e.logger.Warn("booking rejected", "user", s.UserID, "err", err)
		s.Step = domain.StepAskDay
		s.Data.Candidates = nil
		s.Data.Chosen = nil
		s.Data.RequestID = ""
		return []string{fmt.Sprintf(e.replies.BookRejected, rejectionReason(err))}

	default:
		// Transport failure: stay in CONFIRM so the user can retry; the
		// unchanged RequestID keeps a duplicate commit impossible.
		metrics.GatewayErrors.Inc()
		e.logger.Error("booking failed", "user", s.UserID, "err", err)
		return []string{e.replies.BookRetry}
	}
}

func (e *Engine) recordAppointment(ctx context.Context, req domain.BookingRequest, label string) {
	if e.history == nil {
		return
	}
	err := e.history.Record(ctx, domain.Appointment{
		Phone:     req.Phone,
		Name:      req.Name,
		Specialty: req.Specialty,
		DayText:   req.DayText,
		SlotLabel: label,
		SlotStart: req.Slot.StartISO,
		RequestID: req.RequestID,
	})
	if err != nil {
		e.logger.Warn("cannot record appointment", "user", req.Phone, "err", err)
	}
}

func isAffirmative(t string) bool {
	switch t {
	case "si", "sí", "ok", "confirmo":
		return true
	}
	return strings.Contains(t, "confirm")
}

// rejectionReason strips the client's sentinel prefix so only the
// gateway-provided text reaches the user.
func rejectionReason(err error) string {
	msg := err.Error()
	prefix := scheduler.ErrRejected.Error()
	if msg == prefix {
		return "hueco no disponible"
	}
	return strings.TrimPrefix(msg, prefix+": ")
}

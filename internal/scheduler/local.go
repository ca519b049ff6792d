package scheduler

import (
	"context"
	"log/slog"

	"citabot/internal/domain"
)

// Local is the degraded-service gateway used when no remote endpoint is
// configured: a fixed placeholder slot list and bookings that are only
// acknowledged, never committed anywhere.
type Local struct {
	logger *slog.Logger
}

func NewLocal(logger *slog.Logger) *Local {
	return &Local{logger: logger}
}

func (l *Local) Suggest(ctx context.Context, req domain.SuggestRequest) ([]domain.Slot, error) {
	return []domain.Slot{
		{Label: "Mañana 10:00–10:30"},
		{Label: "Mañana 12:00–12:30"},
		{Label: "Tarde 17:30–18:00"},
	}, nil
}

func (l *Local) Book(ctx context.Context, req domain.BookingRequest) (string, error) {
	l.logger.Info("local mode: booking acknowledged without gateway",
		"phone", req.Phone, "slot", req.Slot.Label, "request_id", req.RequestID)
	return req.Slot.Label, nil
}

package domain

import "context"

// SuggestRequest asks the scheduling gateway for candidate slots.
type SuggestRequest struct {
	Phone     string
	Specialty string
	DayText   string
}

// BookingRequest commits a chosen slot. RequestID is a stable idempotency
// key: retried confirmations carry the same ID so a deduplicating gateway
// books at most once.
type BookingRequest struct {
	Phone     string
	Name      string
	Specialty string
	DayText   string
	Slot      Slot
	RequestID string
}

// SchedulerGateway is the external scheduling oracle: suggest candidate
// slots for a specialty and day, and book a chosen one.
type SchedulerGateway interface {
	Suggest(ctx context.Context, req SuggestRequest) ([]Slot, error)
	Book(ctx context.Context, req BookingRequest) (label string, err error)
}

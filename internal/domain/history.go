package domain

import (
	"context"
	"time"
)

// Appointment is one confirmed booking, recorded for the reception log.
type Appointment struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	DayText   string    `json:"day_text"`
	SlotLabel string    `json:"slot_label"`
	SlotStart string    `json:"slot_start"`
	RequestID string    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AppointmentStore handles persistent storage of confirmed bookings.
type AppointmentStore interface {
	Record(ctx context.Context, appt Appointment) error
	ListRecent(ctx context.Context, limit int) ([]Appointment, error)
	ListByPhone(ctx context.Context, phone string, limit int) ([]Appointment, error)
	Close() error
}

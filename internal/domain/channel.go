package domain

import "context"

// Channel is the interface for user-facing messaging I/O (WhatsApp webhook).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
	Send(ctx context.Context, userID string, content string) error
}

package domain

import "time"

type InboundMessage struct {
	Channel   string
	UserID    string // channel-provided identifier (phone number for WhatsApp)
	Content   string
	Timestamp time.Time
}

type OutboundMessage struct {
	Channel string
	UserID  string
	Content string
}

package domain

import "time"

// InboundMessage is a raw event delivered by a transport.
// Exactly one of Text or PhotoRef is meaningful.
type InboundMessage struct {
	Channel   string
	ChatID    string
	SenderID  string
	Text      string
	PhotoRef  string // transport-specific reference (Telegram file ID, CLI file path)
	Timestamp time.Time
}

// HasPhoto reports whether the message carries a photo reference.
func (m InboundMessage) HasPhoto() bool { return m.PhotoRef != "" }

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	Menu    bool // attach the persistent reply keyboard
}

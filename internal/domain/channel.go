package domain

import "context"

// Channel is the interface for user-facing I/O (Telegram, CLI).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}

// PhotoSource resolves a transport photo reference to raw image bytes.
type PhotoSource interface {
	FetchPhoto(ctx context.Context, ref string) ([]byte, error)
}

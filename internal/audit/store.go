// Package audit persists a record of each session's lifecycle: when it
// opened, which protocols it negotiated, and why it closed. Two
// implementations share one interface, mirroring the teacher's
// Postgres/in-memory message store split: Postgres when ETP_DATABASE_URL is
// set, in-memory otherwise.
package audit

import (
	"context"
	"time"
)

// SessionRecord is one persisted session lifecycle entry.
type SessionRecord struct {
	SessionID  string
	Role       string // "customer" or "store"
	Version    string // "1.1" or "1.2"
	Protocols  []int32
	OpenedAt   time.Time
	ClosedAt   time.Time
	CloseReason string
}

// Store records session open/close events and lists recent sessions.
type Store interface {
	RecordOpened(ctx context.Context, rec SessionRecord) error
	RecordClosed(ctx context.Context, sessionID string, closedAt time.Time, reason string) error
	Recent(ctx context.Context, limit int) ([]SessionRecord, error)
	Close() error
}

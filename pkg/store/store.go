// Package store persists sessions, their emotion observations, conversation
// turns and end-of-session reports. Three backends are provided: in-memory,
// JSONL files and Redis.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mindwell-dev/mindwell/internal/chat"
	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/report"
)

// Common errors for storage operations.
var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrReportNotFound is returned when a session has no saved report.
	ErrReportNotFound = errors.New("report not found")
	// ErrStoreClosed is returned when operating on a closed backend.
	ErrStoreClosed = errors.New("store is closed")
)

// SessionRecord is the persisted session metadata.
type SessionRecord struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id,omitempty"`
	State     string     `json:"state"`
	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Backend abstracts session persistence.
// Implementations must be safe for concurrent use.
type Backend interface {
	// SaveSession creates or updates session metadata.
	SaveSession(ctx context.Context, rec *SessionRecord) error

	// LoadSession retrieves session metadata by ID.
	// Returns ErrSessionNotFound if the session doesn't exist.
	LoadSession(ctx context.Context, sessionID string) (*SessionRecord, error)

	// ListSessions returns all session records, most recently updated first.
	ListSessions(ctx context.Context) ([]*SessionRecord, error)

	// AppendObservation adds an emotion observation to a session (append-only).
	AppendObservation(ctx context.Context, sessionID string, obs emotion.Observation) error

	// LoadObservations retrieves all observations for a session in order.
	LoadObservations(ctx context.Context, sessionID string) ([]emotion.Observation, error)

	// AppendTurn adds a conversation turn to a session (append-only).
	AppendTurn(ctx context.Context, sessionID string, turn chat.Turn) error

	// LoadTurns retrieves all turns for a session in order.
	LoadTurns(ctx context.Context, sessionID string) ([]chat.Turn, error)

	// SaveReport stores the end-of-session report.
	SaveReport(ctx context.Context, rep *report.Report) error

	// LoadReport retrieves a session's report.
	// Returns ErrReportNotFound if no report was saved.
	LoadReport(ctx context.Context, sessionID string) (*report.Report, error)

	// Close releases any resources held by the backend.
	Close() error
}

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mindwell-dev/mindwell/internal/chat"
	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/report"
)

// MemoryBackend implements Backend with in-process maps. It is the default
// backend and the one tests use.
type MemoryBackend struct {
	mu           sync.RWMutex
	sessions     map[string]*SessionRecord
	observations map[string][]emotion.Observation
	turns        map[string][]chat.Turn
	reports      map[string]*report.Report
	closed       bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		sessions:     make(map[string]*SessionRecord),
		observations: make(map[string][]emotion.Observation),
		turns:        make(map[string][]chat.Turn),
		reports:      make(map[string]*report.Report),
	}
}

func (m *MemoryBackend) SaveSession(ctx context.Context, rec *SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	cp := *rec
	m.sessions[rec.ID] = &cp
	return nil
}

func (m *MemoryBackend) LoadSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryBackend) ListSessions(ctx context.Context) ([]*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	records := make([]*SessionRecord, 0, len(m.sessions))
	for _, rec := range m.sessions {
		cp := *rec
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

func (m *MemoryBackend) AppendObservation(ctx context.Context, sessionID string, obs emotion.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}

	m.observations[sessionID] = append(m.observations[sessionID], obs)
	return nil
}

func (m *MemoryBackend) LoadObservations(ctx context.Context, sessionID string) ([]emotion.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}

	out := make([]emotion.Observation, len(m.observations[sessionID]))
	copy(out, m.observations[sessionID])
	return out, nil
}

func (m *MemoryBackend) AppendTurn(ctx context.Context, sessionID string, turn chat.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}

	m.turns[sessionID] = append(m.turns[sessionID], turn)
	return nil
}

func (m *MemoryBackend) LoadTurns(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}

	out := make([]chat.Turn, len(m.turns[sessionID]))
	copy(out, m.turns[sessionID])
	return out, nil
}

func (m *MemoryBackend) SaveReport(ctx context.Context, rep *report.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if _, ok := m.sessions[rep.SessionID]; !ok {
		return ErrSessionNotFound
	}

	cp := *rep
	m.reports[rep.SessionID] = &cp
	return nil
}

func (m *MemoryBackend) LoadReport(ctx context.Context, sessionID string) (*report.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	rep, ok := m.reports[sessionID]
	if !ok {
		return nil, ErrReportNotFound
	}
	cp := *rep
	return &cp, nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

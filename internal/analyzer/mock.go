package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/mindwell-dev/mindwell/internal/emotion"
)

// Mock is a deterministic in-memory analyzer for tests and local
// development without inference services.
type Mock struct {
	modality emotion.Modality

	mu         sync.Mutex
	label      emotion.Label
	confidence float64
	fail       bool
	delay      time.Duration
	calls      int
}

// NewMock creates a mock analyzer that always returns the given label and
// confidence.
func NewMock(modality emotion.Modality, label emotion.Label, confidence float64) *Mock {
	return &Mock{modality: modality, label: label, confidence: confidence}
}

// Modality returns the configured channel.
func (m *Mock) Modality() emotion.Modality {
	return m.modality
}

// SetResult changes the label and confidence returned by later calls.
func (m *Mock) SetResult(label emotion.Label, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.label = label
	m.confidence = confidence
}

// SetFail makes later calls emit failed observations.
func (m *Mock) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// SetDelay makes later calls block for d before answering, or until the
// context is cancelled.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls reports how many classifications were requested.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Classify returns the configured observation.
func (m *Mock) Classify(ctx context.Context, payload []byte) emotion.Observation {
	m.mu.Lock()
	m.calls++
	label, confidence, fail, delay := m.label, m.confidence, m.fail, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return emotion.FailedObservation(m.modality, ctx.Err().Error(), time.Now())
		}
	}

	if fail {
		return emotion.FailedObservation(m.modality, "mock failure", time.Now())
	}
	return emotion.NewObservation(m.modality, label, confidence, time.Now())
}

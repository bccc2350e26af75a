// Package risk maps a stream of fused emotion observations to a bounded
// depression-risk score and a discrete risk level.
package risk

import (
	"math"
	"sync"
	"time"

	"github.com/mindwell-dev/mindwell/internal/emotion"
)

// Level is the discrete risk classification.
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
)

// Threshold boundaries. Both boundaries belong to the moderate band:
// score < 0.3 is low, 0.3 <= score <= 0.6 is moderate, score > 0.6 is high.
const (
	lowUpperBound      = 0.3
	moderateUpperBound = 0.6
)

// Classify maps a score to its level.
func Classify(score float64) Level {
	if score < lowUpperBound {
		return LevelLow
	}
	if score <= moderateUpperBound {
		return LevelModerate
	}
	return LevelHigh
}

// correlations maps emotion labels to depression correlation weights.
// Labels not listed fall back to defaultCorrelation.
var correlations = map[emotion.Label]float64{
	emotion.LabelSadness:  0.8,
	emotion.LabelFear:     0.6,
	emotion.LabelDisgust:  0.5,
	emotion.LabelAnger:    0.4,
	emotion.LabelNeutral:  0.2,
	emotion.LabelSurprise: 0.1,
	emotion.LabelJoy:      0.0,
}

const defaultCorrelation = 0.2

// persistenceThreshold marks the correlations considered high enough that a
// sustained run of the same label increases risk beyond the decayed average.
const persistenceThreshold = 0.6

// Correlation returns the depression correlation for a label.
func Correlation(label emotion.Label) float64 {
	if c, ok := correlations[label]; ok {
		return c
	}
	return defaultCorrelation
}

// Snapshot is the derived risk state at a point in time. It is recomputable
// from the observation history it summarizes and is never persisted on its own.
type Snapshot struct {
	Score     float64   `json:"score"`
	Level     Level     `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// Config tunes the tracker's scoring window and decay.
type Config struct {
	// WindowSize caps the number of most recent observations scored.
	// Zero means score the full history.
	WindowSize int
	// WindowAge drops observations older than this from scoring.
	// Zero disables the age cutoff.
	WindowAge time.Duration
	// HalfLife controls the exponential time decay: an observation this old
	// contributes half the weight of a current one. Zero disables decay.
	HalfLife time.Duration
	// PersistenceBonus is added per consecutive repeat of a high-correlation
	// label beyond the first.
	PersistenceBonus float64
	// PersistenceCap bounds the total persistence bonus.
	PersistenceCap float64
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:       20,
		HalfLife:         5 * time.Minute,
		PersistenceBonus: 0.05,
		PersistenceCap:   0.15,
	}
}

// Tracker maintains one user's append-only observation history and derives
// risk snapshots from it. Appends are serialized by the caller's single-writer
// discipline; reads take a consistent view under the tracker's lock.
type Tracker struct {
	cfg Config

	mu        sync.RWMutex
	history   []emotion.Fused
	snapshots []Snapshot
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(cfg Config) *Tracker {
	if cfg.PersistenceBonus < 0 {
		cfg.PersistenceBonus = 0
	}
	if cfg.PersistenceCap < 0 {
		cfg.PersistenceCap = 0
	}
	return &Tracker{cfg: cfg}
}

// Observe appends a fused observation and returns the recomputed snapshot.
// Timestamps must be non-decreasing; an out-of-order timestamp is clamped
// forward to preserve the history ordering invariant.
func (t *Tracker) Observe(fused emotion.Fused) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.history); n > 0 && fused.Timestamp.Before(t.history[n-1].Timestamp) {
		fused.Timestamp = t.history[n-1].Timestamp
	}
	t.history = append(t.history, fused)

	snap := t.computeLocked(fused.Timestamp)
	t.snapshots = append(t.snapshots, snap)
	return snap
}

// Snapshot recomputes the current risk from the scoring window without
// appending anything. Empty history yields score 0, level low.
func (t *Tracker) Snapshot(now time.Time) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.computeLocked(now)
}

// RecomputeAll scores the entire history, ignoring the configured window
// size and age. End-of-session reports cover the whole session, not just
// the recent window.
func (t *Tracker) RecomputeAll(now time.Time) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scoreLocked(now, t.history)
}

// History returns a copy of the full observation history in append order.
func (t *Tracker) History() []emotion.Fused {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]emotion.Fused, len(t.history))
	copy(out, t.history)
	return out
}

// Len returns the number of observations recorded.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.history)
}

// Trend reports whether the score has been non-decreasing over the last k
// snapshots. Fewer than two snapshots in range is treated as flat.
func (t *Tracker) Trend(k int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snaps := t.snapshots
	if k > 0 && len(snaps) > k {
		snaps = snaps[len(snaps)-k:]
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Score < snaps[i-1].Score {
			return false
		}
	}
	return true
}

// computeLocked scores the window ending at now. Caller holds at least a
// read lock.
func (t *Tracker) computeLocked(now time.Time) Snapshot {
	return t.scoreLocked(now, t.windowLocked(now))
}

// scoreLocked computes the decayed weighted average plus persistence bonus
// over the given observations. Caller holds at least a read lock.
func (t *Tracker) scoreLocked(now time.Time, window []emotion.Fused) Snapshot {
	if len(window) == 0 {
		return Snapshot{Score: 0, Level: LevelLow, Timestamp: now}
	}

	var weightedSum, weightTotal float64
	for _, obs := range window {
		w := obs.Confidence * t.decay(now.Sub(obs.Timestamp))
		weightedSum += Correlation(obs.Label) * w
		weightTotal += w
	}

	score := 0.0
	if weightTotal > 0 {
		score = weightedSum / weightTotal
	}

	score += t.persistenceBonusLocked(window)
	score = clampScore(score)

	return Snapshot{Score: score, Level: Classify(score), Timestamp: now}
}

// windowLocked selects the most recent observations per the configured
// window size and age.
func (t *Tracker) windowLocked(now time.Time) []emotion.Fused {
	window := t.history
	if t.cfg.WindowSize > 0 && len(window) > t.cfg.WindowSize {
		window = window[len(window)-t.cfg.WindowSize:]
	}
	if t.cfg.WindowAge > 0 {
		cutoff := now.Add(-t.cfg.WindowAge)
		start := len(window)
		for i := len(window) - 1; i >= 0; i-- {
			if window[i].Timestamp.Before(cutoff) {
				break
			}
			start = i
		}
		window = window[start:]
	}
	return window
}

// persistenceBonusLocked adds a bounded penalty when the same
// high-correlation label dominates the tail of the window: persistent
// negative emotion increases risk beyond the decayed average.
func (t *Tracker) persistenceBonusLocked(window []emotion.Fused) float64 {
	if len(window) == 0 || t.cfg.PersistenceBonus <= 0 {
		return 0
	}

	last := window[len(window)-1].Label
	if Correlation(last) < persistenceThreshold {
		return 0
	}

	run := 0
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Label != last {
			break
		}
		run++
	}
	if run < 2 {
		return 0
	}

	bonus := float64(run-1) * t.cfg.PersistenceBonus
	if bonus > t.cfg.PersistenceCap {
		bonus = t.cfg.PersistenceCap
	}
	return bonus
}

func (t *Tracker) decay(age time.Duration) float64 {
	if t.cfg.HalfLife <= 0 || age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(t.cfg.HalfLife))
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mindwell-dev/mindwell/internal/emotion"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fusedAt(label emotion.Label, confidence float64, at time.Time) emotion.Fused {
	return emotion.Fused{
		Label:      label,
		Confidence: confidence,
		Modalities: []emotion.Modality{emotion.ModalityText},
		Timestamp:  at,
	}
}

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  Level
	}{
		{"zero", 0.0, LevelLow},
		{"just below low boundary", 0.29, LevelLow},
		{"low boundary belongs to moderate", 0.3, LevelModerate},
		{"mid moderate", 0.45, LevelModerate},
		{"high boundary belongs to moderate", 0.6, LevelModerate},
		{"just above high boundary", 0.61, LevelHigh},
		{"max", 1.0, LevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.score))
		})
	}
}

func TestCorrelationTable(t *testing.T) {
	assert.Equal(t, 0.8, Correlation(emotion.LabelSadness))
	assert.Equal(t, 0.6, Correlation(emotion.LabelFear))
	assert.Equal(t, 0.5, Correlation(emotion.LabelDisgust))
	assert.Equal(t, 0.4, Correlation(emotion.LabelAnger))
	assert.Equal(t, 0.2, Correlation(emotion.LabelNeutral))
	assert.Equal(t, 0.1, Correlation(emotion.LabelSurprise))
	assert.Equal(t, 0.0, Correlation(emotion.LabelJoy))
	// Unlisted labels score like neutral.
	assert.Equal(t, 0.2, Correlation(emotion.Label("confusion")))
}

func TestEmptyHistory(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	snap := tr.Snapshot(baseTime)

	assert.Equal(t, 0.0, snap.Score)
	assert.Equal(t, LevelLow, snap.Level)
}

func TestWeightedAverageNoDecay(t *testing.T) {
	// HalfLife 0 disables decay so the score is the plain confidence-weighted
	// average of the correlations.
	tr := NewTracker(Config{WindowSize: 20, PersistenceBonus: 0})

	tr.Observe(fusedAt(emotion.LabelSadness, 0.9, baseTime))
	tr.Observe(fusedAt(emotion.LabelSadness, 0.8, baseTime.Add(time.Second)))
	snap := tr.Observe(fusedAt(emotion.LabelJoy, 0.7, baseTime.Add(2*time.Second)))

	// (0.8*0.9 + 0.8*0.8 + 0.0*0.7) / (0.9+0.8+0.7) = 1.36/2.4
	assert.InDelta(t, 0.5667, snap.Score, 0.001)
	assert.Equal(t, LevelModerate, snap.Level)
}

func TestDecayFavorsRecent(t *testing.T) {
	tr := NewTracker(Config{HalfLife: time.Minute})

	tr.Observe(fusedAt(emotion.LabelSadness, 1.0, baseTime))
	old := tr.Snapshot(baseTime)
	assert.InDelta(t, 0.8, old.Score, 1e-9)

	// A joy observation an hour later dominates: the sadness weight decayed
	// through 60 half-lives.
	snap := tr.Observe(fusedAt(emotion.LabelJoy, 1.0, baseTime.Add(time.Hour)))
	assert.Less(t, snap.Score, 0.01)
	assert.Equal(t, LevelLow, snap.Level)
}

func TestPersistenceBonus(t *testing.T) {
	tr := NewTracker(Config{PersistenceBonus: 0.05, PersistenceCap: 0.15})

	tr.Observe(fusedAt(emotion.LabelSadness, 1.0, baseTime))
	first := tr.Snapshot(baseTime)
	assert.InDelta(t, 0.8, first.Score, 1e-9)

	tr.Observe(fusedAt(emotion.LabelSadness, 1.0, baseTime.Add(time.Second)))
	snap := tr.Observe(fusedAt(emotion.LabelSadness, 1.0, baseTime.Add(2*time.Second)))

	// Base 0.8 plus two consecutive repeats beyond the first.
	assert.InDelta(t, 0.9, snap.Score, 1e-9)
	assert.Equal(t, LevelHigh, snap.Level)
}

func TestPersistenceBonusCappedAndBounded(t *testing.T) {
	tr := NewTracker(Config{PersistenceBonus: 0.05, PersistenceCap: 0.15})

	var snap Snapshot
	for i := 0; i < 10; i++ {
		snap = tr.Observe(fusedAt(emotion.LabelSadness, 1.0, baseTime.Add(time.Duration(i)*time.Second)))
	}

	// 0.8 base + capped 0.15 bonus, never above 1.
	assert.InDelta(t, 0.95, snap.Score, 1e-9)
	assert.LessOrEqual(t, snap.Score, 1.0)
}

func TestPersistenceBonusSkipsLowCorrelationLabels(t *testing.T) {
	tr := NewTracker(Config{PersistenceBonus: 0.05, PersistenceCap: 0.15})

	var snap Snapshot
	for i := 0; i < 5; i++ {
		snap = tr.Observe(fusedAt(emotion.LabelAnger, 1.0, baseTime.Add(time.Duration(i)*time.Second)))
	}

	// Anger correlates at 0.4, below the persistence threshold: no bonus.
	assert.InDelta(t, 0.4, snap.Score, 1e-9)
}

func TestScoreAlwaysBounded(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	labels := []emotion.Label{
		emotion.LabelSadness, emotion.LabelSadness, emotion.LabelFear,
		emotion.LabelSadness, emotion.LabelSadness, emotion.LabelSadness,
		emotion.LabelJoy, emotion.LabelSadness, emotion.LabelSadness,
	}
	for i, label := range labels {
		snap := tr.Observe(fusedAt(label, 1.0, baseTime.Add(time.Duration(i)*time.Second)))
		assert.GreaterOrEqual(t, snap.Score, 0.0)
		assert.LessOrEqual(t, snap.Score, 1.0)
		assert.Equal(t, Classify(snap.Score), snap.Level)
	}
}

func TestWindowSizeLimitsScoring(t *testing.T) {
	tr := NewTracker(Config{WindowSize: 2})

	tr.Observe(fusedAt(emotion.LabelSadness, 1.0, baseTime))
	tr.Observe(fusedAt(emotion.LabelJoy, 1.0, baseTime.Add(time.Second)))
	snap := tr.Observe(fusedAt(emotion.LabelJoy, 1.0, baseTime.Add(2*time.Second)))

	// The sadness observation fell out of the two-entry window.
	assert.Equal(t, 0.0, snap.Score)
	// It is still in the full history.
	assert.Equal(t, 3, tr.Len())
}

func TestRecomputeAllIgnoresWindow(t *testing.T) {
	tr := NewTracker(Config{WindowSize: 2})

	for i := 0; i < 3; i++ {
		tr.Observe(fusedAt(emotion.LabelSadness, 1.0, baseTime.Add(time.Duration(i)*time.Second)))
	}
	for i := 3; i < 5; i++ {
		tr.Observe(fusedAt(emotion.LabelJoy, 1.0, baseTime.Add(time.Duration(i)*time.Second)))
	}

	now := baseTime.Add(4 * time.Second)
	// The two-entry window sees only the trailing joy observations.
	assert.Equal(t, 0.0, tr.Snapshot(now).Score)

	// RecomputeAll scores the whole history: (3*0.8 + 2*0.0) / 5.
	full := tr.RecomputeAll(now)
	assert.InDelta(t, 0.48, full.Score, 1e-9)
	assert.Equal(t, LevelModerate, full.Level)
}

func TestHistoryTimestampsNonDecreasing(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	tr.Observe(fusedAt(emotion.LabelJoy, 0.5, baseTime.Add(10*time.Second)))
	// Arrives with an earlier timestamp; must be clamped, not reordered.
	tr.Observe(fusedAt(emotion.LabelSadness, 0.5, baseTime))
	tr.Observe(fusedAt(emotion.LabelFear, 0.5, baseTime.Add(20*time.Second)))

	history := tr.History()
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp),
			"timestamps must be non-decreasing")
	}
}

func TestTrend(t *testing.T) {
	tr := NewTracker(Config{})

	tr.Observe(fusedAt(emotion.LabelNeutral, 1.0, baseTime))
	tr.Observe(fusedAt(emotion.LabelAnger, 1.0, baseTime.Add(time.Second)))
	tr.Observe(fusedAt(emotion.LabelSadness, 1.0, baseTime.Add(2*time.Second)))
	assert.True(t, tr.Trend(3), "rising scores are a non-decreasing trend")

	tr.Observe(fusedAt(emotion.LabelJoy, 1.0, baseTime.Add(3*time.Second)))
	assert.False(t, tr.Trend(3), "a joy observation breaks the trend")
}

package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/risk"
)

var reportTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fused(label emotion.Label, confidence float64) emotion.Fused {
	return emotion.Fused{
		Label:      label,
		Confidence: confidence,
		Modalities: []emotion.Modality{emotion.ModalityText},
		Timestamp:  reportTime,
	}
}

func TestBuildEmptyHistory(t *testing.T) {
	rep := Build("sess-1", nil, risk.Snapshot{Score: 0, Level: risk.LevelLow}, reportTime)

	assert.Equal(t, "sess-1", rep.SessionID)
	assert.Empty(t, rep.Emotions)
	assert.Contains(t, rep.EmotionAnalysis, "isn't enough emotional data")
	assert.Equal(t, risk.LevelLow, rep.RiskLevel)
	require.NotEmpty(t, rep.Recommendations)
	assert.Equal(t, "Practice Mindfulness", rep.Recommendations[0].Title)
}

func TestBuildAggregatesEmotions(t *testing.T) {
	history := []emotion.Fused{
		fused(emotion.LabelSadness, 0.9),
		fused(emotion.LabelSadness, 0.7),
		fused(emotion.LabelJoy, 0.6),
	}
	rep := Build("sess-2", history, risk.Snapshot{Score: 0.5, Level: risk.LevelModerate}, reportTime)

	require.Len(t, rep.Emotions, 2)
	assert.Equal(t, emotion.LabelSadness, rep.Emotions[0].Label)
	assert.Equal(t, 2, rep.Emotions[0].Count)
	assert.InDelta(t, 0.8, rep.Emotions[0].AvgScore, 1e-9)
	assert.Equal(t, emotion.LabelJoy, rep.Emotions[1].Label)
	assert.Contains(t, rep.EmotionAnalysis, "sadness")
}

func TestSummaryBands(t *testing.T) {
	tests := []struct {
		score float64
		level risk.Level
		want  string
	}{
		{0.7, risk.LevelHigh, "significant"},
		{0.45, risk.LevelModerate, "mild to moderate"},
		{0.1, risk.LevelLow, "appears to be low"},
	}
	for _, tt := range tests {
		rep := Build("s", nil, risk.Snapshot{Score: tt.score, Level: tt.level}, reportTime)
		assert.Contains(t, rep.Summary, tt.want, "score %.2f", tt.score)
	}
}

func TestRecommendationsFollowScore(t *testing.T) {
	high := Build("s", nil, risk.Snapshot{Score: 0.8, Level: risk.LevelHigh}, reportTime)
	titles := []string{}
	for _, r := range high.Recommendations {
		titles = append(titles, r.Title)
	}
	assert.Contains(t, titles, "Seek Professional Support")

	low := Build("s", nil, risk.Snapshot{Score: 0.1, Level: risk.LevelLow}, reportTime)
	titles = titles[:0]
	for _, r := range low.Recommendations {
		titles = append(titles, r.Title)
		assert.NotEmpty(t, r.Icon)
	}
	assert.Contains(t, titles, "Maintain Healthy Habits")
}

func TestBuildDeterministic(t *testing.T) {
	history := []emotion.Fused{
		fused(emotion.LabelSadness, 0.9),
		fused(emotion.LabelFear, 0.9),
		fused(emotion.LabelAnger, 0.4),
		fused(emotion.LabelJoy, 0.2),
	}
	snap := risk.Snapshot{Score: 0.55, Level: risk.LevelModerate}

	first := Build("s", history, snap, reportTime)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Build("s", history, snap, reportTime))
	}
}

func TestJoyDominantAnalysis(t *testing.T) {
	history := []emotion.Fused{
		fused(emotion.LabelJoy, 0.9),
		fused(emotion.LabelNeutral, 0.3),
	}
	rep := Build("s", history, risk.Snapshot{Score: 0.05, Level: risk.LevelLow}, reportTime)
	assert.Contains(t, rep.EmotionAnalysis, "positive outlook")
}

package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwell-dev/mindwell/internal/emotion"
)

var fuseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFuseEmptyInput(t *testing.T) {
	e := NewEngine()

	fused := e.Fuse(fuseTime)

	assert.Equal(t, emotion.LabelNeutral, fused.Label)
	assert.Equal(t, 0.0, fused.Confidence)
	assert.Empty(t, fused.Modalities)
	assert.True(t, fused.NoSignal())
	assert.Equal(t, fuseTime, fused.Timestamp)
}

func TestFuseAllSourcesFailed(t *testing.T) {
	e := NewEngine()

	fused := e.Fuse(fuseTime,
		emotion.FailedObservation(emotion.ModalityText, "timeout", fuseTime),
		emotion.FailedObservation(emotion.ModalityImage, "unreachable", fuseTime),
	)

	assert.Equal(t, emotion.LabelNeutral, fused.Label)
	assert.Equal(t, 0.0, fused.Confidence)
	assert.True(t, fused.NoSignal())
}

func TestFuseSingleModality(t *testing.T) {
	e := NewEngine()

	fused := e.Fuse(fuseTime,
		emotion.NewObservation(emotion.ModalityText, emotion.LabelSadness, 0.9, fuseTime))

	assert.Equal(t, emotion.LabelSadness, fused.Label)
	// One surviving observation owns the full vote.
	assert.Equal(t, 1.0, fused.Confidence)
	assert.Equal(t, []emotion.Modality{emotion.ModalityText}, fused.Modalities)
	assert.False(t, fused.NoSignal())
}

func TestFuseTextOutweighsImage(t *testing.T) {
	e := NewEngine()

	fused := e.Fuse(fuseTime,
		emotion.NewObservation(emotion.ModalityText, emotion.LabelSadness, 0.8, fuseTime),
		emotion.NewObservation(emotion.ModalityImage, emotion.LabelJoy, 0.8, fuseTime),
	)

	// text 0.5*0.8 = 0.40 vs image 0.3*0.8 = 0.24
	assert.Equal(t, emotion.LabelSadness, fused.Label)
	assert.InDelta(t, 0.40/0.64, fused.Confidence, 1e-9)
	assert.Equal(t, []emotion.Modality{emotion.ModalityText, emotion.ModalityImage}, fused.Modalities)
}

func TestFuseHighConfidenceImageCanWin(t *testing.T) {
	e := NewEngine()

	fused := e.Fuse(fuseTime,
		emotion.NewObservation(emotion.ModalityText, emotion.LabelNeutral, 0.3, fuseTime),
		emotion.NewObservation(emotion.ModalityImage, emotion.LabelFear, 0.95, fuseTime),
	)

	// text 0.5*0.3 = 0.15 vs image 0.3*0.95 = 0.285
	assert.Equal(t, emotion.LabelFear, fused.Label)
}

func TestFuseAudioInheritsTextWeightWithoutText(t *testing.T) {
	e := NewEngine()

	fused := e.Fuse(fuseTime,
		emotion.NewObservation(emotion.ModalityAudio, emotion.LabelAnger, 0.7, fuseTime),
		emotion.NewObservation(emotion.ModalityImage, emotion.LabelJoy, 0.9, fuseTime),
	)

	// audio promoted to 0.5*0.7 = 0.35 vs image 0.3*0.9 = 0.27
	assert.Equal(t, emotion.LabelAnger, fused.Label)
}

func TestFuseAudioKeepsOwnWeightWithText(t *testing.T) {
	e := NewEngine()

	fused := e.Fuse(fuseTime,
		emotion.NewObservation(emotion.ModalityText, emotion.LabelJoy, 0.6, fuseTime),
		emotion.NewObservation(emotion.ModalityAudio, emotion.LabelAnger, 0.9, fuseTime),
	)

	// text 0.5*0.6 = 0.30 vs audio 0.2*0.9 = 0.18
	assert.Equal(t, emotion.LabelJoy, fused.Label)
}

func TestFuseTieBreaksByModalityPriority(t *testing.T) {
	e := NewEngine()

	// Both labels tally 0.5*0.6 = 0.3 vs 0.3*1.0 = 0.3.
	fused := e.Fuse(fuseTime,
		emotion.NewObservation(emotion.ModalityText, emotion.LabelSadness, 0.6, fuseTime),
		emotion.NewObservation(emotion.ModalityImage, emotion.LabelJoy, 1.0, fuseTime),
	)

	assert.Equal(t, emotion.LabelSadness, fused.Label)
}

func TestFuseDiscardsFailedSources(t *testing.T) {
	e := NewEngine()

	fused := e.Fuse(fuseTime,
		emotion.NewObservation(emotion.ModalityImage, emotion.LabelJoy, 0.8, fuseTime),
		emotion.FailedObservation(emotion.ModalityText, "circuit open", fuseTime),
	)

	assert.Equal(t, emotion.LabelJoy, fused.Label)
	assert.Equal(t, []emotion.Modality{emotion.ModalityImage}, fused.Modalities)
}

func TestFuseDeterminism(t *testing.T) {
	e := NewEngine()
	inputs := []emotion.Observation{
		emotion.NewObservation(emotion.ModalityText, emotion.LabelSadness, 0.61, fuseTime),
		emotion.NewObservation(emotion.ModalityImage, emotion.LabelFear, 0.83, fuseTime),
		emotion.NewObservation(emotion.ModalityAudio, emotion.LabelSadness, 0.42, fuseTime),
	}

	first := e.Fuse(fuseTime, inputs...)
	for i := 0; i < 100; i++ {
		again := e.Fuse(fuseTime, inputs...)
		require.Equal(t, first, again)
	}
}

func TestFuseConfidenceBounded(t *testing.T) {
	e := NewEngine()

	cases := [][]emotion.Observation{
		{emotion.NewObservation(emotion.ModalityText, emotion.LabelJoy, 1.0, fuseTime)},
		{
			emotion.NewObservation(emotion.ModalityText, emotion.LabelJoy, 1.0, fuseTime),
			emotion.NewObservation(emotion.ModalityImage, emotion.LabelJoy, 1.0, fuseTime),
			emotion.NewObservation(emotion.ModalityAudio, emotion.LabelJoy, 1.0, fuseTime),
		},
		{
			emotion.NewObservation(emotion.ModalityText, emotion.LabelJoy, 0.01, fuseTime),
			emotion.NewObservation(emotion.ModalityImage, emotion.LabelSadness, 0.01, fuseTime),
		},
	}
	for _, inputs := range cases {
		fused := e.Fuse(fuseTime, inputs...)
		assert.GreaterOrEqual(t, fused.Confidence, 0.0)
		assert.LessOrEqual(t, fused.Confidence, 1.0)
	}
}

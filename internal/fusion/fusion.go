// Package fusion combines per-modality emotion observations captured within
// one fusion window into a single fused estimate using a weighted label vote.
package fusion

import (
	"time"

	"github.com/mindwell-dev/mindwell/internal/emotion"
)

// Default per-modality trust weights. Text carries the strongest signal,
// the camera the weakest after it, audio the least because it is scored
// through its transcript.
const (
	DefaultTextWeight  = 0.5
	DefaultImageWeight = 0.3
	DefaultAudioWeight = 0.2
)

// Engine fuses simultaneous observations. Engines are stateless and safe for
// concurrent use; identical input sets always produce identical output.
type Engine struct {
	weights map[emotion.Modality]float64
}

// NewEngine creates a fusion engine with the default trust weights.
func NewEngine() *Engine {
	return &Engine{
		weights: map[emotion.Modality]float64{
			emotion.ModalityText:  DefaultTextWeight,
			emotion.ModalityImage: DefaultImageWeight,
			emotion.ModalityAudio: DefaultAudioWeight,
		},
	}
}

// Fuse combines zero or more observations, at most one per modality.
// Observations whose source failed are discarded. An empty surviving set
// yields the explicit no-signal result: neutral label, zero confidence,
// empty modality set.
func (e *Engine) Fuse(at time.Time, observations ...emotion.Observation) emotion.Fused {
	surviving := make([]emotion.Observation, 0, len(observations))
	hasText := false
	for _, obs := range observations {
		if !obs.SourceOK {
			continue
		}
		surviving = append(surviving, obs)
		if obs.Modality == emotion.ModalityText {
			hasText = true
		}
	}

	if len(surviving) == 0 {
		return emotion.Fused{
			Label:      emotion.LabelNeutral,
			Confidence: 0,
			Modalities: []emotion.Modality{},
			Timestamp:  at,
		}
	}

	// Weighted vote: weight = modality trust weight x confidence, summed per
	// label. Audio inherits the text weight when no text observation is
	// present, since its transcript stands in for the text channel.
	type tally struct {
		weight   float64
		bestPrio int
	}
	tallies := make(map[emotion.Label]*tally)
	var totalWeight float64
	modalities := make([]emotion.Modality, 0, len(surviving))

	for _, obs := range surviving {
		w := e.weights[obs.Modality]
		if obs.Modality == emotion.ModalityAudio && !hasText {
			w = e.weights[emotion.ModalityText]
		}
		weight := w * obs.Confidence
		totalWeight += weight
		modalities = append(modalities, obs.Modality)

		t, ok := tallies[obs.Label]
		if !ok {
			t = &tally{bestPrio: obs.Modality.Priority()}
			tallies[obs.Label] = t
		}
		t.weight += weight
		if p := obs.Modality.Priority(); p < t.bestPrio {
			t.bestPrio = p
		}
	}

	// Pick the label with the highest summed weight; break ties by the fixed
	// modality priority order (text > image > audio).
	var winner emotion.Label
	var winning *tally
	for label, t := range tallies {
		if winning == nil {
			winner, winning = label, t
			continue
		}
		if t.weight > winning.weight {
			winner, winning = label, t
			continue
		}
		if t.weight == winning.weight {
			if t.bestPrio < winning.bestPrio ||
				(t.bestPrio == winning.bestPrio && label < winner) {
				winner, winning = label, t
			}
		}
	}

	confidence := 0.0
	if totalWeight > 0 {
		confidence = winning.weight / totalWeight
	}

	emotion.SortModalities(modalities)
	return emotion.Fused{
		Label:      winner,
		Confidence: emotion.ClampConfidence(confidence),
		Modalities: modalities,
		Timestamp:  at,
	}
}

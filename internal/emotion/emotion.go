// Package emotion defines the domain types shared by analyzers, fusion and
// risk tracking: per-modality observations and fused emotional-state estimates.
package emotion

import (
	"sort"
	"strings"
	"time"
)

// Modality identifies one input channel.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// Priority returns the fixed ordering used to break fusion ties.
// Lower values win (text > image > audio).
func (m Modality) Priority() int {
	switch m {
	case ModalityText:
		return 0
	case ModalityImage:
		return 1
	case ModalityAudio:
		return 2
	default:
		return 3
	}
}

// Label is an emotion class produced by a classifier. The set is open:
// analyzers may emit labels beyond the well-known ones below.
type Label string

const (
	LabelJoy      Label = "joy"
	LabelSadness  Label = "sadness"
	LabelAnger    Label = "anger"
	LabelFear     Label = "fear"
	LabelDisgust  Label = "disgust"
	LabelSurprise Label = "surprise"
	LabelNeutral  Label = "neutral"
)

// KnownLabels lists the labels the bundled classifiers emit, in a stable order.
var KnownLabels = []Label{
	LabelJoy, LabelSadness, LabelAnger, LabelFear,
	LabelDisgust, LabelSurprise, LabelNeutral,
}

// NormalizeLabel lower-cases and trims a raw classifier label.
func NormalizeLabel(raw string) Label {
	return Label(strings.ToLower(strings.TrimSpace(raw)))
}

// Observation is a single per-modality emotion reading. Observations are
// immutable once created. A failed classification is represented by
// SourceOK=false with a neutral label; FailReason is for logging only and
// never surfaced to users.
type Observation struct {
	Modality   Modality  `json:"modality"`
	Label      Label     `json:"label"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	SourceOK   bool      `json:"source_ok"`
	FailReason string    `json:"-"`
}

// NewObservation builds a successful observation, clamping confidence to [0,1].
func NewObservation(modality Modality, label Label, confidence float64, at time.Time) Observation {
	return Observation{
		Modality:   modality,
		Label:      label,
		Confidence: ClampConfidence(confidence),
		Timestamp:  at,
		SourceOK:   true,
	}
}

// FailedObservation builds the placeholder emitted when a modality could not
// be classified. It carries no usable label and is discarded by fusion.
func FailedObservation(modality Modality, reason string, at time.Time) Observation {
	return Observation{
		Modality:   modality,
		Label:      LabelNeutral,
		Confidence: 0,
		Timestamp:  at,
		SourceOK:   false,
		FailReason: reason,
	}
}

// Fused is the single emotional-state estimate combining the available
// modality observations inside one fusion window. Produced exactly once per
// fusion call and never mutated.
type Fused struct {
	Label      Label      `json:"label"`
	Confidence float64    `json:"confidence"`
	Modalities []Modality `json:"modalities"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NoSignal reports whether this is the explicit "no signal" state emitted
// when every modality was missing or failed, as opposed to a genuine neutral
// classification.
func (f Fused) NoSignal() bool {
	return len(f.Modalities) == 0
}

// SortModalities orders a modality set by priority so fused observations
// compare deterministically.
func SortModalities(ms []Modality) {
	sort.Slice(ms, func(i, j int) bool {
		return ms[i].Priority() < ms[j].Priority()
	})
}

// ClampConfidence bounds a classifier confidence to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

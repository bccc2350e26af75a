// Package analyzer provides the per-modality emotion classifiers. Each
// analyzer wraps an external inference service behind one capability
// contract: Classify never fails from the caller's point of view — when the
// service is missing, slow, or erroring, it returns a placeholder observation
// with SourceOK=false and the failure is logged and counted, not surfaced.
package analyzer

import (
	"context"
	"log"
	"time"

	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/tracing"
	"github.com/mindwell-dev/mindwell/pkg/guard"
	"github.com/mindwell-dev/mindwell/pkg/observability"
)

// Analyzer classifies a raw payload for one fixed modality.
type Analyzer interface {
	// Modality returns the input channel this analyzer handles.
	Modality() emotion.Modality

	// Classify maps a payload to an emotion observation. It never returns an
	// error; internal failures yield a SourceOK=false observation.
	Classify(ctx context.Context, payload []byte) emotion.Observation
}

// Set bundles the analyzers by modality. Any member may be nil when the
// corresponding inference service is not configured; callers receive a
// failed observation for that modality.
type Set struct {
	Text  Analyzer
	Image Analyzer
	Audio Analyzer
}

// ForModality returns the analyzer for a modality, or nil.
func (s Set) ForModality(m emotion.Modality) Analyzer {
	switch m {
	case emotion.ModalityText:
		return s.Text
	case emotion.ModalityImage:
		return s.Image
	case emotion.ModalityAudio:
		return s.Audio
	}
	return nil
}

// classifyFunc runs one classification attempt against the backing service.
type classifyFunc func(ctx context.Context) (emotion.Label, float64, error)

// runClassify wraps a classification attempt with the shared failure
// handling: circuit breaker, timeout, confidence clamping, metrics and
// logging. It is the single place where analyzer errors become placeholder
// observations.
func runClassify(ctx context.Context, modality emotion.Modality, breaker *guard.CircuitBreaker, timeout time.Duration, fn classifyFunc) emotion.Observation {
	ctx, span := tracing.StartSpan(ctx, "analyzer.classify", map[string]any{
		"modality": string(modality),
	})
	defer span.End()

	start := time.Now()
	now := start

	var label emotion.Label
	var confidence float64

	attempt := func() error {
		cctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		var err error
		label, confidence, err = fn(cctx)
		return err
	}

	var err error
	if breaker != nil {
		err = breaker.Execute(attempt)
	} else {
		err = attempt()
	}

	observability.RecordClassification(string(modality), err == nil, time.Since(start))

	if err != nil {
		span.SetError(err)
		log.Printf("analyzer %s: classification failed: %v", modality, err)
		return emotion.FailedObservation(modality, err.Error(), now)
	}
	span.SetAttribute("label", string(label))
	return emotion.NewObservation(modality, label, confidence, now)
}

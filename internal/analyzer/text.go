package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/pkg/guard"
)

// TextAnalyzer classifies user text through a text-classification inference
// service.
type TextAnalyzer struct {
	client  *inferenceClient
	breaker *guard.CircuitBreaker
	timeout time.Duration
}

// TextConfig configures the text analyzer.
type TextConfig struct {
	// Endpoint is the text-classification service URL.
	Endpoint string
	// APIKey authorizes calls to the service (optional).
	APIKey string
	// Timeout bounds a single classification call.
	Timeout time.Duration
}

// NewTextAnalyzer creates a text analyzer.
func NewTextAnalyzer(cfg TextConfig) *TextAnalyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TextAnalyzer{
		client:  newInferenceClient(cfg.Endpoint, cfg.APIKey),
		breaker: guard.NewCircuitBreaker(3, 30*time.Second),
		timeout: timeout,
	}
}

// Modality returns the text channel.
func (a *TextAnalyzer) Modality() emotion.Modality {
	return emotion.ModalityText
}

// Classify classifies a UTF-8 text payload.
func (a *TextAnalyzer) Classify(ctx context.Context, payload []byte) emotion.Observation {
	return runClassify(ctx, emotion.ModalityText, a.breaker, a.timeout, func(ctx context.Context) (emotion.Label, float64, error) {
		text := strings.TrimSpace(string(payload))
		if text == "" {
			return "", 0, fmt.Errorf("empty text payload")
		}
		result, err := a.client.classify(ctx, text)
		if err != nil {
			return "", 0, err
		}
		return emotion.NormalizeLabel(result.Label), result.Score, nil
	})
}

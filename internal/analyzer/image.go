package analyzer

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/pkg/guard"
)

// ImageAnalyzer classifies webcam frames through a facial-emotion
// image-classification inference service.
type ImageAnalyzer struct {
	client  *inferenceClient
	breaker *guard.CircuitBreaker
	timeout time.Duration
}

// ImageConfig configures the image analyzer.
type ImageConfig struct {
	// Endpoint is the image-classification service URL.
	Endpoint string
	// APIKey authorizes calls to the service (optional).
	APIKey string
	// Timeout bounds a single classification call.
	Timeout time.Duration
}

// NewImageAnalyzer creates an image analyzer.
func NewImageAnalyzer(cfg ImageConfig) *ImageAnalyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ImageAnalyzer{
		client:  newInferenceClient(cfg.Endpoint, cfg.APIKey),
		breaker: guard.NewCircuitBreaker(3, 30*time.Second),
		timeout: timeout,
	}
}

// Modality returns the image channel.
func (a *ImageAnalyzer) Modality() emotion.Modality {
	return emotion.ModalityImage
}

// Classify classifies raw image bytes. The frame is base64-encoded for the
// JSON pipeline wire format.
func (a *ImageAnalyzer) Classify(ctx context.Context, payload []byte) emotion.Observation {
	return runClassify(ctx, emotion.ModalityImage, a.breaker, a.timeout, func(ctx context.Context) (emotion.Label, float64, error) {
		if len(payload) == 0 {
			return "", 0, fmt.Errorf("empty image payload")
		}
		encoded := base64.StdEncoding.EncodeToString(payload)
		result, err := a.client.classify(ctx, encoded)
		if err != nil {
			return "", 0, err
		}
		return emotion.NormalizeLabel(result.Label), result.Score, nil
	})
}

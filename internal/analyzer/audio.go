package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/pkg/guard"
)

// AudioAnalyzer classifies speech in two hops: a speech-to-text service
// produces a transcript, which is then scored by the text classifier. The
// resulting observation carries the audio modality so fusion can weight it
// separately from a typed message.
type AudioAnalyzer struct {
	stt     *inferenceClient
	text    *TextAnalyzer
	breaker *guard.CircuitBreaker
	timeout time.Duration
}

// AudioConfig configures the audio analyzer.
type AudioConfig struct {
	// TranscribeEndpoint is the speech-to-text service URL.
	TranscribeEndpoint string
	// APIKey authorizes calls to the service (optional).
	APIKey string
	// Timeout bounds the combined transcribe-then-classify call.
	Timeout time.Duration
}

// NewAudioAnalyzer creates an audio analyzer delegating emotion scoring to
// the given text analyzer.
func NewAudioAnalyzer(cfg AudioConfig, text *TextAnalyzer) *AudioAnalyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AudioAnalyzer{
		stt:     newInferenceClient(cfg.TranscribeEndpoint, cfg.APIKey),
		text:    text,
		breaker: guard.NewCircuitBreaker(3, 30*time.Second),
		timeout: timeout,
	}
}

// Modality returns the audio channel.
func (a *AudioAnalyzer) Modality() emotion.Modality {
	return emotion.ModalityAudio
}

// Classify transcribes raw audio bytes and scores the transcript.
func (a *AudioAnalyzer) Classify(ctx context.Context, payload []byte) emotion.Observation {
	return runClassify(ctx, emotion.ModalityAudio, a.breaker, a.timeout, func(ctx context.Context) (emotion.Label, float64, error) {
		if len(payload) == 0 {
			return "", 0, fmt.Errorf("empty audio payload")
		}
		if a.text == nil {
			return "", 0, fmt.Errorf("no text analyzer to score transcript")
		}

		transcript, err := a.stt.transcribe(ctx, payload)
		if err != nil {
			return "", 0, fmt.Errorf("transcribe: %w", err)
		}
		if strings.TrimSpace(transcript) == "" {
			return "", 0, fmt.Errorf("empty transcript")
		}

		obs := a.text.Classify(ctx, []byte(transcript))
		if !obs.SourceOK {
			return "", 0, fmt.Errorf("score transcript: %s", obs.FailReason)
		}
		return obs.Label, obs.Confidence, nil
	})
}

// Package mindwell assembles the emotion fusion and risk-scoring engine
// from configuration: per-modality analyzers, the reply generator with its
// rule-based fallback, the persistence backend and the session
// orchestrator.
package mindwell

import (
	"fmt"
	"log"

	"github.com/mindwell-dev/mindwell/internal/analyzer"
	"github.com/mindwell-dev/mindwell/internal/orchestrator"
	"github.com/mindwell-dev/mindwell/internal/responder"
	"github.com/mindwell-dev/mindwell/pkg/config"
	"github.com/mindwell-dev/mindwell/pkg/store"
)

// New builds the orchestrator from configuration. frames may be nil to
// disable background sampling.
func New(cfg *config.Config, frames orchestrator.FrameSource) (*orchestrator.Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	analyzers := buildAnalyzers(cfg)

	backend, err := buildBackend(cfg)
	if err != nil {
		return nil, err
	}

	generator, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}
	resp := responder.New(generator, cfg.Generator.Timeout)

	ocfg := orchestrator.DefaultConfig()
	ocfg.FusionWindow = cfg.FusionWindow
	ocfg.SampleInterval = cfg.SampleInterval
	ocfg.SampleTimeout = cfg.SampleTimeout
	ocfg.Risk.WindowSize = cfg.Risk.WindowSize
	ocfg.Risk.WindowAge = cfg.Risk.WindowAge
	ocfg.Risk.HalfLife = cfg.Risk.HalfLife
	ocfg.Risk.PersistenceBonus = cfg.Risk.PersistenceBonus
	ocfg.Risk.PersistenceCap = cfg.Risk.PersistenceCap

	return orchestrator.New(ocfg, analyzers, resp, backend, frames), nil
}

func buildAnalyzers(cfg *config.Config) *analyzer.Set {
	text := analyzer.NewTextAnalyzer(analyzer.TextConfig{
		Endpoint: cfg.Analyzers.TextURL,
		APIKey:   cfg.Analyzers.HuggingFaceKey,
		Timeout:  cfg.Analyzers.TextTimeout,
	})
	image := analyzer.NewImageAnalyzer(analyzer.ImageConfig{
		Endpoint: cfg.Analyzers.ImageURL,
		APIKey:   cfg.Analyzers.HuggingFaceKey,
		Timeout:  cfg.Analyzers.ImageTimeout,
	})
	audio := analyzer.NewAudioAnalyzer(analyzer.AudioConfig{
		TranscribeEndpoint: cfg.Analyzers.SpeechURL,
		APIKey:             cfg.Analyzers.HuggingFaceKey,
		Timeout:            cfg.Analyzers.AudioTimeout,
	}, text)
	return &analyzer.Set{Text: text, Image: image, Audio: audio}
}

func buildBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return store.NewMemoryBackend(), nil
	case "file":
		backend, err := store.NewFileBackend(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("create file backend: %w", err)
		}
		return backend, nil
	case "redis":
		backend, err := store.NewRedisBackend(store.RedisConfig{
			Addr:       cfg.Storage.RedisAddr,
			Password:   cfg.Storage.RedisPassword,
			DB:         cfg.Storage.RedisDB,
			SessionTTL: cfg.Storage.SessionTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis backend: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

func buildGenerator(cfg *config.Config) (responder.Generator, error) {
	switch cfg.Generator.Provider {
	case "none":
		log.Printf("mindwell: no generator configured, replies use the rule-based fallback")
		return nil, nil
	case "ollama":
		gen, err := responder.NewOllamaGenerator(cfg.Generator.OllamaURL, cfg.Generator.Model)
		if err != nil {
			return nil, fmt.Errorf("create ollama generator: %w", err)
		}
		return gen, nil
	case "openai":
		gen, err := responder.NewOpenAIGenerator(cfg.Generator.OpenAIKey, cfg.Generator.Model)
		if err != nil {
			return nil, fmt.Errorf("create openai generator: %w", err)
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown generator provider: %q", cfg.Generator.Provider)
	}
}

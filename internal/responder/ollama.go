package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindwell-dev/mindwell/internal/chat"
	"github.com/mindwell-dev/mindwell/internal/llm/ollama"
)

// OllamaGenerator produces replies through a local Ollama server.
type OllamaGenerator struct {
	client *ollama.Client
	model  string
}

// NewOllamaGenerator creates a generator backed by the Ollama chat API.
func NewOllamaGenerator(baseURL, model string) (*OllamaGenerator, error) {
	client, err := ollama.NewClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaGenerator{client: client, model: model}, nil
}

func (g *OllamaGenerator) Name() string { return "ollama" }

// Generate sends the system prompt plus the recent conversation tail to
// Ollama and returns the assistant reply.
func (g *OllamaGenerator) Generate(ctx context.Context, history []chat.Turn, emo EmotionalContext) (string, error) {
	messages := []ollama.Message{
		{Role: "system", Content: systemPrompt(emo)},
	}
	for _, turn := range recentTurns(history) {
		if turn.Role == chat.RoleSystem {
			continue
		}
		messages = append(messages, ollama.Message{
			Role:    string(turn.Role),
			Content: turn.Text,
		})
	}

	reply, err := g.client.Chat(ctx, g.model, messages)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// Available reports whether the Ollama server answers and has the model.
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	return g.client.Available(ctx) && g.client.HasModel(ctx, g.model)
}

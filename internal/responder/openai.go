package responder

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mindwell-dev/mindwell/internal/chat"
)

// OpenAIClient is the subset of the OpenAI API the generator uses. Tests
// substitute a mock.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator produces replies through the OpenAI chat completion API.
// It is the hosted alternative to the local Ollama generator.
type OpenAIGenerator struct {
	client OpenAIClient
	model  string
}

// NewOpenAIGenerator creates a generator using the given API key.
func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// NewOpenAIGeneratorWithClient creates a generator with an injected client.
func NewOpenAIGeneratorWithClient(client OpenAIClient, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: client, model: model}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

// Generate sends the system prompt plus the recent conversation tail to the
// chat completion API and returns the assistant reply.
func (g *OpenAIGenerator) Generate(ctx context.Context, history []chat.Turn, emo EmotionalContext) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(emo)},
	}
	for _, turn := range recentTurns(history) {
		if turn.Role == chat.RoleSystem {
			continue
		}
		role := openai.ChatMessageRoleUser
		if turn.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Text,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

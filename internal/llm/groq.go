package llm

import (
	"context"
	"fmt"

	"cart-meal-planner/internal/config"
	"cart-meal-planner/internal/shared"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

const systemPrompt = "You suggest weekly meals from a fixed grocery list. Reply with JSON only."

// GroqClient talks to Groq's OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	client openai.Client
	model  string
}

// NewGroqClient creates a new Groq API client.
func NewGroqClient(cfg *config.Config) *GroqClient {
	return newOpenAICompatible(cfg.GroqModel,
		option.WithAPIKey(cfg.GroqAPIKey),
		option.WithBaseURL(groqBaseURL),
	)
}

func newOpenAICompatible(model string, opts ...option.RequestOption) *GroqClient {
	return &GroqClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// GenerateContent sends a prompt to the Groq model and returns the generated text.
func (c *GroqClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return ContentResponse{}, fmt.Errorf("groq api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ContentResponse{}, fmt.Errorf("no content generated")
	}

	return ContentResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: shared.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
			Model:            c.model,
		},
	}, nil
}

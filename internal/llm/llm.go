package llm

import (
	"context"
	"fmt"

	"cart-meal-planner/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// Fallback tries each generator in order until one succeeds.
type Fallback []TextGenerator

func (f Fallback) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	var lastErr error
	for _, g := range f {
		resp, err := g.GenerateContent(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return ContentResponse{}, ctx.Err()
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no text generator configured")
	}
	return ContentResponse{}, lastErr
}

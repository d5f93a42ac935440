package llm

import (
	"context"

	"github.com/parkerduff/assistant/chat"
	"github.com/parkerduff/assistant/errors"
)

// Client is the interface for interacting with a Large Language Model.
// Each call is stateless; the full conversation travels in the request.
type Client interface {
	Chat(ctx context.Context, req *chat.Request) (*chat.Response, error)
}

// NewClient builds a chat client for the named provider. Credentials are
// read from the environment by the individual constructors.
func NewClient(ctx context.Context, provider, model string) (Client, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicClient(ctx, model)
	case "openai":
		return NewOpenAIClient(ctx, model)
	case "bedrock":
		return NewBedrockClient(ctx, model)
	case "gemini":
		return NewGeminiClient(ctx, model)
	default:
		return nil, errors.New("unknown LLM provider %q", provider)
	}
}

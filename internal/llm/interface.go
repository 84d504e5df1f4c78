package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Client is minimal subset of openai.Client used by the completer; it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Turn is one role-tagged prompt message.
type Turn struct {
	Role    string
	Content string
}

// Options tunes a single completion request. A zero Temperature means
// deterministic sampling, not the API default.
type Options struct {
	MaxTokens   int
	Temperature float32
}

// Completer turns an ordered list of turns into reply text. Every failure
// wraps ErrCompletion.
type Completer interface {
	Complete(ctx context.Context, turns []Turn, opts Options) (string, error)
}

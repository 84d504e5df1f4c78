package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/comigor/chatlog-go/internal/config"
	"github.com/sashabaranov/go-openai"
)

// ErrCompletion marks any transport, quota or model failure of the completion service.
var ErrCompletion = errors.New("completion failed")

// NewClient creates a new OpenAI client
func NewClient(cfg config.LLMConfig) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(config)
}

// OpenAI implements Completer on top of an OpenAI-compatible chat API.
type OpenAI struct {
	client Client
	model  string
}

// NewOpenAI wraps client; model names the chat model sent with each request.
func NewOpenAI(client Client, model string) *OpenAI {
	return &OpenAI{client: client, model: model}
}

func (o *OpenAI) Complete(ctx context.Context, turns []Turn, opts Options) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: temperature(opts.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrCompletion)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty content", ErrCompletion)
	}
	return content, nil
}

// temperature keeps an explicit 0 on the wire; the request field is omitempty.
func temperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

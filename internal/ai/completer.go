package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/creditmeter-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Request is a single-prompt completion.
type Request struct {
	Model     string
	Prompt    string
	MaxTokens int64
}

// Result carries the text and the token usage reported by the provider.
type Result struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Completer runs a completion against an AI provider.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}

// OpenAICompleter calls the chat completions API.
type OpenAICompleter struct {
	client openai.Client
}

// NewOpenAICompleter builds a completer from config. Extra options are
// appended after the config-derived ones.
func NewOpenAICompleter(cfg config.OpenAIConfig, extra ...option.RequestOption) (*OpenAICompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)
	return &OpenAICompleter{client: openai.NewClient(opts...)}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (*Result, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "completion request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "completion returned no choices")
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &Result{
		Text:         resp.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

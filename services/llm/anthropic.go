package llmsvc

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencegpt/core/llm"
)

type AnthropicClient struct {
	client anthropic.Client
}

var _ llm.Client = (*AnthropicClient)(nil)

func NewAnthropicClient(apiKey, baseURL string) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // the gateway retries
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

func (c *AnthropicClient) Complete(ctx context.Context, cfg llm.ProviderConfig, system, user string) (llm.Completion, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cfg.Model),
		MaxTokens:   int64(cfg.MaxTokens),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
		Temperature: anthropic.Float(cfg.Temperature),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return llm.Completion{}, &llm.APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return llm.Completion{}, err
	}

	var content strings.Builder
	for _, block := range msg.Content {
		content.WriteString(block.Text)
	}
	if content.Len() == 0 {
		return llm.Completion{}, errors.New("empty completion")
	}
	return llm.Completion{
		Content:    content.String(),
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		Metadata: map[string]string{
			"model":       string(msg.Model),
			"stop_reason": string(msg.StopReason),
		},
	}, nil
}

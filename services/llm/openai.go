package llmsvc

import (
	"context"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencegpt/core/llm"
)

// OpenAIClient calls an OpenAI compatible chat completions API. Groq exposes one too.
type OpenAIClient struct {
	client openai.Client
}

var _ llm.Client = (*OpenAIClient)(nil)

func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // the gateway retries
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

func (c *OpenAIClient) Complete(ctx context.Context, cfg llm.ProviderConfig, system, user string) (llm.Completion, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxTokens:   openai.Int(int64(cfg.MaxTokens)),
		Temperature: openai.Float(cfg.Temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return llm.Completion{}, &llm.APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return llm.Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return llm.Completion{}, errors.New("empty completion")
	}

	choice := resp.Choices[0]
	return llm.Completion{
		Content:    choice.Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
		Metadata: map[string]string{
			"model":         resp.Model,
			"finish_reason": string(choice.FinishReason),
		},
	}, nil
}

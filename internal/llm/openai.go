package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/ternchat/tern/internal/store"
)

// OpenAI talks to the OpenAI chat completions API, or any compatible gateway
// via a custom base URL.
type OpenAI struct {
	client openai.Client
}

func NewOpenAI(apiKey, baseURL string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

func (o *OpenAI) Kind() string { return "openai" }

func (o *OpenAI) SendChat(ctx context.Context, history []store.Message, opts Options, onDelta DeltaFunc) (*Completion, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	for _, m := range historyWithSystem(history, opts) {
		switch m.Role {
		case store.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case store.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(opts.Model),
		Messages: msgs,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(opts.MaxTokens)
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	var completion Completion
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 {
			if text := chunk.Choices[0].Delta.Content; text != "" {
				if err := onDelta(text); err != nil {
					return nil, err
				}
			}
		}
		if chunk.Usage.CompletionTokens > 0 {
			n := chunk.Usage.CompletionTokens
			completion.TokenLength = &n
		}
	}
	if err := stream.Err(); err != nil {
		return nil, mapOpenAIError(err)
	}
	return &completion, nil
}

func mapOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return wrapKind(statusKind(apierr.StatusCode), fmt.Sprintf("openai: status %d", apierr.StatusCode), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return wrapKind(KindTransport, "openai: request failed", err)
}

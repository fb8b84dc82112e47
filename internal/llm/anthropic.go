package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternchat/tern/internal/store"
)

const anthropicDefaultMaxTokens = 4096

// Anthropic streams chat replies from the Anthropic messages API.
type Anthropic struct {
	client anthropic.Client
}

func NewAnthropic(apiKey string) *Anthropic {
	return &Anthropic{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (a *Anthropic) Kind() string { return "anthropic" }

func (a *Anthropic) SendChat(ctx context.Context, history []store.Message, opts Options, onDelta DeltaFunc) (*Completion, error) {
	var msgs []anthropic.MessageParam
	var system string
	for _, m := range historyWithSystem(history, opts) {
		switch m.Role {
		case store.RoleSystem:
			// Anthropic takes the system prompt out of band.
			system = m.Content
		case store.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	var completion Completion
	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				if err := onDelta(delta.Text); err != nil {
					return nil, err
				}
			}
		case anthropic.MessageDeltaEvent:
			if ev.Usage.OutputTokens > 0 {
				n := ev.Usage.OutputTokens
				completion.TokenLength = &n
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, mapAnthropicError(err)
	}
	return &completion, nil
}

func mapAnthropicError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return wrapKind(statusKind(apierr.StatusCode), fmt.Sprintf("anthropic: status %d", apierr.StatusCode), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return wrapKind(KindTransport, "anthropic: request failed", err)
}

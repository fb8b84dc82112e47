// Package llm is the model-backend capability: one interface, one
// implementation per provider. Callers never depend on a concrete provider.
package llm

import (
	"context"

	"github.com/ternchat/tern/internal/store"
)

// Options tunes a single chat call.
type Options struct {
	Model        string // provider-side model id
	MaxTokens    int64  // 0 means provider default
	SystemPrompt string // prepended when the history carries none
}

// Completion reports what a finished stream produced beyond its deltas.
type Completion struct {
	// TokenLength is the provider-reported completion token count, nil when
	// the provider does not report one.
	TokenLength *int64
}

// DeltaFunc receives each streamed text fragment in arrival order. Returning
// an error aborts the stream.
type DeltaFunc func(text string) error

// Backend sends a conversation history to a model and streams the reply.
// SendChat blocks until the stream finishes, the context is cancelled, or the
// provider fails; failures are *Error values carrying a Kind.
type Backend interface {
	Kind() string
	SendChat(ctx context.Context, history []store.Message, opts Options, onDelta DeltaFunc) (*Completion, error)
}

// historyWithSystem prepends opts.SystemPrompt unless the history already
// opens with a system message.
func historyWithSystem(history []store.Message, opts Options) []store.Message {
	if opts.SystemPrompt == "" {
		return history
	}
	if len(history) > 0 && history[0].Role == store.RoleSystem {
		return history
	}
	out := make([]store.Message, 0, len(history)+1)
	out = append(out, store.Message{Role: store.RoleSystem, Content: opts.SystemPrompt})
	return append(out, history...)
}

package llm

import (
	"context"

	"github.com/ternchat/tern/internal/store"
)

// Scripted replays a fixed delta sequence. It stands in for a real provider
// in tests and in the --dry-run path.
type Scripted struct {
	Deltas []string
	// FailAfter aborts with Err once that many deltas have been delivered.
	// -1 (the zero value via NewScripted) disables failure injection.
	FailAfter int
	Err       error
	// Tokens is reported as the completion token length when positive.
	Tokens int64
	// Gate, when non-nil, is received from before each delta so tests can
	// control pacing and cancellation windows.
	Gate <-chan struct{}
}

func NewScripted(deltas ...string) *Scripted {
	return &Scripted{Deltas: deltas, FailAfter: -1}
}

func (s *Scripted) Kind() string { return "scripted" }

func (s *Scripted) SendChat(ctx context.Context, history []store.Message, opts Options, onDelta DeltaFunc) (*Completion, error) {
	for i, d := range s.Deltas {
		if s.FailAfter >= 0 && i == s.FailAfter {
			return nil, s.Err
		}
		if s.Gate != nil {
			select {
			case <-s.Gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := onDelta(d); err != nil {
			return nil, err
		}
	}
	if s.FailAfter >= 0 && s.FailAfter >= len(s.Deltas) {
		return nil, s.Err
	}
	var completion Completion
	if s.Tokens > 0 {
		n := s.Tokens
		completion.TokenLength = &n
	}
	return &completion, nil
}

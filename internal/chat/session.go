package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ternchat/tern/internal/llm"
	"github.com/ternchat/tern/internal/store"
)

// ErrStreamInFlight reports a submit while a reply is still streaming. The
// policy is reject, not queue: the caller retries after the active stream
// completes or is cancelled.
var ErrStreamInFlight = errors.New("chat: a reply is already streaming")

// Event is one step of a streaming reply, delivered to the foreground loop.
// Exactly one Done event closes every stream; buffers are only ever mutated
// by whoever consumes these events.
type Event struct {
	StreamID string
	Delta    string // non-empty on delta events
	Done     bool
	// Persisted is set on the final event when the assistant message was
	// committed. Cancelled or failed streams leave it false: the partial
	// text stays visible but is not part of the conversation.
	Persisted   bool
	TokenLength *int64
	Err         error
}

// Session orchestrates one active conversation: it writes through the
// facade, drives the model backend, and hands deltas back as events. At most
// one stream is active at a time.
type Session struct {
	db      *DB
	backend llm.Backend
	opts    llm.Options

	mu       sync.Mutex
	inFlight bool
	cancel   context.CancelFunc
	streamID string
}

func NewSession(db *DB, backend llm.Backend, opts llm.Options) *Session {
	return &Session{db: db, backend: backend, opts: opts}
}

func (s *Session) DB() *DB { return s.db }

// SetBackend swaps the model backend for subsequent submits.
func (s *Session) SetBackend(b llm.Backend, opts llm.Options) {
	s.mu.Lock()
	s.backend = b
	s.opts = opts
	s.mu.Unlock()
}

// InFlight reports whether a reply is currently streaming.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Submit persists the user message, opens a backend stream, and returns the
// event channel for it. The channel is closed after its Done event. Submit
// fails with ErrStreamInFlight while a previous stream is active, and with a
// *PersistenceError when the user message cannot be stored (in which case no
// stream starts).
func (s *Session) Submit(ctx context.Context, prompt string) (<-chan Event, error) {
	// Claim the stream slot before touching the store so two concurrent
	// submits can never both pass the guard.
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrStreamInFlight
	}
	s.inFlight = true
	backend, opts := s.backend, s.opts
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}

	if _, ok := s.db.Active(); !ok {
		release()
		return nil, ErrNoActiveConversation
	}
	if _, err := s.db.AppendMessage(store.RoleUser, prompt, nil); err != nil {
		release()
		return nil, err
	}

	history, err := s.db.Messages()
	if err != nil {
		release()
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()

	s.mu.Lock()
	s.cancel = cancel
	s.streamID = id
	s.mu.Unlock()

	ch := make(chan Event, 16)
	go s.run(streamCtx, ch, id, backend, opts, history)
	return ch, nil
}

func (s *Session) run(ctx context.Context, ch chan<- Event, id string, backend llm.Backend, opts llm.Options, history []store.Message) {
	defer close(ch)
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.cancel = nil
		s.streamID = ""
		s.mu.Unlock()
	}()

	var answer strings.Builder
	completion, err := backend.SendChat(ctx, history, opts, func(text string) error {
		answer.WriteString(text)
		select {
		case ch <- Event{StreamID: id, Delta: text}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)):
		// Cancelled: partial text stays on screen, nothing is persisted, so
		// the store and cache hold no trace of the unfinished exchange.
		ch <- Event{StreamID: id, Done: true}
	case err != nil:
		ch <- Event{StreamID: id, Done: true, Err: err}
	default:
		var tokens *int64
		if completion != nil {
			tokens = completion.TokenLength
		}
		if _, perr := s.db.AppendMessage(store.RoleAssistant, answer.String(), tokens); perr != nil {
			ch <- Event{StreamID: id, Done: true, Err: perr}
			return
		}
		ch <- Event{StreamID: id, Done: true, Persisted: true, TokenLength: tokens}
	}
}

// Cancel stops the active stream. Cancelling an already-finished or
// already-cancelled stream is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternchat/tern/internal/llm"
	"github.com/ternchat/tern/internal/store"
)

// drain consumes a stream, returning the concatenated deltas and the final
// event.
func drain(t *testing.T, ch <-chan Event) (string, Event) {
	t.Helper()
	var text strings.Builder
	var final Event
	for ev := range ch {
		if ev.Delta != "" {
			text.WriteString(ev.Delta)
		}
		if ev.Done {
			final = ev
		}
	}
	if !final.Done {
		t.Fatal("stream closed without a Done event")
	}
	return text.String(), final
}

func TestSession_StreamAndPersist(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.NewConversation("C1", store.ModelSpec{})

	backend := llm.NewScripted("Hi", " there", "!")
	backend.Tokens = 3
	s := NewSession(db, backend, llm.Options{Model: "m"})

	ch, err := s.Submit(context.Background(), "Hello")
	if err != nil {
		t.Fatal(err)
	}
	text, final := drain(t, ch)

	if text != "Hi there!" {
		t.Errorf("streamed = %q, want %q", text, "Hi there!")
	}
	if !final.Persisted {
		t.Error("final event not marked persisted")
	}
	if final.TokenLength == nil || *final.TokenLength != 3 {
		t.Errorf("token length = %v, want 3", final.TokenLength)
	}

	msgs, err := db.st.LoadConversation(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != store.RoleUser || msgs[0].Content != "Hello" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != store.RoleAssistant || msgs[1].Content != "Hi there!" {
		t.Errorf("assistant message = %+v", msgs[1])
	}
	if msgs[1].TokenLength == nil || *msgs[1].TokenLength != 3 {
		t.Errorf("persisted token length = %v", msgs[1].TokenLength)
	}
}

func TestSession_CancelKeepsPartialUnpersisted(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.NewConversation("C1", store.ModelSpec{})

	gate := make(chan struct{})
	backend := llm.NewScripted("Hi", " there", "!")
	backend.Gate = gate
	s := NewSession(db, backend, llm.Options{Model: "m"})

	ch, err := s.Submit(context.Background(), "Hello")
	if err != nil {
		t.Fatal(err)
	}

	gate <- struct{}{} // let "Hi" through
	var got string
	for ev := range ch {
		if ev.Delta != "" {
			got += ev.Delta
			s.Cancel()
			s.Cancel() // double cancel is a no-op
		}
		if ev.Done {
			if ev.Persisted {
				t.Error("cancelled stream marked persisted")
			}
			if ev.Err != nil {
				t.Errorf("cancelled stream carries error: %v", ev.Err)
			}
		}
	}
	if got != "Hi" {
		t.Errorf("partial = %q, want %q", got, "Hi")
	}

	// Only the user message made it to the store.
	msgs, _ := db.st.LoadConversation(id)
	if len(msgs) != 1 || msgs[0].Role != store.RoleUser {
		t.Errorf("messages = %+v, want only the user message", msgs)
	}
}

func TestSession_CancelAfterFinishIsNoop(t *testing.T) {
	db := openTestDB(t)
	db.NewConversation("C1", store.ModelSpec{})
	s := NewSession(db, llm.NewScripted("done"), llm.Options{})

	ch, _ := s.Submit(context.Background(), "go")
	drain(t, ch)

	s.Cancel() // already finished
	s.Cancel()
	if s.InFlight() {
		t.Error("session stuck in flight")
	}

	// The session accepts a fresh submit afterwards.
	ch, err := s.Submit(context.Background(), "again")
	if err != nil {
		t.Fatal(err)
	}
	drain(t, ch)
}

func TestSession_RejectsConcurrentSubmit(t *testing.T) {
	db := openTestDB(t)
	db.NewConversation("C1", store.ModelSpec{})

	gate := make(chan struct{})
	backend := llm.NewScripted("slow")
	backend.Gate = gate
	s := NewSession(db, backend, llm.Options{})

	ch, err := s.Submit(context.Background(), "first")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Submit(context.Background(), "second"); !errors.Is(err, ErrStreamInFlight) {
		t.Errorf("err = %v, want ErrStreamInFlight", err)
	}

	close(gate)
	drain(t, ch)

	// After completion a new submit goes through.
	ch, err = s.Submit(context.Background(), "third")
	if err != nil {
		t.Fatal(err)
	}
	drain(t, ch)
}

func TestSession_BackendErrorSurfaces(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.NewConversation("C1", store.ModelSpec{})

	backend := llm.NewScripted("par", "tial")
	backend.FailAfter = 2
	backend.Err = &llm.Error{Kind: llm.KindRateLimited, Message: "slow down"}
	s := NewSession(db, backend, llm.Options{})

	ch, _ := s.Submit(context.Background(), "q")
	text, final := drain(t, ch)

	if text != "partial" {
		t.Errorf("partial = %q", text)
	}
	if final.Persisted {
		t.Error("failed stream marked persisted")
	}
	if llm.KindOf(final.Err) != llm.KindRateLimited {
		t.Errorf("kind = %v, want rate limited", llm.KindOf(final.Err))
	}

	msgs, _ := db.st.LoadConversation(id)
	if len(msgs) != 1 {
		t.Errorf("messages = %d, want only the user message", len(msgs))
	}
}

func TestSession_SubmitWithoutConversation(t *testing.T) {
	db := openTestDB(t)
	s := NewSession(db, llm.NewScripted("x"), llm.Options{})
	if _, err := s.Submit(context.Background(), "hi"); !errors.Is(err, ErrNoActiveConversation) {
		t.Errorf("err = %v, want ErrNoActiveConversation", err)
	}
}

func TestSession_InFlightFlagClears(t *testing.T) {
	db := openTestDB(t)
	db.NewConversation("C1", store.ModelSpec{})
	s := NewSession(db, llm.NewScripted("a"), llm.Options{})

	ch, _ := s.Submit(context.Background(), "x")
	drain(t, ch)

	deadline := time.After(time.Second)
	for s.InFlight() {
		select {
		case <-deadline:
			t.Fatal("in-flight flag never cleared")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSession_ParallelSubmitsHaveOneWinner(t *testing.T) {
	db := openTestDB(t)
	db.NewConversation("C1", store.ModelSpec{})

	gate := make(chan struct{})
	backend := llm.NewScripted("x")
	backend.Gate = gate
	s := NewSession(db, backend, llm.Options{})

	type result struct {
		ch  <-chan Event
		err error
	}
	results := make(chan result, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ch, err := s.Submit(context.Background(), "hello")
			results <- result{ch: ch, err: err}
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var winner <-chan Event
	winners := 0
	for r := range results {
		if r.err == nil {
			winners++
			winner = r.ch
			continue
		}
		if !errors.Is(r.err, ErrStreamInFlight) {
			t.Fatalf("loser err = %v, want ErrStreamInFlight", r.err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly one stream", winners)
	}

	close(gate)
	if text, final := drain(t, winner); text != "x" || !final.Persisted {
		t.Fatalf("winner stream = %q, persisted=%v", text, final.Persisted)
	}

	msgs, err := db.Messages()
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want exactly one exchange", len(msgs))
	}
}

func TestSession_FailedSubmitReleasesSlot(t *testing.T) {
	db := openTestDB(t)
	s := NewSession(db, llm.NewScripted("a"), llm.Options{})

	// No conversation bound: the submit fails before any stream starts.
	if _, err := s.Submit(context.Background(), "x"); !errors.Is(err, ErrNoActiveConversation) {
		t.Fatalf("err = %v, want ErrNoActiveConversation", err)
	}
	if s.InFlight() {
		t.Fatal("failed submit left the in-flight flag set")
	}

	db.NewConversation("C1", store.ModelSpec{})
	ch, err := s.Submit(context.Background(), "x")
	if err != nil {
		t.Fatalf("submit after failed submit: %v", err)
	}
	drain(t, ch)
}

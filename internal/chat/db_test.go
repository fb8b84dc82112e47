package chat

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ternchat/tern/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return NewDB(st)
}

func TestDB_UnboundOperationsFail(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.AppendMessage(store.RoleUser, "x", nil); !errors.Is(err, ErrNoActiveConversation) {
		t.Errorf("append: err = %v, want ErrNoActiveConversation", err)
	}
	if err := db.UpdatePinStatus(true, nil); !errors.Is(err, ErrNoActiveConversation) {
		t.Errorf("pin: err = %v, want ErrNoActiveConversation", err)
	}
	if _, err := db.Messages(); !errors.Is(err, ErrNoActiveConversation) {
		t.Errorf("messages: err = %v, want ErrNoActiveConversation", err)
	}
}

func TestDB_PinActiveConversation(t *testing.T) {
	db := openTestDB(t)
	id, err := db.NewConversation("pinned", store.ModelSpec{})
	if err != nil {
		t.Fatal(err)
	}

	if err := db.UpdatePinStatus(true, nil); err != nil {
		t.Fatal(err)
	}
	list, err := db.List(store.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != id || !list[0].Pinned {
		t.Errorf("list = %+v", list)
	}

	// Explicit target overrides the active binding.
	other, _ := db.st.CreateConversation("other", store.ModelSpec{})
	if err := db.UpdatePinStatus(true, &other); err != nil {
		t.Fatal(err)
	}
	list, _ = db.List(store.ListFilter{PinnedOnly: true})
	if len(list) != 2 {
		t.Errorf("pinned = %d, want 2", len(list))
	}
}

func TestDB_WriteThroughVisibility(t *testing.T) {
	db := openTestDB(t)
	db.NewConversation("t", store.ModelSpec{})

	if _, err := db.AppendMessage(store.RoleUser, "hello", nil); err != nil {
		t.Fatal(err)
	}
	// The read after the acknowledged write must see it, and it must come
	// from the cache.
	msgs, err := db.Messages()
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Errorf("messages = %+v", msgs)
	}
	db.cacheMu.Lock()
	n := db.cache.Len()
	db.cacheMu.Unlock()
	if n != 1 {
		t.Errorf("cache entries = %d, want 1", n)
	}
}

func TestDB_CacheDiscardMatchesStore(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.NewConversation("durable", store.ModelSpec{})
	db.AppendMessage(store.RoleUser, "Hello", nil)
	db.AppendMessage(store.RoleAssistant, "Hi there!", nil)

	before, err := db.Messages()
	if err != nil {
		t.Fatal(err)
	}

	// Simulated crash-and-restart: drop the cache, rebind, reread.
	db.DropCache()
	db.Bind(id)
	after, err := db.Messages()
	if err != nil {
		t.Fatal(err)
	}

	if len(before) != len(after) {
		t.Fatalf("len %d != %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Role != after[i].Role || before[i].Content != after[i].Content || before[i].Position != after[i].Position {
			t.Errorf("message %d diverged: %+v vs %+v", i, before[i], after[i])
		}
	}
}

func TestDB_UnbindEvictsCacheOnly(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.NewConversation("kept", store.ModelSpec{})
	db.AppendMessage(store.RoleUser, "hi", nil)

	db.Unbind()
	if _, ok := db.Active(); ok {
		t.Error("still bound after Unbind")
	}
	db.cacheMu.Lock()
	n := db.cache.Len()
	db.cacheMu.Unlock()
	if n != 0 {
		t.Errorf("cache entries = %d after unbind, want 0", n)
	}

	// The store copy survives.
	db.Bind(id)
	msgs, err := db.Messages()
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Errorf("messages = %d, want 1", len(msgs))
	}
}

func TestDB_FailedWriteResyncsCache(t *testing.T) {
	db := openTestDB(t)
	db.NewConversation("t", store.ModelSpec{})
	db.AppendMessage(store.RoleUser, "ok", nil)

	// An invalid role fails inside the store transaction; the cache must
	// still match the store afterwards.
	_, err := db.AppendMessage(store.Role("bogus"), "x", nil)
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PersistenceError", err)
	}

	msgs, err := db.Messages()
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "ok" {
		t.Errorf("messages after failed write = %+v", msgs)
	}
}

func TestDB_ForkBindsBranch(t *testing.T) {
	db := openTestDB(t)
	parent, _ := db.NewConversation("parent", store.ModelSpec{})
	db.AppendMessage(store.RoleUser, "one", nil)
	msgs, _ := db.Messages()

	branch, err := db.Fork("branch", msgs[0].ID, store.ModelSpec{})
	if err != nil {
		t.Fatal(err)
	}
	if active, _ := db.Active(); active != branch {
		t.Errorf("active = %d, want branch %d", active, branch)
	}
	conv, err := db.Conversation()
	if err != nil {
		t.Fatal(err)
	}
	if conv.Fork == nil || conv.Fork.ParentID != parent {
		t.Errorf("fork ref = %+v", conv.Fork)
	}
}

func TestDB_ProfileOpsThroughFacade(t *testing.T) {
	db := openTestDB(t)
	provID, err := db.CreateProvider(store.Provider{Name: "p", Kind: "ollama"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateProfile(store.Profile{Name: "daily", ProviderID: provID, Model: "llama3"}); err != nil {
		t.Fatal(err)
	}
	p, err := db.GetProfileByName("daily")
	if err != nil {
		t.Fatal(err)
	}
	if p.ProviderID != provID {
		t.Errorf("profile = %+v", p)
	}

	if _, err := db.CreateProfile(store.Profile{Name: "daily", ProviderID: provID}); err == nil {
		t.Error("duplicate profile accepted")
	}
}

package chat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ternchat/tern/internal/store"
)

// ErrNoActiveConversation reports an operation that needs a bound
// conversation when none is set.
var ErrNoActiveConversation = errors.New("chat: no active conversation")

// PersistenceError wraps a failed store write. In-memory state survives it,
// so the caller can surface a banner and retry.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// DB is the conversation database facade: the store plus the write-through
// cache behind one handle scoped to the active conversation. All mutation
// from the session and the modals passes through here; nothing else touches
// the store or cache directly.
//
// One mutex guards the store and one guards the cache. They are never held
// simultaneously, and never across a backend call, so a slow model stream
// cannot block unrelated readers.
type DB struct {
	st    *store.Store
	cache *Cache

	storeMu sync.Mutex
	cacheMu sync.Mutex

	activeMu sync.Mutex
	active   store.ConversationID // 0 means unbound
}

func NewDB(st *store.Store) *DB {
	return &DB{st: st, cache: NewCache()}
}

// Active returns the bound conversation id, if any.
func (d *DB) Active() (store.ConversationID, bool) {
	d.activeMu.Lock()
	defer d.activeMu.Unlock()
	return d.active, d.active != 0
}

// Bind makes id the active conversation.
func (d *DB) Bind(id store.ConversationID) {
	d.activeMu.Lock()
	d.active = id
	d.activeMu.Unlock()
}

// Unbind clears the active conversation and evicts it from the cache; the
// store copy is untouched.
func (d *DB) Unbind() {
	d.activeMu.Lock()
	id := d.active
	d.active = 0
	d.activeMu.Unlock()

	if id != 0 {
		d.cacheMu.Lock()
		d.cache.Evict(id)
		d.cacheMu.Unlock()
	}
}

// target resolves an explicit id or falls back to the active conversation.
func (d *DB) target(id *store.ConversationID) (store.ConversationID, error) {
	if id != nil {
		return *id, nil
	}
	if active, ok := d.Active(); ok {
		return active, nil
	}
	return 0, ErrNoActiveConversation
}

// refresh re-reads a conversation from the store into the cache. The store is
// the source of truth: this runs after every successful write, and after a
// failed one, so an optimistic cache entry never outlives a rolled-back
// transaction.
func (d *DB) refresh(id store.ConversationID) {
	d.storeMu.Lock()
	conv, convErr := d.st.GetConversation(id)
	msgs, msgsErr := d.st.LoadConversation(id)
	d.storeMu.Unlock()

	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	if convErr != nil || msgsErr != nil {
		d.cache.Evict(id)
		return
	}
	d.cache.Put(conv, msgs)
}

// NewConversation creates a conversation, caches it, and binds it.
func (d *DB) NewConversation(title string, model store.ModelSpec) (store.ConversationID, error) {
	d.storeMu.Lock()
	id, err := d.st.CreateConversation(title, model)
	d.storeMu.Unlock()
	if err != nil {
		return 0, &PersistenceError{Op: "create conversation", Cause: err}
	}
	d.refresh(id)
	d.Bind(id)
	return id, nil
}

// Fork branches the active conversation at a message and binds the new
// branch.
func (d *DB) Fork(title string, at store.MessageID, model store.ModelSpec) (store.ConversationID, error) {
	parent, ok := d.Active()
	if !ok {
		return 0, ErrNoActiveConversation
	}
	d.storeMu.Lock()
	id, err := d.st.ForkConversation(title, store.ForkRef{ParentID: parent, MessageID: at}, model)
	d.storeMu.Unlock()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
		return 0, &PersistenceError{Op: "fork conversation", Cause: err}
	}
	d.refresh(id)
	d.Bind(id)
	return id, nil
}

// AppendMessage appends to the active conversation and refreshes the cache
// before acknowledging.
func (d *DB) AppendMessage(role store.Role, content string, tokenLength *int64) (store.MessageID, error) {
	id, err := d.target(nil)
	if err != nil {
		return 0, err
	}
	d.storeMu.Lock()
	msgID, err := d.st.AppendMessage(id, role, content, tokenLength)
	d.storeMu.Unlock()
	if err != nil {
		d.refresh(id) // resync: drop any optimistic cache state
		return 0, &PersistenceError{Op: "append message", Cause: err}
	}
	d.refresh(id)
	return msgID, nil
}

// UpdatePinStatus pins or unpins the given conversation, or the active one
// when id is nil.
func (d *DB) UpdatePinStatus(pinned bool, id *store.ConversationID) error {
	conv, err := d.target(id)
	if err != nil {
		return err
	}
	d.storeMu.Lock()
	err = d.st.UpdatePinStatus(conv, pinned)
	d.storeMu.Unlock()
	if err != nil {
		d.refresh(conv)
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return &PersistenceError{Op: "update pin", Cause: err}
	}
	d.refresh(conv)
	return nil
}

// SetTitle renames the active conversation.
func (d *DB) SetTitle(title string) error {
	id, err := d.target(nil)
	if err != nil {
		return err
	}
	d.storeMu.Lock()
	err = d.st.SetTitle(id, title)
	d.storeMu.Unlock()
	if err != nil {
		d.refresh(id)
		return &PersistenceError{Op: "set title", Cause: err}
	}
	d.refresh(id)
	return nil
}

// Messages returns the active conversation's ordered messages, from the
// cache when warm, reconstructing from the store otherwise.
func (d *DB) Messages() ([]store.Message, error) {
	id, err := d.target(nil)
	if err != nil {
		return nil, err
	}

	d.cacheMu.Lock()
	_, msgs, ok := d.cache.Get(id)
	d.cacheMu.Unlock()
	if ok {
		return msgs, nil
	}

	d.refresh(id)
	d.cacheMu.Lock()
	_, msgs, ok = d.cache.Get(id)
	d.cacheMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("conversation %d: %w", id, store.ErrNotFound)
	}
	return msgs, nil
}

// Conversation returns the active conversation row.
func (d *DB) Conversation() (store.Conversation, error) {
	id, err := d.target(nil)
	if err != nil {
		return store.Conversation{}, err
	}

	d.cacheMu.Lock()
	conv, _, ok := d.cache.Get(id)
	d.cacheMu.Unlock()
	if ok {
		return conv, nil
	}

	d.refresh(id)
	d.cacheMu.Lock()
	conv, _, ok = d.cache.Get(id)
	d.cacheMu.Unlock()
	if !ok {
		return store.Conversation{}, fmt.Errorf("conversation %d: %w", id, store.ErrNotFound)
	}
	return conv, nil
}

// List reads conversations straight from the store; listings are not cached.
func (d *DB) List(f store.ListFilter) ([]store.Conversation, error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()
	return d.st.ListConversations(f)
}

// Provider, profile, and template operations used by the modals. They pass
// through the facade so the store mutex stays the single serialization point.

func (d *DB) CreateProvider(p store.Provider) (int64, error) {
	d.storeMu.Lock()
	id, err := d.st.CreateProvider(p)
	d.storeMu.Unlock()
	if err != nil {
		return 0, &PersistenceError{Op: "create provider", Cause: err}
	}
	return id, nil
}

func (d *DB) ListProviders() ([]store.Provider, error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()
	return d.st.ListProviders()
}

func (d *DB) GetProviderByName(name string) (store.Provider, error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()
	return d.st.GetProviderByName(name)
}

func (d *DB) GetProvider(id int64) (store.Provider, error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()
	return d.st.GetProvider(id)
}

func (d *DB) CreateProfile(p store.Profile) (int64, error) {
	d.storeMu.Lock()
	id, err := d.st.CreateProfile(p)
	d.storeMu.Unlock()
	if err != nil {
		return 0, &PersistenceError{Op: "create profile", Cause: err}
	}
	return id, nil
}

func (d *DB) ListProfiles() ([]store.Profile, error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()
	return d.st.ListProfiles()
}

func (d *DB) GetProfileByName(name string) (store.Profile, error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()
	return d.st.GetProfileByName(name)
}

func (d *DB) CreatePromptTemplate(name, content string) (int64, error) {
	d.storeMu.Lock()
	id, err := d.st.CreatePromptTemplate(name, content)
	d.storeMu.Unlock()
	if err != nil {
		return 0, &PersistenceError{Op: "create template", Cause: err}
	}
	return id, nil
}

func (d *DB) ListPromptTemplates() ([]store.PromptTemplate, error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()
	return d.st.ListPromptTemplates()
}

func (d *DB) GetPromptTemplate(name string) (store.PromptTemplate, error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()
	return d.st.GetPromptTemplate(name)
}

// DropCache discards every cache entry. Reads after this reconstruct from
// the store, which is what a process restart does implicitly.
func (d *DB) DropCache() {
	d.cacheMu.Lock()
	d.cache = NewCache()
	d.cacheMu.Unlock()
}

// Package chat composes the durable store, an in-memory cache, and the
// streaming session protocol behind one conversation-scoped handle.
package chat

import "github.com/ternchat/tern/internal/store"

type cacheEntry struct {
	conv store.Conversation
	msgs []store.Message
}

// Cache mirrors store rows for the conversations touched in this session. It
// is write-through: DB refreshes an entry from the store before a write is
// acknowledged, so readers never see state older than the last acknowledged
// write. It has no durability of its own; a restart rebuilds it lazily.
//
// Cache does no locking. All access goes through DB, which serializes it.
type Cache struct {
	entries map[store.ConversationID]*cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[store.ConversationID]*cacheEntry)}
}

// Get returns the cached conversation and its messages, if present.
func (c *Cache) Get(id store.ConversationID) (store.Conversation, []store.Message, bool) {
	e, ok := c.entries[id]
	if !ok {
		return store.Conversation{}, nil, false
	}
	// Callers receive a copy of the slice header; they must not mutate the
	// backing array. DB replaces the whole entry on refresh.
	return e.conv, e.msgs, true
}

// Put replaces the entry for the conversation.
func (c *Cache) Put(conv store.Conversation, msgs []store.Message) {
	c.entries[conv.ID] = &cacheEntry{conv: conv, msgs: msgs}
}

// Evict drops the entry; the next read reconstructs it from the store.
func (c *Cache) Evict(id store.ConversationID) {
	delete(c.entries, id)
}

// Len reports how many conversations are cached.
func (c *Cache) Len() int { return len(c.entries) }

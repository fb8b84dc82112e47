package store

import "time"

// ConversationID identifies a conversation row. IDs are assigned
// monotonically by SQLite.
type ConversationID int64

// MessageID identifies a message row.
type MessageID int64

// Role is who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ModelSpec names which backend and model a conversation talks to.
type ModelSpec struct {
	Server string // provider kind: openai, anthropic, bedrock, ollama
	Name   string // provider-side model identifier
}

// ForkRef points at the place a conversation branched from.
type ForkRef struct {
	ParentID  ConversationID
	MessageID MessageID
}

type Conversation struct {
	ID        ConversationID
	Title     string
	CreatedAt time.Time
	Pinned    bool
	Fork      *ForkRef // nil unless the conversation was forked
	Model     ModelSpec
}

type Message struct {
	ID             MessageID
	ConversationID ConversationID
	Role           Role
	Content        string
	TokenLength    *int64 // nil until a model reports a count
	Position       int
	CreatedAt      time.Time
}

// ListFilter narrows ListConversations. The zero value lists everything,
// newest first.
type ListFilter struct {
	PinnedOnly    bool
	TitleContains string
	Limit         int // 0 means no limit
}

type Provider struct {
	ID           int64
	Name         string
	Kind         string // matches ModelSpec.Server
	BaseURL      string
	SecretKey    string // key into the external secret store, not the secret
	DefaultModel string
	CreatedAt    time.Time
}

type Profile struct {
	ID           int64
	Name         string
	ProviderID   int64
	Model        string
	SystemPrompt string
	CreatedAt    time.Time
}

type PromptTemplate struct {
	ID        int64
	Name      string
	Content   string
	CreatedAt time.Time
}

package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CreateConversation inserts an empty conversation and returns its id.
func (s *Store) CreateConversation(title string, model ModelSpec) (ConversationID, error) {
	var id ConversationID
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO conversations (title, created_at, model_server, model_name)
			VALUES (?, ?, ?, ?)`,
			title, time.Now().Unix(), model.Server, model.Name)
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		n, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = ConversationID(n)
		return nil
	})
	return id, err
}

// ForkConversation creates a new conversation branched from parent at the
// given message. Messages up to and including the fork point are copied into
// the new conversation in the same transaction, so the fork loads standalone.
func (s *Store) ForkConversation(title string, at ForkRef, model ModelSpec) (ConversationID, error) {
	var id ConversationID
	err := s.withTx(func(tx *sql.Tx) error {
		var forkPos int
		err := tx.QueryRow(
			`SELECT position FROM messages WHERE id = ? AND conversation_id = ?`,
			at.MessageID, at.ParentID).Scan(&forkPos)
		if err == sql.ErrNoRows {
			return fmt.Errorf("fork point %d in conversation %d: %w", at.MessageID, at.ParentID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("resolve fork point: %w", err)
		}

		res, err := tx.Exec(`
			INSERT INTO conversations (title, created_at, parent_id, fork_message_id, model_server, model_name)
			VALUES (?, ?, ?, ?, ?, ?)`,
			title, time.Now().Unix(), at.ParentID, at.MessageID, model.Server, model.Name)
		if err != nil {
			return fmt.Errorf("insert fork: %w", err)
		}
		n, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = ConversationID(n)

		_, err = tx.Exec(`
			INSERT INTO messages (conversation_id, role, content, token_length, position, created_at)
			SELECT ?, role, content, token_length, position, created_at
			FROM messages
			WHERE conversation_id = ? AND position <= ?
			ORDER BY position`,
			id, at.ParentID, forkPos)
		if err != nil {
			return fmt.Errorf("copy messages: %w", err)
		}
		return nil
	})
	return id, err
}

// AppendMessage adds a message at the next position of the conversation.
// Position assignment happens inside the transaction, so concurrent appends
// cannot interleave.
func (s *Store) AppendMessage(conv ConversationID, role Role, content string, tokenLength *int64) (MessageID, error) {
	if !role.Valid() {
		return 0, fmt.Errorf("append message: unknown role %q", role)
	}
	var id MessageID
	err := s.withTx(func(tx *sql.Tx) error {
		// FK enforcement rejects unknown conversations, but checking first
		// gives a clearer error than a constraint failure.
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM conversations WHERE id = ?`, conv).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("conversation %d: %w", conv, ErrNotFound)
		}
		if err != nil {
			return err
		}

		res, err := tx.Exec(`
			INSERT INTO messages (conversation_id, role, content, token_length, position, created_at)
			SELECT ?, ?, ?, ?, COALESCE(MAX(position) + 1, 0), ?
			FROM messages WHERE conversation_id = ?`,
			conv, role, content, tokenLength, time.Now().Unix(), conv)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		n, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = MessageID(n)
		return nil
	})
	return id, err
}

// UpdatePinStatus sets the pin flag on a conversation.
func (s *Store) UpdatePinStatus(conv ConversationID, pinned bool) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE conversations SET is_pinned = ? WHERE id = ?`, pinned, conv)
		if err != nil {
			return fmt.Errorf("update pin: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("conversation %d: %w", conv, ErrNotFound)
		}
		return nil
	})
}

// SetTitle renames a conversation.
func (s *Store) SetTitle(conv ConversationID, title string) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE conversations SET title = ? WHERE id = ?`, title, conv)
		if err != nil {
			return fmt.Errorf("update title: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("conversation %d: %w", conv, ErrNotFound)
		}
		return nil
	})
}

const conversationCols = `id, title, created_at, is_pinned, parent_id, fork_message_id, model_server, model_name`

func scanConversation(row interface{ Scan(...any) error }) (Conversation, error) {
	var c Conversation
	var created int64
	var parentID, forkMsgID sql.NullInt64
	err := row.Scan(&c.ID, &c.Title, &created, &c.Pinned, &parentID, &forkMsgID, &c.Model.Server, &c.Model.Name)
	if err != nil {
		return Conversation{}, err
	}
	c.CreatedAt = time.Unix(created, 0)
	if parentID.Valid {
		c.Fork = &ForkRef{
			ParentID:  ConversationID(parentID.Int64),
			MessageID: MessageID(forkMsgID.Int64),
		}
	}
	return c, nil
}

// GetConversation loads one conversation row.
func (s *Store) GetConversation(conv ConversationID) (Conversation, error) {
	row := s.db.QueryRow(`SELECT `+conversationCols+` FROM conversations WHERE id = ?`, conv)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return Conversation{}, fmt.Errorf("conversation %d: %w", conv, ErrNotFound)
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// LoadConversation returns the conversation's messages ordered by position.
func (s *Store) LoadConversation(conv ConversationID) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, content, token_length, position, created_at
		FROM messages WHERE conversation_id = ? ORDER BY position`, conv)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var tokens sql.NullInt64
		var created int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &tokens, &m.Position, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if tokens.Valid {
			v := tokens.Int64
			m.TokenLength = &v
		}
		m.CreatedAt = time.Unix(created, 0)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ListConversations returns conversations matching the filter, pinned first,
// then newest first.
func (s *Store) ListConversations(f ListFilter) ([]Conversation, error) {
	var where []string
	var args []any
	if f.PinnedOnly {
		where = append(where, "is_pinned = 1")
	}
	if f.TitleContains != "" {
		where = append(where, "title LIKE ?")
		args = append(args, "%"+f.TitleContains+"%")
	}
	q := `SELECT ` + conversationCols + ` FROM conversations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY is_pinned DESC, created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

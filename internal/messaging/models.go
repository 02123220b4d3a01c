// internal/messaging/models.go
package messaging

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// TempIDPrefix marks optimistic messages that the server has not confirmed.
const TempIDPrefix = "temp-"

// IsTempID reports whether id belongs to an unconfirmed message.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Participant may arrive as a populated object or a bare id.
type Participant struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func (p *Participant) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		p.ID = id
		return nil
	}
	type alias Participant
	return json.Unmarshal(data, (*alias)(p))
}

type Message struct {
	ID             string     `json:"_id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Message        string     `json:"message"`
	CreatedAt      time.Time  `json:"createdAt"`
	EditedAt       *time.Time `json:"editedAt,omitempty"`
	ReadBy         []string   `json:"readBy,omitempty"`
	Pending        bool       `json:"-"`
}

// UnmarshalJSON also accepts a populated "sender" object in place of senderId.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		Sender *Participant `json:"sender"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if m.SenderID == "" && aux.Sender != nil {
		m.SenderID = aux.Sender.ID
	}
	return nil
}

func (m Message) clone() Message {
	c := m
	c.ReadBy = append([]string(nil), m.ReadBy...)
	if m.EditedAt != nil {
		t := *m.EditedAt
		c.EditedAt = &t
	}
	return c
}

type Conversation struct {
	ID           string        `json:"_id"`
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	UnreadCount  int           `json:"unreadCount"`
	IsPinned     bool          `json:"isPinned"`
	IsArchived   bool          `json:"isArchived"`
	IsMuted      bool          `json:"isMuted"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (c Conversation) clone() Conversation {
	out := c
	out.Participants = append([]Participant(nil), c.Participants...)
	if c.LastMessage != nil {
		m := c.LastMessage.clone()
		out.LastMessage = &m
	}
	return out
}

type sendRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// decodeMessage accepts {"message": {...}} or a bare message object.
func decodeMessage(raw json.RawMessage) (Message, error) {
	var probe struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		trimmed := bytes.TrimSpace(probe.Message)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			var m Message
			err := json.Unmarshal(trimmed, &m)
			return m, err
		}
	}
	var m Message
	err := json.Unmarshal(raw, &m)
	return m, err
}

// decodeMessages accepts a bare array or {"messages": [...]}.
func decodeMessages(raw json.RawMessage) ([]Message, error) {
	var list []Message
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Messages, nil
}

// decodeConversations accepts a bare array or {"conversations": [...]}.
func decodeConversations(raw json.RawMessage) ([]Conversation, error) {
	var list []Conversation
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Conversations, nil
}

// Realtime payloads.

type readPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type deletedPayload struct {
	ID             string `json:"_id"`
	ConversationID string `json:"conversationId"`
}

// internal/models/chat.go
package models

import "time"

// Conversation is a one-to-one chat between exactly two profiles.
type Conversation struct {
	ID           string         `json:"id"`
	Participants []string       `json:"participants"`
	LastMessage  *LastMessage   `json:"lastMessage,omitempty"`
	Unread       map[string]int `json:"unread"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// LastMessage is the preview cached on the conversation.
type LastMessage struct {
	Text     string    `json:"text"`
	SenderID string    `json:"senderId"`
	SentAt   time.Time `json:"sentAt"`
	HasImage bool      `json:"hasImage"`
}

// Other returns the participant that is not uid.
func (c *Conversation) Other(uid string) string {
	for _, p := range c.Participants {
		if p != uid {
			return p
		}
	}
	return ""
}

// HasParticipant reports whether uid takes part in the conversation.
func (c *Conversation) HasParticipant(uid string) bool {
	for _, p := range c.Participants {
		if p == uid {
			return true
		}
	}
	return false
}

// MessageCursor is the position of the last message of a page. Messages are
// paged newest first by (CreatedAt, ID).
type MessageCursor struct {
	CreatedAt time.Time
	ID        string
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	ImageKey       string    `json:"imageKey,omitempty"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

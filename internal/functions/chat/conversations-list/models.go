package conversationslist

import (
	"time"

	"crm-functions/internal/models"
)

type Input struct {
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`
}

// Summary is a conversation seen from the caller's side.
type Summary struct {
	ID              string              `json:"id"`
	ParticipantID   string              `json:"participantId"`
	ParticipantName string              `json:"participantName,omitempty"`
	LastMessage     *models.LastMessage `json:"lastMessage,omitempty"`
	Unread          int                 `json:"unread"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type Output struct {
	Conversations []Summary `json:"conversations"`
	TotalUnread   int       `json:"totalUnread"`
}

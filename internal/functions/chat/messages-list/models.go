package messageslist

import (
	"time"

	"crm-functions/internal/models"
)

// Input pages with the nextBefore and nextBeforeId of the previous page.
type Input struct {
	ConversationID string     `json:"conversationId" validate:"required,max=800"`
	Before         *time.Time `json:"before,omitempty"`
	BeforeID       string     `json:"beforeId,omitempty" validate:"omitempty,max=64"`
	Limit          int        `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`
}

type Output struct {
	Messages []*models.Message `json:"messages"`
	// NextBefore and NextBeforeID are set when an older page may exist.
	NextBefore   *time.Time `json:"nextBefore,omitempty"`
	NextBeforeID string     `json:"nextBeforeId,omitempty"`
}

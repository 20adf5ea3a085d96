package messagessearch

import "crm-functions/internal/search"

type Input struct {
	Query          string `json:"query" validate:"required,min=2,max=256"`
	ConversationID string `json:"conversationId,omitempty" validate:"omitempty,max=800"`
	From           int    `json:"from,omitempty" validate:"omitempty,min=0,max=1000"`
	Size           int    `json:"size,omitempty" validate:"omitempty,min=1,max=100"`
}

type Output struct {
	Total int64        `json:"total"`
	Hits  []search.Hit `json:"hits"`
}

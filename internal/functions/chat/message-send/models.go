package messagesend

import "crm-functions/internal/models"

type Input struct {
	ConversationID string `json:"conversationId" validate:"required,max=800"`
	Text           string `json:"text,omitempty" validate:"required_without=ImageKey"`
	ImageKey       string `json:"imageKey,omitempty" validate:"omitempty,max=512"`
}

type Output struct {
	Message    *models.Message   `json:"message"`
	Deliveries []models.Delivery `json:"deliveries"`
}

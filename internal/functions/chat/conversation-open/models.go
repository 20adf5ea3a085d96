package conversationopen

import "crm-functions/internal/models"

type Input struct {
	ParticipantID string `json:"participantId" validate:"required,max=128"`
}

type Output struct {
	Conversation *models.Conversation `json:"conversation"`
	Created      bool                 `json:"created"`
}

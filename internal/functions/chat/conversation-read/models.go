package conversationread

type Input struct {
	ConversationID string `json:"conversationId" validate:"required,max=800"`
}

type Output struct {
	ConversationID string `json:"conversationId"`
	Unread         int    `json:"unread"`
}

package conversationread

import (
	"context"

	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/chat/chataccess"
	"crm-functions/internal/models"
)

const FunctionName = "chat.conversation.read"

type Store interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	MarkRead(ctx context.Context, conversationID, uid string) error
}

type Handler struct {
	store  Store
	logger logger.Logger
}

type HandlerOptions struct {
	Store  Store
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{store: opts.Store, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Reset the caller's unread counter of a conversation",
		Category:    "chat",
	}
}

func (h *Handler) Schema() *validation.Schema { return inputSchema }

func (h *Handler) Invoke(ctx context.Context, req *callable.Request) (interface{}, error) {
	var input Input
	if err := req.Decode(&input); err != nil {
		return nil, err
	}
	return h.Execute(ctx, req, &input)
}

func (h *Handler) Execute(ctx context.Context, req *callable.Request, input *Input) (*Output, error) {
	conv, err := chataccess.Load(ctx, h.store, input.ConversationID, req.Caller.UID)
	if err != nil {
		return nil, err
	}
	if conv.Unread[req.Caller.UID] > 0 {
		if err := h.store.MarkRead(ctx, conv.ID, req.Caller.UID); err != nil {
			return nil, err
		}
	}
	return &Output{ConversationID: conv.ID, Unread: 0}, nil
}

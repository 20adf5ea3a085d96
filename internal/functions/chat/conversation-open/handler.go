package conversationopen

import (
	"context"

	"crm-functions/internal/common/callable"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/models"
)

const FunctionName = "chat.conversation.open"

type Store interface {
	GetProfile(ctx context.Context, uid string) (*models.Profile, error)
	GetOrCreateConversation(ctx context.Context, a, b string) (*models.Conversation, bool, error)
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
		Description: "Get or create the conversation between the caller and another user",
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
	if input.ParticipantID == req.Caller.UID {
		return nil, errs.NewValidationError("cannot open a conversation with yourself", "participantId: must differ from the caller")
	}
	// Only users that signed in at least once can be messaged.
	if _, err := h.store.GetProfile(ctx, input.ParticipantID); err != nil {
		return nil, err
	}

	conv, created, err := h.store.GetOrCreateConversation(ctx, req.Caller.UID, input.ParticipantID)
	if err != nil {
		return nil, err
	}
	if created {
		logger.FromContext(ctx, h.logger).Info("Conversation created", map[string]interface{}{"conversationId": conv.ID})
	}
	return &Output{Conversation: conv, Created: created}, nil
}

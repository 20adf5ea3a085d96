package messageslist

import (
	"context"

	"crm-functions/internal/blob"
	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/chat/chataccess"
	"crm-functions/internal/models"
)

const FunctionName = "chat.messages.list"

type Store interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, before *models.MessageCursor, limit int) ([]*models.Message, error)
}

type ImageURLs interface {
	DownloadURL(ctx context.Context, key string) (*blob.PresignedURL, error)
}

type Handler struct {
	store  Store
	images ImageURLs
	limits chataccess.Limits
	logger logger.Logger
}

type HandlerOptions struct {
	Chat   config.ChatConfig
	Store  Store
	Images ImageURLs
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{store: opts.Store, images: opts.Images, limits: chataccess.LimitsFrom(opts.Chat), logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Page of conversation messages, newest first, with image URLs",
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

	if input.BeforeID != "" && input.Before == nil {
		return nil, errs.NewValidationError("beforeId requires before")
	}
	var before *models.MessageCursor
	if input.Before != nil {
		before = &models.MessageCursor{CreatedAt: *input.Before, ID: input.BeforeID}
	}
	limit := h.limits.Page(input.Limit)
	msgs, err := h.store.ListMessages(ctx, conv.ID, before, limit)
	if err != nil {
		return nil, err
	}

	for _, m := range msgs {
		if m.ImageKey == "" {
			continue
		}
		url, err := h.images.DownloadURL(ctx, m.ImageKey)
		if err != nil {
			logger.FromContext(ctx, h.logger).Warn("Failed to presign chat image", map[string]interface{}{
				"messageId": m.ID,
				"error":     err.Error(),
			})
			continue
		}
		m.ImageURL = url.URL
	}

	out := &Output{Messages: msgs}
	if len(msgs) == limit {
		last := msgs[len(msgs)-1]
		next := last.CreatedAt
		out.NextBefore = &next
		out.NextBeforeID = last.ID
	}
	return out, nil
}

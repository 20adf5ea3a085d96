package imageuploadurl

import (
	"context"

	"github.com/google/uuid"

	"crm-functions/internal/blob"
	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/chat/chataccess"
	"crm-functions/internal/models"
)

const FunctionName = "chat.image.upload-url"

type Store interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
}

type UploadURLs interface {
	UploadURL(ctx context.Context, key, contentType string) (*blob.PresignedURL, error)
}

type Handler struct {
	store  Store
	blobs  UploadURLs
	newID  func() string
	logger logger.Logger
}

type HandlerOptions struct {
	Store  Store
	Blobs  UploadURLs
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{store: opts.Store, blobs: opts.Blobs, newID: uuid.NewString, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Presigned upload URL for an image sent in a conversation",
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

	key := chataccess.ImagePrefix(conv.ID) + h.newID() + extensions[input.ContentType]
	url, err := h.blobs.UploadURL(ctx, key, input.ContentType)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, h.logger).Debug("Chat image upload presigned", map[string]interface{}{"key": key})
	return &Output{PresignedURL: *url}, nil
}

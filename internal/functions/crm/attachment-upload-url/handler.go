package attachmentuploadurl

import (
	"context"

	"github.com/google/uuid"

	"crm-functions/internal/blob"
	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/crm/crmaccess"
)

const FunctionName = "crm.attachment.upload-url"

type UploadURLs interface {
	UploadURL(ctx context.Context, key, contentType string) (*blob.PresignedURL, error)
}

type Handler struct {
	blobs  UploadURLs
	newID  func() string
	logger logger.Logger
}

type HandlerOptions struct {
	Blobs  UploadURLs
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{blobs: opts.Blobs, newID: uuid.NewString, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Presigned upload URL for a file to attach with crm.attachment.upload",
		Category:    "crm",
		Roles:       []string{auth.RoleAgent, auth.RoleAdmin},
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
	key := crmaccess.UploadPrefix(req.Caller.UID) + h.newID() + "/" + crmaccess.SafeFileName(input.FileName)
	url, err := h.blobs.UploadURL(ctx, key, input.ContentType)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, h.logger).Debug("Attachment upload presigned", map[string]interface{}{"key": key})
	return &Output{PresignedURL: *url}, nil
}

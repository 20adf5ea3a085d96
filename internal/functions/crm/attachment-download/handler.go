package attachmentdownload

import (
	"context"
	"mime"
	"path"
	"strings"

	"crm-functions/internal/blob"
	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/crm/crmaccess"
)

const FunctionName = "crm.attachment.download"

// BlobWriter stores the proxied file and presigns a GET for it.
type BlobWriter interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	DownloadURL(ctx context.Context, key string) (*blob.PresignedURL, error)
}

type Handler struct {
	connector crmaccess.Connector
	profiles  crmaccess.ProfileReader
	blobs     BlobWriter
	logger    logger.Logger
}

type HandlerOptions struct {
	Connector crmaccess.Connector
	Profiles  crmaccess.ProfileReader
	Blobs     BlobWriter
	Logger    logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{connector: opts.Connector, profiles: opts.Profiles, blobs: opts.Blobs, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Copy a CRM file to the blob store and return a presigned download URL",
		Category:    "crm",
		Roles:       []string{auth.RoleAgent, auth.RoleAdmin},
		UsesCRM:     true,
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
	access, err := crmaccess.Open(ctx, h.connector, h.profiles, req)
	if err != nil {
		return nil, err
	}
	if !access.IsAdmin() {
		linked, err := access.Client.FileLinks(ctx, input.ContentVersionID)
		if err != nil {
			return nil, salesforce.ClassifyError("list file links", err)
		}
		if err := access.CheckRecords(ctx, linked...); err != nil {
			return nil, err
		}
	}

	file, err := access.Client.DownloadContentVersion(ctx, input.ContentVersionID)
	if err != nil {
		return nil, salesforce.ClassifyError("download content version", err)
	}

	contentType := file.ContentType
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		if byExt := mime.TypeByExtension(path.Ext(file.FileName)); byExt != "" {
			contentType = byExt
		}
	}

	key := "crm/attachments/" + input.ContentVersionID + "/" + crmaccess.SafeFileName(file.FileName)
	if err := h.blobs.Upload(ctx, key, file.Data, contentType); err != nil {
		return nil, err
	}
	url, err := h.blobs.DownloadURL(ctx, key)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, h.logger).Info("Attachment proxied", map[string]interface{}{
		"contentVersionId": input.ContentVersionID,
		"key":              key,
		"bytes":            len(file.Data),
	})
	return &Output{
		FileName:    file.FileName,
		Title:       file.Title,
		ContentType: contentType,
		Size:        len(file.Data),
		Key:         key,
		URL:         url.URL,
		Headers:     url.Headers,
		ExpiresAt:   url.ExpiresAt,
	}, nil
}

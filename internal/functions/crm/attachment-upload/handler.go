package attachmentupload

import (
	"context"
	"encoding/base64"
	"fmt"

	"crm-functions/internal/blob"
	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/chat/chataccess"
	"crm-functions/internal/functions/crm/crmaccess"
)

const (
	FunctionName        = "crm.attachment.upload"
	defaultMaxFileBytes = 25 << 20
)

// BlobReader reads uploads that were staged in the blob store.
type BlobReader interface {
	Download(ctx context.Context, key string, maxBytes int64) (*blob.Object, error)
}

type Handler struct {
	connector     crmaccess.Connector
	profiles      crmaccess.ProfileReader
	conversations chataccess.ConversationReader
	blobs         BlobReader
	maxFileBytes  int64
	logger        logger.Logger
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Connector     crmaccess.Connector
	Profiles      crmaccess.ProfileReader
	Conversations chataccess.ConversationReader
	Blobs         BlobReader
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	h := &Handler{
		connector:     opts.Connector,
		profiles:      opts.Profiles,
		conversations: opts.Conversations,
		blobs:         opts.Blobs,
		maxFileBytes:  defaultMaxFileBytes,
		logger:        opts.Logger,
	}
	if opts.AppConfig != nil && opts.AppConfig.Workflow.MaxFileBytes > 0 {
		h.maxFileBytes = opts.AppConfig.Workflow.MaxFileBytes
	}
	return h
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Upload a file to the CRM and link it to a record",
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
	if !salesforce.IsID(input.RecordID) {
		return nil, errs.NewValidationError("recordId is not a CRM record id")
	}

	data, err := h.content(ctx, req.Caller.UID, input)
	if err != nil {
		return nil, err
	}

	access, err := crmaccess.Open(ctx, h.connector, h.profiles, req)
	if err != nil {
		return nil, err
	}
	if err := access.CheckRecords(ctx, input.RecordID); err != nil {
		return nil, err
	}

	attached, err := access.Client.AttachFile(ctx, input.RecordID, salesforce.FileUpload{
		Title:    input.Title,
		FileName: input.FileName,
		Data:     data,
	})
	if err != nil {
		return nil, salesforce.ClassifyError("attach file", err)
	}

	logger.FromContext(ctx, h.logger).Info("Attachment uploaded", map[string]interface{}{
		"recordId":         input.RecordID,
		"contentVersionId": attached.ContentVersionID,
		"bytes":            len(data),
	})
	return &Output{
		RecordID:          input.RecordID,
		ContentVersionID:  attached.ContentVersionID,
		ContentDocumentID: attached.ContentDocumentID,
		LinkID:            attached.LinkID,
		Size:              len(data),
	}, nil
}

func (h *Handler) content(ctx context.Context, uid string, input *Input) ([]byte, error) {
	if input.BlobKey != "" {
		if err := h.checkBlobKey(ctx, uid, input.BlobKey); err != nil {
			return nil, err
		}
		if h.blobs == nil {
			return nil, errs.NewBlobStoreError("download "+input.BlobKey, fmt.Errorf("blob store not configured"))
		}
		obj, err := h.blobs.Download(ctx, input.BlobKey, h.maxFileBytes)
		if err != nil {
			return nil, err
		}
		return obj.Data, nil
	}

	if int64(base64.StdEncoding.DecodedLen(len(input.ContentBase64))) > h.maxFileBytes+2 {
		return nil, errs.NewValidationError(fmt.Sprintf("file exceeds %d bytes", h.maxFileBytes))
	}
	data, err := base64.StdEncoding.DecodeString(input.ContentBase64)
	if err != nil {
		return nil, errs.NewValidationError("contentBase64 is not valid base64")
	}
	if int64(len(data)) > h.maxFileBytes {
		return nil, errs.NewValidationError(fmt.Sprintf("file exceeds %d bytes", h.maxFileBytes))
	}
	return data, nil
}

// checkBlobKey accepts keys issued to uid by crm.attachment.upload-url and
// images of conversations uid takes part in.
func (h *Handler) checkBlobKey(ctx context.Context, uid, key string) error {
	if crmaccess.OwnsUpload(uid, key) {
		return nil
	}
	if convID, ok := chataccess.ImageConversation(key); ok && h.conversations != nil {
		_, err := chataccess.Load(ctx, h.conversations, convID, uid)
		if err == nil {
			return nil
		}
		if !errs.HasCode(err, errs.ErrCodeNotFound) {
			return err
		}
	}
	return errs.NewPermissionDeniedError("blobKey was not issued to the caller")
}

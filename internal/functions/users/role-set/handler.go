package roleset

import (
	"context"

	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/documents"
	"crm-functions/internal/models"
)

const FunctionName = "users.role.set"

type RoleStore interface {
	SetRole(ctx context.Context, uid string, upd documents.RoleUpdate) (*models.Profile, error)
}

type Handler struct {
	store  RoleStore
	logger logger.Logger
}

type HandlerOptions struct {
	Store  RoleStore
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{store: opts.Store, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Set the role and CRM link of a profile",
		Category:    "users",
		Roles:       []string{auth.RoleAdmin},
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
	if input.UID == req.Caller.UID && input.Role != auth.RoleAdmin {
		return nil, errs.NewValidationError("admins cannot remove their own admin role")
	}
	if input.CRMUserID != nil && *input.CRMUserID != "" && !salesforce.IsID(*input.CRMUserID) {
		return nil, errs.NewValidationError("crmUserId is not a CRM record id")
	}

	p, err := h.store.SetRole(ctx, input.UID, documents.RoleUpdate{
		Role:        input.Role,
		CRMUserID:   input.CRMUserID,
		CRMUsername: input.CRMUsername,
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, h.logger).Info("Role updated", map[string]interface{}{
		"targetUid": input.UID,
		"newRole":   p.Role,
		"crmUserId": p.CRMUserID,
	})
	return &Output{Profile: p}, nil
}

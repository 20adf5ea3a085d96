package profileget

import (
	"context"

	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/models"
)

const FunctionName = "users.profile.get"

type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (*models.Profile, error)
	EnsureProfile(ctx context.Context, uid, email, displayName string) (*models.Profile, bool, error)
}

type Handler struct {
	store  ProfileStore
	logger logger.Logger
}

type HandlerOptions struct {
	Store  ProfileStore
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{store: opts.Store, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Caller profile, created with the customer role on first call",
		Category:    "users",
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
	caller := req.Caller

	if input.UID != "" && input.UID != caller.UID {
		if !auth.HasRole(caller.Role, auth.RoleAgent, auth.RoleAdmin) {
			return nil, errs.NewPermissionDeniedError("only agents and admins may read other profiles")
		}
		p, err := h.store.GetProfile(ctx, input.UID)
		if err != nil {
			return nil, err
		}
		if caller.Role != auth.RoleAdmin {
			p.NotificationTokens = []models.NotificationToken{}
		}
		return &Output{Profile: p}, nil
	}

	p, created, err := h.store.EnsureProfile(ctx, caller.UID, caller.Email, caller.Name)
	if err != nil {
		return nil, err
	}
	if created {
		logger.FromContext(ctx, h.logger).Info("Profile created", map[string]interface{}{"role": p.Role})
	}
	return &Output{Profile: p, Created: created}, nil
}

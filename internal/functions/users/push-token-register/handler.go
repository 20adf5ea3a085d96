package pushtokenregister

import (
	"context"

	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/models"
)

const FunctionName = "users.push-token.register"

type TokenStore interface {
	EnsureProfile(ctx context.Context, uid, email, displayName string) (*models.Profile, bool, error)
	AddNotificationToken(ctx context.Context, uid string, t models.NotificationToken) error
	RemoveNotificationToken(ctx context.Context, uid, token string) (bool, error)
}

// Endpoints manages push platform endpoints for device tokens.
type Endpoints interface {
	PushEnabled() bool
	RegisterEndpoint(ctx context.Context, platform, token, uid string) (string, error)
	DeleteEndpoint(ctx context.Context, endpointArn string) error
}

type Handler struct {
	store     TokenStore
	endpoints Endpoints
	logger    logger.Logger
}

type HandlerOptions struct {
	Store     TokenStore
	Endpoints Endpoints
	Logger    logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{store: opts.Store, endpoints: opts.Endpoints, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Register or remove a device token for push notifications",
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
	log := logger.FromContext(ctx, h.logger).WithFields(map[string]interface{}{"platform": input.Platform})
	caller := req.Caller

	profile, _, err := h.store.EnsureProfile(ctx, caller.UID, caller.Email, caller.Name)
	if err != nil {
		return nil, err
	}
	out := &Output{PushEnabled: h.endpoints.PushEnabled()}

	if input.Remove {
		existing := profile.Token(input.Token)
		removed, err := h.store.RemoveNotificationToken(ctx, caller.UID, input.Token)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.EndpointArn != "" {
			if err := h.endpoints.DeleteEndpoint(ctx, existing.EndpointArn); err != nil {
				log.Warn("Failed to delete push endpoint", map[string]interface{}{"endpointArn": existing.EndpointArn, "error": err.Error()})
			}
		}
		out.Removed = removed
		log.Info("Push token removed", map[string]interface{}{"removed": removed})
		return out, nil
	}

	arn, err := h.endpoints.RegisterEndpoint(ctx, input.Platform, input.Token, caller.UID)
	if err != nil {
		return nil, err
	}
	if err := h.store.AddNotificationToken(ctx, caller.UID, models.NotificationToken{
		Token:       input.Token,
		Platform:    input.Platform,
		EndpointArn: arn,
	}); err != nil {
		return nil, err
	}

	out.Registered = true
	out.EndpointArn = arn
	log.Info("Push token registered", map[string]interface{}{"endpointArn": arn})
	return out, nil
}

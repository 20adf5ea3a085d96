package sessionrefresh

import (
	"context"

	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/crm/crmaccess"
)

const FunctionName = "crm.session.refresh"

// SessionSource mints CRM sessions with the JWT-bearer flow.
type SessionSource interface {
	Session(ctx context.Context, username string) (*salesforce.Session, error)
	Refresh(ctx context.Context, username string) (*salesforce.Session, error)
}

type Handler struct {
	sessions SessionSource
	profiles crmaccess.ProfileReader
	logger   logger.Logger
}

type HandlerOptions struct {
	Sessions SessionSource
	Profiles crmaccess.ProfileReader
	Logger   logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{sessions: opts.Sessions, profiles: opts.Profiles, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Exchange or refresh the CRM session of the caller's linked CRM user",
		Category:    "crm",
		UsesCRM:     true,
		ErrorCodes:  []errs.ErrorCode{errs.ErrCodeCRMNotConfigured, errs.ErrCodePermissionDenied},
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
	username := ""
	profile, err := h.profiles.GetProfile(ctx, req.Caller.UID)
	switch {
	case err == nil:
		username = profile.CRMUsername
	case !errs.HasCode(err, errs.ErrCodeNotFound):
		return nil, err
	}

	isAdmin := req.Caller.Role == auth.RoleAdmin
	// Only admins may fall back to the integration user.
	if username == "" && !isAdmin {
		return nil, errs.NewPermissionDeniedError("profile is not linked to a CRM username")
	}

	var session *salesforce.Session
	if input.Force {
		session, err = h.sessions.Refresh(ctx, username)
	} else {
		session, err = h.sessions.Session(ctx, username)
	}
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, h.logger).Info("CRM session issued", map[string]interface{}{
		"username":  username,
		"forced":    input.Force,
		"expiresAt": session.ExpiresAt,
	})

	out := &Output{Username: username, InstanceURL: session.InstanceURL, ExpiresAt: session.ExpiresAt}
	if isAdmin {
		out.AccessToken = session.AccessToken
	}
	return out, nil
}

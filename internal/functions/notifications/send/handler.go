package send

import (
	"context"

	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/models"
	"crm-functions/internal/notify"
)

const FunctionName = "notifications.send"

type Store interface {
	GetProfiles(ctx context.Context, uids []string) (map[string]*models.Profile, error)
	PruneNotificationTokens(ctx context.Context, tokens []string) (int64, error)
}

type Notifier interface {
	Push(ctx context.Context, recipients []notify.Recipient, msg models.PushMessage) []models.Delivery
	Email(ctx context.Context, to []string, subject, body string) (string, error)
	EmailEnabled() bool
}

type Handler struct {
	store    Store
	notifier Notifier
	logger   logger.Logger
}

type HandlerOptions struct {
	Store    Store
	Notifier Notifier
	Logger   logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{store: opts.Store, notifier: opts.Notifier, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Push a notification (and optionally an e-mail) to a list of users",
		Category:    "notifications",
		Roles:       []string{auth.RoleAgent, auth.RoleAdmin},
		ErrorCodes:  []errs.ErrorCode{errs.ErrCodeNotificationSend},
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
	log := logger.FromContext(ctx, h.logger)
	if input.Email && !h.notifier.EmailEnabled() {
		return nil, errs.NewValidationError("e-mail delivery is not enabled", "email: channel disabled")
	}

	uids := dedupe(input.UIDs)
	profiles, err := h.store.GetProfiles(ctx, uids)
	if err != nil {
		return nil, err
	}

	recipients := make([]notify.Recipient, 0, len(uids))
	for _, uid := range uids {
		if p, ok := profiles[uid]; ok && len(p.NotificationTokens) > 0 {
			recipients = append(recipients, notify.Recipient{UID: uid, Tokens: p.NotificationTokens})
		}
	}
	deliveries := h.notifier.Push(ctx, recipients, models.PushMessage{Title: input.Title, Body: input.Body, Data: input.Data})

	byUID := make(map[string][]models.Delivery, len(recipients))
	var disabled []string
	out := &Output{Recipients: make([]RecipientReport, 0, len(uids))}
	for _, d := range deliveries {
		byUID[d.UID] = append(byUID[d.UID], d)
		switch d.Status {
		case models.DeliverySent:
			out.Sent++
		case models.DeliveryDisabled:
			disabled = append(disabled, d.Token)
			out.Failed++
		case models.DeliveryFailed:
			out.Failed++
		}
	}

	for _, uid := range uids {
		report := RecipientReport{UID: uid, Deliveries: byUID[uid]}
		if report.Deliveries == nil {
			report.Deliveries = []models.Delivery{}
		}
		p, ok := profiles[uid]
		report.Found = ok
		if !ok {
			report.Error = "profile not found"
		}
		if input.Email && ok {
			h.email(ctx, log, p, input, &report)
		}
		out.Recipients = append(out.Recipients, report)
	}

	if len(disabled) > 0 {
		n, err := h.store.PruneNotificationTokens(ctx, disabled)
		if err != nil {
			log.Warn("Failed to prune disabled tokens", map[string]interface{}{"error": err.Error()})
		}
		out.Pruned = n
	}

	log.Info("Notification sent", map[string]interface{}{
		"recipients": len(uids),
		"sent":       out.Sent,
		"failed":     out.Failed,
		"pruned":     out.Pruned,
	})
	return out, nil
}

// email sends one message per recipient so addresses are never shared.
func (h *Handler) email(ctx context.Context, log logger.Logger, p *models.Profile, input *Input, report *RecipientReport) {
	if p.Email == "" {
		report.Email = EmailNoAddress
		return
	}
	id, err := h.notifier.Email(ctx, []string{p.Email}, input.Title, input.Body)
	if err != nil {
		report.Email = EmailFailed
		report.Error = errs.AsStandardError(err).Details
		log.Warn("E-mail delivery failed", map[string]interface{}{"uid": p.UID, "error": err.Error()})
		return
	}
	report.Email = EmailSent
	report.EmailID = id
}

func dedupe(uids []string) []string {
	seen := make(map[string]bool, len(uids))
	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		if !seen[uid] {
			seen[uid] = true
			out = append(out, uid)
		}
	}
	return out
}

package cleanup

import (
	"context"
	"time"

	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/config"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/chat/chataccess"
)

const FunctionName = "maintenance.cleanup"

type Handler struct {
	cleaner   *Cleaner
	retention time.Duration
	logger    logger.Logger
}

type HandlerOptions struct {
	Chat    config.ChatConfig
	Cleaner *Cleaner
	Logger  logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{cleaner: opts.Cleaner, retention: chataccess.LimitsFrom(opts.Chat).Retention, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Delete chat messages, images and idle conversations past the retention window",
		Category:    "maintenance",
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

func (h *Handler) Execute(ctx context.Context, req *callable.Request, input *Input) (*Report, error) {
	retention := h.retention
	if input.RetentionDays > 0 {
		retention = time.Duration(input.RetentionDays) * 24 * time.Hour
	}
	logger.FromContext(ctx, h.logger).Info("Cleanup requested", map[string]interface{}{
		"retentionDays": int(retention.Hours() / 24),
		"dryRun":        input.DryRun,
	})
	return h.cleaner.Run(ctx, retention, input.DryRun)
}

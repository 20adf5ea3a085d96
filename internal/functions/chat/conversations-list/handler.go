package conversationslist

import (
	"context"

	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/config"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/chat/chataccess"
	"crm-functions/internal/models"
)

const FunctionName = "chat.conversations.list"

type Store interface {
	ListConversations(ctx context.Context, uid string, limit int) ([]*models.Conversation, error)
	GetProfiles(ctx context.Context, uids []string) (map[string]*models.Profile, error)
}

type Handler struct {
	store  Store
	limits chataccess.Limits
	logger logger.Logger
}

type HandlerOptions struct {
	Chat   config.ChatConfig
	Store  Store
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{store: opts.Store, limits: chataccess.LimitsFrom(opts.Chat), logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Caller's conversations, most recent first, with unread counts",
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
	uid := req.Caller.UID
	convs, err := h.store.ListConversations(ctx, uid, h.limits.Page(input.Limit))
	if err != nil {
		return nil, err
	}

	others := make([]string, 0, len(convs))
	for _, c := range convs {
		others = append(others, c.Other(uid))
	}
	profiles, err := h.store.GetProfiles(ctx, others)
	if err != nil {
		// Names are cosmetic; the list is still usable without them.
		logger.FromContext(ctx, h.logger).Warn("Failed to load participant names", map[string]interface{}{"error": err.Error()})
		profiles = map[string]*models.Profile{}
	}

	out := &Output{Conversations: make([]Summary, 0, len(convs))}
	for _, c := range convs {
		other := c.Other(uid)
		s := Summary{
			ID:            c.ID,
			ParticipantID: other,
			LastMessage:   c.LastMessage,
			Unread:        c.Unread[uid],
			UpdatedAt:     c.UpdatedAt,
		}
		if p, ok := profiles[other]; ok {
			s.ParticipantName = p.DisplayName
		}
		out.TotalUnread += s.Unread
		out.Conversations = append(out.Conversations, s)
	}
	return out, nil
}

package messagessearch

import (
	"context"
	"strings"

	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/chat/chataccess"
	"crm-functions/internal/search"
)

const FunctionName = "chat.messages.search"

type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type Handler struct {
	store    chataccess.ConversationReader
	searcher Searcher
	logger   logger.Logger
}

type HandlerOptions struct {
	Store    chataccess.ConversationReader
	Searcher Searcher
	Logger   logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{store: opts.Store, searcher: opts.Searcher, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Full-text search over the caller's chat messages",
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
	if input.ConversationID != "" {
		if _, err := chataccess.Load(ctx, h.store, input.ConversationID, req.Caller.UID); err != nil {
			return nil, err
		}
	}

	res, err := h.searcher.Search(ctx, search.Query{
		UID:            req.Caller.UID,
		Text:           strings.TrimSpace(input.Query),
		ConversationID: input.ConversationID,
		From:           input.From,
		Size:           input.Size,
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, h.logger).Debug("Chat search", map[string]interface{}{"total": res.Total})
	return &Output{Total: res.Total, Hits: res.Hits}, nil
}

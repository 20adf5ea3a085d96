package messagesend

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/chat/chataccess"
	"crm-functions/internal/models"
	"crm-functions/internal/notify"
)

const FunctionName = "chat.message.send"

const previewChars = 120

type Store interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, msg *models.Message, recipient string) error
	GetProfile(ctx context.Context, uid string) (*models.Profile, error)
	PruneNotificationTokens(ctx context.Context, tokens []string) (int64, error)
}

type Indexer interface {
	IndexMessage(ctx context.Context, msg *models.Message, participants []string) error
}

type Pusher interface {
	Push(ctx context.Context, recipients []notify.Recipient, msg models.PushMessage) []models.Delivery
}

type Handler struct {
	store  Store
	index  Indexer
	pusher Pusher
	limits chataccess.Limits
	newID  func() string
	logger logger.Logger
}

type HandlerOptions struct {
	Chat   config.ChatConfig
	Store  Store
	Index  Indexer
	Pusher Pusher
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{
		store:  opts.Store,
		index:  opts.Index,
		pusher: opts.Pusher,
		limits: chataccess.LimitsFrom(opts.Chat),
		newID:  uuid.NewString,
		logger: opts.Logger,
	}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Send a chat message and notify the other participant",
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
	log := logger.FromContext(ctx, h.logger).WithFields(map[string]interface{}{"conversationId": input.ConversationID})
	sender := req.Caller

	text := strings.TrimSpace(input.Text)
	if text == "" && input.ImageKey == "" {
		return nil, errs.NewValidationError("message is empty", "text: required when imageKey is not set")
	}
	if n := utf8.RuneCountInString(text); n > h.limits.MaxMessageChars {
		return nil, errs.NewValidationError(
			fmt.Sprintf("message has %d characters, at most %d allowed", n, h.limits.MaxMessageChars),
			"text: too long")
	}
	if input.ImageKey != "" && !chataccess.OwnsImage(input.ConversationID, input.ImageKey) {
		return nil, errs.NewValidationError("image was not uploaded for this conversation", "imageKey: unexpected prefix")
	}

	conv, err := chataccess.Load(ctx, h.store, input.ConversationID, sender.UID)
	if err != nil {
		return nil, err
	}
	recipient := conv.Other(sender.UID)

	msg := &models.Message{
		ID:             h.newID(),
		ConversationID: conv.ID,
		SenderID:       sender.UID,
		Text:           text,
		ImageKey:       input.ImageKey,
	}
	if err := h.store.AppendMessage(ctx, msg, recipient); err != nil {
		return nil, err
	}
	log.Info("Message sent", map[string]interface{}{"messageId": msg.ID, "hasImage": msg.ImageKey != ""})

	if h.index != nil {
		if err := h.index.IndexMessage(ctx, msg, conv.Participants); err != nil {
			log.Warn("Failed to index message", map[string]interface{}{"messageId": msg.ID, "error": err.Error()})
		}
	}

	return &Output{Message: msg, Deliveries: h.notify(ctx, log, sender.Name, recipient, msg)}, nil
}

// notify pushes msg to every device of recipient. Delivery problems never
// fail the send; endpoints reported disabled are pruned.
func (h *Handler) notify(ctx context.Context, log logger.Logger, senderName, recipient string, msg *models.Message) []models.Delivery {
	deliveries := []models.Delivery{}
	if h.pusher == nil {
		return deliveries
	}
	profile, err := h.store.GetProfile(ctx, recipient)
	if err != nil {
		log.Warn("Recipient profile unavailable, push skipped", map[string]interface{}{"recipient": recipient, "error": err.Error()})
		return deliveries
	}
	if len(profile.NotificationTokens) == 0 {
		return deliveries
	}

	deliveries = h.pusher.Push(ctx, []notify.Recipient{{UID: recipient, Tokens: profile.NotificationTokens}}, pushMessage(senderName, msg))

	var disabled []string
	for _, d := range deliveries {
		if d.Status == models.DeliveryDisabled {
			disabled = append(disabled, d.Token)
		}
	}
	if len(disabled) > 0 {
		if n, err := h.store.PruneNotificationTokens(ctx, disabled); err != nil {
			log.Warn("Failed to prune disabled tokens", map[string]interface{}{"error": err.Error()})
		} else {
			log.Info("Pruned disabled tokens", map[string]interface{}{"count": n})
		}
	}
	return deliveries
}

func pushMessage(senderName string, msg *models.Message) models.PushMessage {
	title := senderName
	if title == "" {
		title = "New message"
	}
	body := msg.Text
	if body == "" {
		body = "Sent an image"
	}
	if utf8.RuneCountInString(body) > previewChars {
		body = string([]rune(body)[:previewChars-1]) + "…"
	}
	return models.PushMessage{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":           "chat_message",
			"conversationId": msg.ConversationID,
			"messageId":      msg.ID,
			"senderId":       msg.SenderID,
		},
	}
}

// Package chataccess holds the participant check and limits shared by the
// chat functions.
package chataccess

import (
	"context"
	"strings"
	"time"

	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/models"
)

type ConversationReader interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
}

// Load returns the conversation when uid takes part in it. Conversations of
// other users are reported as not found.
func Load(ctx context.Context, store ConversationReader, id, uid string) (*models.Conversation, error) {
	conv, err := store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(uid) {
		return nil, errs.NewNotFoundError("conversation", id)
	}
	return conv, nil
}

// ImagePrefix is the blob key prefix of images sent in a conversation.
func ImagePrefix(conversationID string) string {
	return "chat/" + conversationID + "/"
}

// OwnsImage reports whether key was issued for the conversation.
func OwnsImage(conversationID, key string) bool {
	rest := strings.TrimPrefix(key, ImagePrefix(conversationID))
	return rest != key && rest != "" && !strings.Contains(rest, "/")
}

// ImageConversation returns the conversation an image key was issued for.
func ImageConversation(key string) (string, bool) {
	rest := strings.TrimPrefix(key, "chat/")
	if rest == key {
		return "", false
	}
	id, _, ok := strings.Cut(rest, "/")
	if !ok || id == "" || !OwnsImage(id, key) {
		return "", false
	}
	return id, true
}

type Limits struct {
	PageSize        int
	MaxPageSize     int
	MaxMessageChars int
	Retention       time.Duration
}

func LimitsFrom(cfg config.ChatConfig) Limits {
	l := Limits{
		PageSize:        cfg.PageSize,
		MaxPageSize:     200,
		MaxMessageChars: cfg.MaxMessageChars,
		Retention:       time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	}
	if l.PageSize <= 0 {
		l.PageSize = 50
	}
	if l.MaxMessageChars <= 0 {
		l.MaxMessageChars = 4000
	}
	if l.Retention <= 0 {
		l.Retention = 365 * 24 * time.Hour
	}
	return l
}

// Page clamps a requested page size.
func (l Limits) Page(requested int) int {
	switch {
	case requested <= 0:
		return l.PageSize
	case requested > l.MaxPageSize:
		return l.MaxPageSize
	}
	return requested
}

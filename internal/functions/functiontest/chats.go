package functiontest

import (
	"context"
	"sort"
	"sync"
	"time"

	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/documents"
	"crm-functions/internal/models"
)

// Chats is an in-memory conversation and message store. Each stored
// message is one second after the previous one.
type Chats struct {
	mu            sync.Mutex
	clock         time.Time
	conversations map[string]*models.Conversation
	messages      map[string][]*models.Message
}

func NewChats() *Chats {
	return &Chats{
		clock:         time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
	}
}

func (c *Chats) tick() time.Time {
	c.clock = c.clock.Add(time.Second)
	return c.clock
}

func cloneConversation(conv *models.Conversation) *models.Conversation {
	cp := *conv
	cp.Participants = append([]string(nil), conv.Participants...)
	cp.Unread = make(map[string]int, len(conv.Unread))
	for k, v := range conv.Unread {
		cp.Unread[k] = v
	}
	if conv.LastMessage != nil {
		lm := *conv.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}

func (c *Chats) GetOrCreateConversation(_ context.Context, a, b string) (*models.Conversation, bool, error) {
	if a == "" || b == "" || a == b {
		return nil, false, errs.NewValidationError("a conversation needs two distinct participants")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := documents.ConversationID(a, b)
	if conv, ok := c.conversations[id]; ok {
		return cloneConversation(conv), false, nil
	}
	pair := []string{a, b}
	sort.Strings(pair)
	now := c.tick()
	conv := &models.Conversation{
		ID:           id,
		Participants: pair,
		Unread:       map[string]int{a: 0, b: 0},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.conversations[id] = conv
	return cloneConversation(conv), true, nil
}

func (c *Chats) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[id]
	if !ok {
		return nil, errs.NewNotFoundError("conversation", id)
	}
	return cloneConversation(conv), nil
}

func (c *Chats) ListConversations(_ context.Context, uid string, limit int) ([]*models.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []*models.Conversation{}
	for _, conv := range c.conversations {
		if conv.HasParticipant(uid) {
			cp := cloneConversation(conv)
			cp.Unread = map[string]int{uid: conv.Unread[uid]}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Chats) MarkRead(_ context.Context, conversationID, uid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[conversationID]
	if !ok || !conv.HasParticipant(uid) {
		return errs.NewNotFoundError("conversation", conversationID)
	}
	conv.Unread[uid] = 0
	return nil
}

func (c *Chats) AppendMessage(_ context.Context, msg *models.Message, recipient string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[msg.ConversationID]
	if !ok {
		return errs.NewNotFoundError("conversation", msg.ConversationID)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = c.tick()
	}
	stored := *msg
	c.messages[msg.ConversationID] = append(c.messages[msg.ConversationID], &stored)
	conv.LastMessage = &models.LastMessage{
		Text:     msg.Text,
		SenderID: msg.SenderID,
		SentAt:   msg.CreatedAt,
		HasImage: msg.ImageKey != "",
	}
	conv.UpdatedAt = msg.CreatedAt
	conv.Unread[recipient]++
	return nil
}

func (c *Chats) ListMessages(_ context.Context, conversationID string, before *models.MessageCursor, limit int) ([]*models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := append([]*models.Message(nil), c.messages[conversationID]...)
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	out := []*models.Message{}
	for _, msg := range all {
		if limit > 0 && len(out) >= limit {
			break
		}
		if before != nil && !olderThan(msg, before) {
			continue
		}
		m := *msg
		out = append(out, &m)
	}
	return out, nil
}

func olderThan(m *models.Message, c *models.MessageCursor) bool {
	if c.ID == "" || !m.CreatedAt.Equal(c.CreatedAt) {
		return m.CreatedAt.Before(c.CreatedAt)
	}
	return m.ID < c.ID
}

// Messages returns the stored messages of a conversation in send order.
func (c *Chats) Messages(conversationID string) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, 0, len(c.messages[conversationID]))
	for _, m := range c.messages[conversationID] {
		out = append(out, *m)
	}
	return out
}

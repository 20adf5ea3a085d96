package conversationslist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-functions/internal/common/config"
	"crm-functions/internal/common/logger"
	ft "crm-functions/internal/functions/functiontest"
	"crm-functions/internal/models"
)

type store struct {
	*ft.Profiles
	*ft.Chats
}

func TestHandler_List(t *testing.T) {
	ctx := context.Background()
	chats := ft.NewChats()
	s := store{
		Profiles: ft.NewProfiles(&models.Profile{UID: "bob", DisplayName: "Bob"}, &models.Profile{UID: "carol", DisplayName: "Carol"}),
		Chats:    chats,
	}

	withBob, _, err := chats.GetOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	withCarol, _, err := chats.GetOrCreateConversation(ctx, "alice", "carol")
	require.NoError(t, err)
	_, _, err = chats.GetOrCreateConversation(ctx, "bob", "carol")
	require.NoError(t, err)

	require.NoError(t, chats.AppendMessage(ctx, &models.Message{ID: "m1", ConversationID: withCarol.ID, SenderID: "carol", Text: "hi"}, "alice"))
	require.NoError(t, chats.AppendMessage(ctx, &models.Message{ID: "m2", ConversationID: withBob.ID, SenderID: "bob", Text: "hello"}, "alice"))
	require.NoError(t, chats.AppendMessage(ctx, &models.Message{ID: "m3", ConversationID: withBob.ID, SenderID: "bob", Text: "you there?"}, "alice"))

	h := NewHandler(HandlerOptions{Chat: config.ChatConfig{}, Store: s, Logger: logger.NewTestLogger(t)})
	out, err := h.Invoke(ctx, ft.Request(t, ft.Customer("alice"), Input{}))
	require.NoError(t, err)
	res := out.(*Output)

	require.Len(t, res.Conversations, 2)
	assert.Equal(t, "bob", res.Conversations[0].ParticipantID)
	assert.Equal(t, "Bob", res.Conversations[0].ParticipantName)
	assert.Equal(t, 2, res.Conversations[0].Unread)
	assert.Equal(t, "you there?", res.Conversations[0].LastMessage.Text)
	assert.Equal(t, "carol", res.Conversations[1].ParticipantID)
	assert.Equal(t, 3, res.TotalUnread)

	out, err = h.Invoke(ctx, ft.Request(t, ft.Customer("alice"), Input{Limit: 1}))
	require.NoError(t, err)
	assert.Len(t, out.(*Output).Conversations, 1)
}

func TestHandler_Empty(t *testing.T) {
	h := NewHandler(HandlerOptions{Store: store{ft.NewProfiles(), ft.NewChats()}, Logger: logger.NewTestLogger(t)})
	out, err := h.Invoke(context.Background(), ft.Request(t, ft.Customer("nobody"), nil))
	require.NoError(t, err)
	assert.NotNil(t, out.(*Output).Conversations)
	assert.Empty(t, out.(*Output).Conversations)
}

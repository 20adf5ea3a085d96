package chataccess

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
	ft "crm-functions/internal/functions/functiontest"
)

func TestLoad(t *testing.T) {
	chats := ft.NewChats()
	conv, _, err := chats.GetOrCreateConversation(context.Background(), "u1", "u2")
	require.NoError(t, err)

	got, err := Load(context.Background(), chats, conv.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = Load(context.Background(), chats, conv.ID, "u3")
	assert.True(t, errs.HasCode(err, errs.ErrCodeNotFound))

	_, err = Load(context.Background(), chats, "missing", "u1")
	assert.True(t, errs.HasCode(err, errs.ErrCodeNotFound))
}

func TestOwnsImage(t *testing.T) {
	assert.True(t, OwnsImage("u1_u2", "chat/u1_u2/a.jpg"))
	assert.False(t, OwnsImage("u1_u2", "chat/u1_u3/a.jpg"))
	assert.False(t, OwnsImage("u1_u2", "chat/u1_u2/"))
	assert.False(t, OwnsImage("u1_u2", "chat/u1_u2/../x/a.jpg"))
	assert.False(t, OwnsImage("u1_u2", "crm/attachments/a.jpg"))
}

func TestLimits(t *testing.T) {
	l := LimitsFrom(config.ChatConfig{})
	assert.Equal(t, 50, l.PageSize)
	assert.Equal(t, 4000, l.MaxMessageChars)
	assert.Equal(t, 365*24*time.Hour, l.Retention)

	assert.Equal(t, 50, l.Page(0))
	assert.Equal(t, 10, l.Page(10))
	assert.Equal(t, 200, l.Page(1000))

	l = LimitsFrom(config.ChatConfig{RetentionDays: 30, PageSize: 20, MaxMessageChars: 500})
	assert.Equal(t, 30*24*time.Hour, l.Retention)
	assert.Equal(t, 20, l.Page(-1))
}

func TestImageConversation(t *testing.T) {
	id, ok := ImageConversation("chat/u1_u2/img.png")
	assert.True(t, ok)
	assert.Equal(t, "u1_u2", id)

	for _, key := range []string{"chat/u1_u2/", "chat//img.png", "chat/u1_u2/a/img.png", "uploads/u1/x/img.png", "chat/u1_u2"} {
		_, ok := ImageConversation(key)
		assert.False(t, ok, key)
	}
}

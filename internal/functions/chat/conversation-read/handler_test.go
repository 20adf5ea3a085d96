package conversationread

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/documents"
	ft "crm-functions/internal/functions/functiontest"
	"crm-functions/internal/models"
)

func TestHandler_ResetsUnread(t *testing.T) {
	ctx := context.Background()
	chats := ft.NewChats()
	_, _, err := chats.GetOrCreateConversation(ctx, "a", "b")
	require.NoError(t, err)
	require.NoError(t, chats.AppendMessage(ctx, &models.Message{ID: "m1", ConversationID: "a_b", SenderID: "a", Text: "x"}, "b"))
	require.NoError(t, chats.AppendMessage(ctx, &models.Message{ID: "m2", ConversationID: "a_b", SenderID: "a", Text: "y"}, "b"))

	h := NewHandler(HandlerOptions{Store: chats, Logger: logger.NewTestLogger(t)})
	out, err := h.Invoke(ctx, ft.Request(t, ft.Customer("b"), Input{ConversationID: "a_b"}))
	require.NoError(t, err)
	assert.Equal(t, 0, out.(*Output).Unread)

	conv, err := chats.GetConversation(ctx, "a_b")
	require.NoError(t, err)
	assert.Equal(t, 0, conv.Unread["b"])

	_, err = h.Invoke(ctx, ft.Request(t, ft.Customer("c"), Input{ConversationID: "a_b"}))
	assert.True(t, errs.HasCode(err, errs.ErrCodeNotFound))
}

func TestHandler_PostgresStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM conversations c WHERE c.id = \$1`).
		WithArgs("a_b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "participant_a", "participant_b", "last_text", "last_sender", "last_sent_at", "last_has_image", "created_at", "updated_at"}).
			AddRow("a_b", "a", "b", "hi", "a", now, false, now, now))
	mock.ExpectQuery(`SELECT uid, count FROM conversation_unread`).
		WithArgs("a_b").
		WillReturnRows(sqlmock.NewRows([]string{"uid", "count"}).AddRow("a", 0).AddRow("b", 3))
	mock.ExpectExec(`UPDATE conversation_unread SET count = 0`).
		WithArgs("a_b", "b").
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewHandler(HandlerOptions{Store: documents.NewStore(db), Logger: logger.NewTestLogger(t)})
	_, err = h.Invoke(context.Background(), ft.Request(t, ft.Customer("b"), Input{ConversationID: "a_b"}))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}


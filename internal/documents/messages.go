package documents

import (
	"context"
	"database/sql"
	"time"

	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/models"
)

// AppendMessage stores msg, refreshes the conversation preview and bumps
// the recipient's unread counter in one transaction.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message, recipient string) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	return s.withTx(ctx, "append message", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, text, image_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.ImageKey, msg.CreatedAt)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE conversations
			SET last_text = $2, last_sender = $3, last_sent_at = $4, last_has_image = $5, updated_at = $4
			WHERE id = $1`,
			msg.ConversationID, msg.Text, msg.SenderID, msg.CreatedAt, msg.ImageKey != "")
		if err != nil {
			return err
		}
		if rowsAffected(res) == 0 {
			return errs.NewNotFoundError("conversation", msg.ConversationID)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE conversation_unread SET count = count + 1
			WHERE conversation_id = $1 AND uid = $2`,
			msg.ConversationID, recipient)
		return err
	})
}

// ListMessages returns up to limit messages positioned after before, newest
// first. A nil cursor starts at the newest message; a cursor without an ID
// pages by timestamp alone.
// A zero before starts from the latest message.
func (s *Store) ListMessages(ctx context.Context, conversationID string, before *models.MessageCursor, limit int) ([]*models.Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case before == nil:
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, conversation_id, sender_id, text, image_key, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`, conversationID, limit)
	case before.ID == "":
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, conversation_id, sender_id, text, image_key, created_at
			FROM messages
			WHERE conversation_id = $1 AND created_at < $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3`, conversationID, before.CreatedAt, limit)
	default:
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, conversation_id, sender_id, text, image_key, created_at
			FROM messages
			WHERE conversation_id = $1 AND (created_at, id) < ($2::timestamptz, $3::uuid)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`, conversationID, before.CreatedAt, before.ID, limit)
	}
	if err != nil {
		return nil, wrap("list messages", err)
	}
	defer rows.Close()

	out := []*models.Message{}
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.ImageKey, &m.CreatedAt); err != nil {
			return nil, wrap("list messages", err)
		}
		out = append(out, m)
	}
	return out, wrap("list messages", rows.Err())
}

// DeletedMessages summarizes a retention sweep.
type DeletedMessages struct {
	Count     int
	ImageKeys []string
}

// DeleteMessagesBefore removes messages created before cutoff and returns
// the blob keys of their images.
func (s *Store) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (*DeletedMessages, error) {
	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM messages WHERE created_at < $1 RETURNING image_key`, cutoff)
	if err != nil {
		return nil, wrap("delete messages", err)
	}
	defer rows.Close()

	out := &DeletedMessages{ImageKeys: []string{}}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, wrap("delete messages", err)
		}
		out.Count++
		if key != "" {
			out.ImageKeys = append(out.ImageKeys, key)
		}
	}
	return out, wrap("delete messages", rows.Err())
}

// DeleteStaleConversations removes conversations that have no messages left
// and saw no activity since cutoff.
func (s *Store) DeleteStaleConversations(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations c
		WHERE c.updated_at < $1
		  AND NOT EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = c.id)`, cutoff)
	if err != nil {
		return 0, wrap("delete conversations", err)
	}
	return rowsAffected(res), nil
}

package documents

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/models"
)

// idEscaper keeps the separator and path characters out of each uid, so
// distinct pairs never share an id and an id is a single blob path segment.
var idEscaper = strings.NewReplacer("%", "%25", "_", "%5F", "/", "%2F")

// ConversationID derives the conversation id from the participant pair.
// The order of a and b does not matter.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return idEscaper.Replace(pair[0]) + "_" + idEscaper.Replace(pair[1])
}

const conversationColumns = `c.id, c.participant_a, c.participant_b, c.last_text, c.last_sender,
	c.last_sent_at, c.last_has_image, c.created_at, c.updated_at`

func scanConversation(row rowScanner, extra ...interface{}) (*models.Conversation, error) {
	var (
		c                  models.Conversation
		a, b               string
		lastText, lastFrom sql.NullString
		lastAt             sql.NullTime
		hasImage           bool
	)
	dest := append([]interface{}{&c.ID, &a, &b, &lastText, &lastFrom, &lastAt, &hasImage, &c.CreatedAt, &c.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.Participants = []string{a, b}
	c.Unread = make(map[string]int, 2)
	if lastAt.Valid {
		c.LastMessage = &models.LastMessage{
			Text:     nullString(lastText),
			SenderID: nullString(lastFrom),
			SentAt:   nullTime(lastAt),
			HasImage: hasImage,
		}
	}
	return &c, nil
}

// GetOrCreateConversation returns the conversation between a and b, creating
// it with zero unread counters if needed.
func (s *Store) GetOrCreateConversation(ctx context.Context, a, b string) (*models.Conversation, bool, error) {
	if a == "" || b == "" || a == b {
		return nil, false, errs.NewValidationError("a conversation needs two distinct participants")
	}
	pair := []string{a, b}
	sort.Strings(pair)
	id := ConversationID(a, b)

	var created bool
	err := s.withTx(ctx, "open conversation", func(tx *sql.Tx) error {
		now := s.now()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, participant_a, participant_b, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (id) DO NOTHING`, id, pair[0], pair[1], now)
		if err != nil {
			return err
		}
		created = rowsAffected(res) > 0

		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_unread (conversation_id, uid, count)
			VALUES ($1, $2, 0), ($1, $3, 0)
			ON CONFLICT (conversation_id, uid) DO NOTHING`, id, pair[0], pair[1])
		return err
	})
	if err != nil {
		return nil, false, err
	}

	c, err := s.GetConversation(ctx, id)
	return c, created, err
}

// GetConversation loads a conversation with both unread counters.
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFoundError("conversation", id)
	}
	if err != nil {
		return nil, wrap("get conversation", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT uid, count FROM conversation_unread WHERE conversation_id = $1`, id)
	if err != nil {
		return nil, wrap("get conversation", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid string
		var n int
		if err := rows.Scan(&uid, &n); err != nil {
			return nil, wrap("get conversation", err)
		}
		c.Unread[uid] = n
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get conversation", err)
	}
	return c, nil
}

// ListConversations returns uid's conversations, most recently active first.
// Only uid's own unread counter is filled in.
func (s *Store) ListConversations(ctx context.Context, uid string, limit int) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`, COALESCE(u.count, 0)
		FROM conversations c
		LEFT JOIN conversation_unread u ON u.conversation_id = c.id AND u.uid = $1
		WHERE c.participant_a = $1 OR c.participant_b = $1
		ORDER BY c.updated_at DESC
		LIMIT $2`, uid, limit)
	if err != nil {
		return nil, wrap("list conversations", err)
	}
	defer rows.Close()

	out := []*models.Conversation{}
	for rows.Next() {
		var unread int
		c, err := scanConversation(rows, &unread)
		if err != nil {
			return nil, wrap("list conversations", err)
		}
		c.Unread[uid] = unread
		out = append(out, c)
	}
	return out, wrap("list conversations", rows.Err())
}

// MarkRead resets uid's unread counter to zero.
func (s *Store) MarkRead(ctx context.Context, conversationID, uid string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_unread SET count = 0 WHERE conversation_id = $1 AND uid = $2`,
		conversationID, uid)
	if err != nil {
		return wrap("mark read", err)
	}
	if rowsAffected(res) == 0 {
		return errs.NewNotFoundError("conversation", conversationID)
	}
	return nil
}

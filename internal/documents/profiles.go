package documents

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"crm-functions/internal/common/auth"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/models"
)

const profileColumns = `uid, email, display_name, role, crm_user_id, crm_username, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	p := &models.Profile{NotificationTokens: []models.NotificationToken{}}
	err := row.Scan(&p.UID, &p.Email, &p.DisplayName, &p.Role, &p.CRMUserID, &p.CRMUsername, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProfile loads a profile with its notification tokens.
func (s *Store) GetProfile(ctx context.Context, uid string) (*models.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE uid = $1`, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFoundError("profile", uid)
	}
	if err != nil {
		return nil, wrap("get profile", err)
	}

	tokens, err := s.tokensFor(ctx, []string{uid})
	if err != nil {
		return nil, err
	}
	p.NotificationTokens = append(p.NotificationTokens, tokens[uid]...)
	return p, nil
}

// EnsureProfile creates the profile on first sight with the customer role
// and fills in e-mail and display name if they were empty.
func (s *Store) EnsureProfile(ctx context.Context, uid, email, displayName string) (*models.Profile, bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (uid, email, display_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (uid) DO NOTHING`,
		uid, email, displayName, auth.RoleCustomer, now)
	if err != nil {
		return nil, false, wrap("ensure profile", err)
	}
	created := rowsAffected(res) > 0

	if !created && (email != "" || displayName != "") {
		_, err = s.db.ExecContext(ctx, `
			UPDATE profiles
			SET email = CASE WHEN email = '' THEN $2 ELSE email END,
			    display_name = CASE WHEN display_name = '' THEN $3 ELSE display_name END
			WHERE uid = $1 AND (email = '' OR display_name = '')`,
			uid, email, displayName)
		if err != nil {
			return nil, false, wrap("ensure profile", err)
		}
	}

	p, err := s.GetProfile(ctx, uid)
	return p, created, err
}

// RoleUpdate changes a profile's role and optionally its CRM link.
type RoleUpdate struct {
	Role        string
	CRMUserID   *string
	CRMUsername *string
}

// SetRole upserts the role of uid. Nil CRM fields keep their stored value.
func (s *Store) SetRole(ctx context.Context, uid string, upd RoleUpdate) (*models.Profile, error) {
	if !auth.ValidRole(upd.Role) {
		return nil, errs.NewValidationError("unknown role", "role: must be one of customer agent admin")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (uid, role, crm_user_id, crm_username, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3, ''), COALESCE($4, ''), $5, $5)
		ON CONFLICT (uid) DO UPDATE
		SET role = EXCLUDED.role,
		    crm_user_id = COALESCE($3, profiles.crm_user_id),
		    crm_username = COALESCE($4, profiles.crm_username),
		    updated_at = EXCLUDED.updated_at`,
		uid, upd.Role, toNull(upd.CRMUserID), toNull(upd.CRMUsername), s.now())
	if err != nil {
		return nil, wrap("set role", err)
	}
	return s.GetProfile(ctx, uid)
}

// ResolveRole returns the stored role, customer for unknown uids.
func (s *Store) ResolveRole(ctx context.Context, uid string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM profiles WHERE uid = $1`, uid).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.RoleCustomer, nil
	}
	if err != nil {
		return "", wrap("resolve role", err)
	}
	return role, nil
}

// GetProfiles loads several profiles at once. Unknown uids are absent from the map.
func (s *Store) GetProfiles(ctx context.Context, uids []string) (map[string]*models.Profile, error) {
	out := make(map[string]*models.Profile, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE uid = ANY($1)`, pq.Array(uids))
	if err != nil {
		return nil, wrap("get profiles", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, wrap("get profiles", err)
		}
		out[p.UID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get profiles", err)
	}

	tokens, err := s.tokensFor(ctx, uids)
	if err != nil {
		return nil, err
	}
	for uid, list := range tokens {
		if p, ok := out[uid]; ok {
			p.NotificationTokens = append(p.NotificationTokens, list...)
		}
	}
	return out, nil
}

func (s *Store) tokensFor(ctx context.Context, uids []string) (map[string][]models.NotificationToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, token, platform, endpoint_arn, registered_at
		FROM notification_tokens
		WHERE uid = ANY($1)
		ORDER BY registered_at`, pq.Array(uids))
	if err != nil {
		return nil, wrap("list notification tokens", err)
	}
	defer rows.Close()

	out := make(map[string][]models.NotificationToken)
	for rows.Next() {
		var uid string
		var t models.NotificationToken
		if err := rows.Scan(&uid, &t.Token, &t.Platform, &t.EndpointArn, &t.RegisteredAt); err != nil {
			return nil, wrap("list notification tokens", err)
		}
		out[uid] = append(out[uid], t)
	}
	return out, wrap("list notification tokens", rows.Err())
}

// AddNotificationToken stores a device token on uid. A token already
// registered to another profile moves to uid.
func (s *Store) AddNotificationToken(ctx context.Context, uid string, t models.NotificationToken) error {
	if t.RegisteredAt.IsZero() {
		t.RegisteredAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_tokens (token, uid, platform, endpoint_arn, registered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO UPDATE
		SET uid = EXCLUDED.uid,
		    platform = EXCLUDED.platform,
		    endpoint_arn = EXCLUDED.endpoint_arn,
		    registered_at = EXCLUDED.registered_at`,
		t.Token, uid, t.Platform, t.EndpointArn, t.RegisteredAt)
	return wrap("add notification token", err)
}

// RemoveNotificationToken deletes a token of uid and reports whether it existed.
func (s *Store) RemoveNotificationToken(ctx context.Context, uid, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_tokens WHERE uid = $1 AND token = $2`, uid, token)
	if err != nil {
		return false, wrap("remove notification token", err)
	}
	return rowsAffected(res) > 0, nil
}

// PruneNotificationTokens deletes tokens whose endpoints were disabled.
func (s *Store) PruneNotificationTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_tokens WHERE token = ANY($1)`, pq.Array(tokens))
	if err != nil {
		return 0, wrap("prune notification tokens", err)
	}
	return rowsAffected(res), nil
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

func toNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(nt sql.NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}
	return time.Time{}
}

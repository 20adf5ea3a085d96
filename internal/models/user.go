// internal/models/user.go
package models

import "time"

// Profile is the locally stored user record keyed by the caller uid.
type Profile struct {
	UID                string              `json:"uid"`
	Email              string              `json:"email,omitempty"`
	DisplayName        string              `json:"displayName,omitempty"`
	Role               string              `json:"role"`
	CRMUserID          string              `json:"crmUserId,omitempty"`
	CRMUsername        string              `json:"crmUsername,omitempty"`
	NotificationTokens []NotificationToken `json:"notificationTokens"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// HasCRMLink reports whether the profile is linked to a CRM user.
func (p *Profile) HasCRMLink() bool {
	return p.CRMUserID != "" || p.CRMUsername != ""
}

// Token returns the registered token entry, or nil.
func (p *Profile) Token(token string) *NotificationToken {
	for i := range p.NotificationTokens {
		if p.NotificationTokens[i].Token == token {
			return &p.NotificationTokens[i]
		}
	}
	return nil
}

package sessionrefresh

import "time"

type Input struct {
	Force bool `json:"force,omitempty"`
}

type Output struct {
	Username    string    `json:"username"`
	InstanceURL string    `json:"instanceUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
	// AccessToken is only returned to admins.
	AccessToken string `json:"accessToken,omitempty"`
}

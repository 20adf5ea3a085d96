// internal/models/notification.go
package models

import "time"

const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// NotificationToken is one device registered for push on a profile.
type NotificationToken struct {
	Token        string    `json:"token"`
	Platform     string    `json:"platform"`
	EndpointArn  string    `json:"endpointArn,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// PushMessage is what a push fan-out delivers to every endpoint.
type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

const (
	DeliverySent     = "sent"
	DeliveryFailed   = "failed"
	DeliveryDisabled = "disabled"
	DeliverySkipped  = "skipped"
)

// Delivery is the outcome of a push to one endpoint.
type Delivery struct {
	UID         string `json:"uid"`
	Token       string `json:"-"`
	EndpointArn string `json:"endpointArn,omitempty"`
	Status      string `json:"status"`
	MessageID   string `json:"messageId,omitempty"`
	Error       string `json:"error,omitempty"`
}

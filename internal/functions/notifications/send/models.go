package send

import "crm-functions/internal/models"

type Input struct {
	UIDs  []string          `json:"uids" validate:"required,min=1,max=500,dive,required"`
	Title string            `json:"title" validate:"required,max=200"`
	Body  string            `json:"body" validate:"required,max=2000"`
	Data  map[string]string `json:"data,omitempty"`
	// Email also sends Title and Body by e-mail to recipients with an address.
	Email bool `json:"email,omitempty"`
}

const (
	EmailSent      = "sent"
	EmailFailed    = "failed"
	EmailNoAddress = "no_address"
)

// RecipientReport is the outcome for one uid.
type RecipientReport struct {
	UID        string            `json:"uid"`
	Found      bool              `json:"found"`
	Deliveries []models.Delivery `json:"deliveries"`
	Email      string            `json:"email,omitempty"`
	EmailID    string            `json:"emailId,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type Output struct {
	Recipients []RecipientReport `json:"recipients"`
	Sent       int               `json:"sent"`
	Failed     int               `json:"failed"`
	Pruned     int64             `json:"pruned"`
}

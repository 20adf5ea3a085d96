package roleset

import "crm-functions/internal/models"

type Input struct {
	UID         string  `json:"uid" validate:"required,max=128"`
	Role        string  `json:"role" validate:"required,oneof=customer agent admin"`
	CRMUserID   *string `json:"crmUserId,omitempty" validate:"omitempty,max=18"`
	CRMUsername *string `json:"crmUsername,omitempty" validate:"omitempty,max=255"`
}

type Output struct {
	Profile *models.Profile `json:"profile"`
}

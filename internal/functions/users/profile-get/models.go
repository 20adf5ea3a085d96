package profileget

import "crm-functions/internal/models"

type Input struct {
	// UID selects another profile; agents and admins only.
	UID string `json:"uid,omitempty" validate:"omitempty,max=128"`
}

type Output struct {
	Profile *models.Profile `json:"profile"`
	Created bool            `json:"created"`
}

package opportunitieslist

import "crm-functions/internal/common/salesforce"

type Input struct {
	Stage string `json:"stage,omitempty" validate:"omitempty,max=80"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`
}

type Output struct {
	Opportunities []salesforce.Opportunity `json:"opportunities"`
	Count         int                      `json:"count"`
}

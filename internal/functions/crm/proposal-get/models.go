package proposalget

import "crm-functions/internal/common/salesforce"

type Input struct {
	ProposalID string `json:"proposalId" validate:"required"`
}

type Output struct {
	Proposal *salesforce.Proposal      `json:"proposal"`
	Meters   []salesforce.ProposalMeter `json:"meters"`
}

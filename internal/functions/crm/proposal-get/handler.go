package proposalget

import (
	"context"
	"fmt"

	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/crm/crmaccess"
)

const FunctionName = "crm.proposal.get"

const meterFields = "Id, Name, Proposal__c, Metering_Point__c, Metering_Point__r.Id, Metering_Point__r.Name, " +
	"Metering_Point__r.POD__c, Metering_Point__r.Annual_Consumption__c, Metering_Point__r.Contracted_Power__c, " +
	"Metering_Point__r.Tariff__c"

type Handler struct {
	connector crmaccess.Connector
	profiles  crmaccess.ProfileReader
	logger    logger.Logger
}

type HandlerOptions struct {
	Connector crmaccess.Connector
	Profiles  crmaccess.ProfileReader
	Logger    logger.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{connector: opts.Connector, profiles: opts.Profiles, logger: opts.Logger}
}

func (h *Handler) Descriptor() callable.Descriptor {
	return callable.Descriptor{
		Name:        FunctionName,
		Description: "Proposal with its metering points",
		Category:    "crm",
		UsesCRM:     true,
	}
}

func (h *Handler) Schema() *validation.Schema { return inputSchema }

func (h *Handler) Invoke(ctx context.Context, req *callable.Request) (interface{}, error) {
	var input Input
	if err := req.Decode(&input); err != nil {
		return nil, err
	}
	return h.Execute(ctx, req, &input)
}

func (h *Handler) Execute(ctx context.Context, req *callable.Request, input *Input) (*Output, error) {
	access, err := crmaccess.Open(ctx, h.connector, h.profiles, req)
	if err != nil {
		return nil, err
	}
	proposal, err := access.LoadProposal(ctx, input.ProposalID)
	if err != nil {
		return nil, err
	}

	var meters []salesforce.ProposalMeter
	soql := fmt.Sprintf("SELECT %s FROM %s WHERE Proposal__c = %s ORDER BY Name",
		meterFields, salesforce.ObjectProposalMeter, salesforce.Quote(proposal.ID))
	if err := access.Client.Query(ctx, soql, &meters); err != nil {
		return nil, salesforce.ClassifyError("query proposal meters", err)
	}

	logger.FromContext(ctx, h.logger).Info("Loaded proposal", map[string]interface{}{
		"proposalId": proposal.ID,
		"meters":     len(meters),
	})
	return &Output{Proposal: proposal, Meters: meters}, nil
}

package opportunitieslist

import (
	"context"
	"fmt"
	"strings"

	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/common/validation"
	"crm-functions/internal/functions/crm/crmaccess"
)

const (
	FunctionName = "crm.opportunities.list"
	defaultLimit = 50
)

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
		Description: "List opportunities visible to the caller's linked CRM user or account",
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
	log := logger.FromContext(ctx, h.logger)

	access, err := crmaccess.Open(ctx, h.connector, h.profiles, req)
	if err != nil {
		return nil, err
	}
	field, value, err := access.OpportunityScope()
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var where []string
	if field != "" {
		where = append(where, fmt.Sprintf("%s = %s", field, salesforce.Quote(value)))
	}
	if input.Stage != "" {
		where = append(where, "StageName = "+salesforce.Quote(input.Stage))
	}

	soql := "SELECT Id, Name, StageName, CloseDate, Amount, AccountId, OwnerId, LastModifiedDate FROM " + salesforce.ObjectOpportunity
	if len(where) > 0 {
		soql += " WHERE " + strings.Join(where, " AND ")
	}
	soql += fmt.Sprintf(" ORDER BY LastModifiedDate DESC LIMIT %d", limit)

	var opps []salesforce.Opportunity
	if err := access.Client.Query(ctx, soql, &opps); err != nil {
		return nil, salesforce.ClassifyError("query opportunities", err)
	}

	log.Info("Listed opportunities", map[string]interface{}{
		"count": len(opps),
		"stage": input.Stage,
		"scope": field,
	})
	return &Output{Opportunities: opps, Count: len(opps)}, nil
}

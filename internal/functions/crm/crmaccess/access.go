// Package crmaccess opens CRM sessions on behalf of a caller and scopes
// record access to the caller's linked CRM identity.
package crmaccess

import (
	"context"
	"fmt"
	"strings"

	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/models"
)

type Connector interface {
	Connect(ctx context.Context, opts salesforce.ConnectOptions) (*salesforce.Client, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, uid string) (*models.Profile, error)
}

// Access is a CRM client bound to one caller.
type Access struct {
	Client  *salesforce.Client
	Caller  *auth.Caller
	Profile *models.Profile
}

// Open resolves the caller's profile and connects with the caller-supplied
// session or a token minted for the profile's CRM username. Only admins may
// fall back to the integration user.
func Open(ctx context.Context, connector Connector, profiles ProfileReader, req *callable.Request) (*Access, error) {
	profile, err := profiles.GetProfile(ctx, req.Caller.UID)
	if err != nil {
		if !errs.HasCode(err, errs.ErrCodeNotFound) {
			return nil, err
		}
		profile = &models.Profile{UID: req.Caller.UID, Role: req.Caller.Role}
	}

	opts := req.CRM
	if !req.HasCallerCRMSession() {
		if profile.CRMUsername == "" && req.Caller.Role != auth.RoleAdmin {
			return nil, errs.NewPermissionDeniedError("profile is not linked to a CRM username")
		}
		opts = salesforce.ConnectOptions{Username: profile.CRMUsername}
	}
	client, err := connector.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Access{Client: client, Caller: req.Caller, Profile: profile}, nil
}

func (a *Access) IsAdmin() bool {
	return a.Caller.Role == auth.RoleAdmin
}

// OpportunityScope returns the Opportunity field and value that restrict
// queries to what the caller may see. Admins get an empty field.
func (a *Access) OpportunityScope() (field, value string, err error) {
	switch a.Caller.Role {
	case auth.RoleAdmin:
		return "", "", nil
	case auth.RoleAgent:
		field = "OwnerId"
	default:
		field = "AccountId"
	}
	if a.Profile.CRMUserID == "" {
		return "", "", errs.NewPermissionDeniedError("profile is not linked to a CRM user")
	}
	return field, a.Profile.CRMUserID, nil
}

// CheckOpportunity fails with PERMISSION_DENIED unless the caller may see opp.
func (a *Access) CheckOpportunity(opp *salesforce.Opportunity) error {
	field, value, err := a.OpportunityScope()
	if err != nil || field == "" {
		return err
	}
	if opp == nil {
		return errs.NewPermissionDeniedError("record has no opportunity")
	}
	owner := opp.AccountID
	if field == "OwnerId" {
		owner = opp.OwnerID
	}
	if owner != value {
		return errs.NewPermissionDeniedError("opportunity " + opp.ID + " is not visible to the caller")
	}
	return nil
}

const proposalFields = "Id, Name, Status__c, Opportunity__c, " +
	"Opportunity__r.Id, Opportunity__r.Name, Opportunity__r.StageName, Opportunity__r.AccountId, Opportunity__r.OwnerId"

// LoadProposal reads a proposal with its opportunity and checks access.
func (a *Access) LoadProposal(ctx context.Context, proposalID string) (*salesforce.Proposal, error) {
	if !salesforce.IsID(proposalID) {
		return nil, errs.NewValidationError("proposalId is not a CRM record id")
	}

	var proposals []salesforce.Proposal
	soql := fmt.Sprintf("SELECT %s FROM %s WHERE Id = %s LIMIT 1", proposalFields, salesforce.ObjectProposal, salesforce.Quote(proposalID))
	if err := a.Client.Query(ctx, soql, &proposals); err != nil {
		return nil, salesforce.ClassifyError("query proposal", err)
	}
	if len(proposals) == 0 {
		return nil, errs.NewNotFoundError("proposal", proposalID)
	}

	p := &proposals[0]
	if err := a.CheckOpportunity(p.Opportunity); err != nil {
		return nil, err
	}
	return p, nil
}

// CheckRecords fails with PERMISSION_DENIED unless one of ids is an
// opportunity, proposal or proposal meter inside the caller's scope.
func (a *Access) CheckRecords(ctx context.Context, ids ...string) error {
	field, value, err := a.OpportunityScope()
	if err != nil || field == "" {
		return err
	}

	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		if salesforce.IsID(id) {
			quoted = append(quoted, salesforce.Quote(id))
		}
	}
	if len(quoted) == 0 {
		return errs.NewPermissionDeniedError("record is not visible to the caller")
	}
	in := strings.Join(quoted, ", ")
	scope := salesforce.Quote(value)

	queries := []string{
		fmt.Sprintf("SELECT Id FROM %s WHERE Id IN (%s) AND %s = %s LIMIT 1",
			salesforce.ObjectOpportunity, in, field, scope),
		fmt.Sprintf("SELECT Id FROM %s WHERE Id IN (%s) AND Opportunity__r.%s = %s LIMIT 1",
			salesforce.ObjectProposal, in, field, scope),
		fmt.Sprintf("SELECT Id FROM %s WHERE Id IN (%s) AND Proposal__r.Opportunity__r.%s = %s LIMIT 1",
			salesforce.ObjectProposalMeter, in, field, scope),
	}
	for _, soql := range queries {
		var rows []struct {
			ID string `json:"Id"`
		}
		if err := a.Client.Query(ctx, soql, &rows); err != nil {
			return salesforce.ClassifyError("check record access", err)
		}
		if len(rows) > 0 {
			return nil
		}
	}
	return errs.NewPermissionDeniedError("record is not visible to the caller")
}

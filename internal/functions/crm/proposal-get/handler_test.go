package proposalget

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	ft "crm-functions/internal/functions/functiontest"
	"crm-functions/internal/models"
)

const proposalID = "a0P000000000001"

func crmWithProposal(t *testing.T) *ft.CRMServer {
	crm := ft.NewCRMServer(t)
	crm.Handle("GET /query", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "FROM Proposal__c"):
			ft.WriteJSON(w, 200, ft.QueryResult(map[string]interface{}{
				"Id": proposalID, "Name": "PR-0001", "Status__c": "Draft", "Opportunity__c": "006000000000001",
				"Opportunity__r": map[string]interface{}{"Id": "006000000000001", "AccountId": "001ACC", "OwnerId": "005OWN"},
			}))
		case strings.Contains(q, "FROM Proposal_Meter__c"):
			assert.Contains(t, q, "WHERE Proposal__c = '"+proposalID+"'")
			ft.WriteJSON(w, 200, ft.QueryResult(map[string]interface{}{
				"Id": "a0Q000000000001", "Proposal__c": proposalID, "Metering_Point__c": "a0M000000000001",
				"Metering_Point__r": map[string]interface{}{"Id": "a0M000000000001", "POD__c": "IT001E12345678", "Annual_Consumption__c": 3500.0},
			}))
		default:
			t.Errorf("unexpected query %s", q)
		}
	})
	return crm
}

func TestHandler_Execute(t *testing.T) {
	crm := crmWithProposal(t)
	h := NewHandler(HandlerOptions{
		Connector: crm.Connector(t),
		Profiles:  ft.NewProfiles(&models.Profile{UID: "cust", CRMUserID: "001ACC"}),
		Logger:    logger.NewTestLogger(t),
	})

	out, err := h.Invoke(context.Background(), crm.Session(ft.Request(t, ft.Customer("cust"), Input{ProposalID: proposalID})))
	require.NoError(t, err)
	res := out.(*Output)
	assert.Equal(t, "PR-0001", res.Proposal.Name)
	require.Len(t, res.Meters, 1)
	assert.Equal(t, "IT001E12345678", res.Meters[0].MeteringPoint.POD)
	assert.Equal(t, 3500.0, *res.Meters[0].MeteringPoint.AnnualConsumption)
}

func TestHandler_OtherCustomerDenied(t *testing.T) {
	crm := crmWithProposal(t)
	h := NewHandler(HandlerOptions{
		Connector: crm.Connector(t),
		Profiles:  ft.NewProfiles(&models.Profile{UID: "cust", CRMUserID: "001SOMEONEELSE"}),
		Logger:    logger.NewTestLogger(t),
	})

	_, err := h.Invoke(context.Background(), crm.Session(ft.Request(t, ft.Customer("cust"), Input{ProposalID: proposalID})))
	assert.True(t, errs.HasCode(err, errs.ErrCodePermissionDenied))
	assert.Equal(t, 1, crm.CallsTo("GET /query"), "meters are not queried")
}

package crmaccess

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/models"
)

type profileMap map[string]*models.Profile

func (p profileMap) GetProfile(_ context.Context, uid string) (*models.Profile, error) {
	if pr, ok := p[uid]; ok {
		return pr, nil
	}
	return nil, errs.NewNotFoundError("profile", uid)
}

func crmServer(t *testing.T, proposals []map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/query"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"totalSize": len(proposals), "done": true, "records": proposals})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func open(t *testing.T, srv *httptest.Server, caller *auth.Caller, profiles profileMap) *Access {
	t.Helper()
	connector := salesforce.NewConnectorWith(nil, nil, "v59.0", "", srv.Client(), logger.NewTestLogger(t))
	req := &callable.Request{Caller: caller, CRM: salesforce.ConnectOptions{AccessToken: "tok", InstanceURL: srv.URL}}
	a, err := Open(context.Background(), connector, profiles, req)
	require.NoError(t, err)
	return a
}

var proposal = map[string]interface{}{
	"Id": "a0P000000000001", "Name": "P-1", "Opportunity__c": "006000000000001",
	"Opportunity__r": map[string]interface{}{"Id": "006000000000001", "AccountId": "001CUSTOMER", "OwnerId": "005AGENT"},
}

func TestLoadProposal_Access(t *testing.T) {
	srv := crmServer(t, []map[string]interface{}{proposal})
	profiles := profileMap{
		"cust":  {UID: "cust", Role: auth.RoleCustomer, CRMUserID: "001CUSTOMER"},
		"other": {UID: "other", Role: auth.RoleCustomer, CRMUserID: "001OTHER"},
		"agent": {UID: "agent", Role: auth.RoleAgent, CRMUserID: "005AGENT"},
	}

	tests := []struct {
		name     string
		caller   *auth.Caller
		wantCode errs.ErrorCode
	}{
		{"owning customer", &auth.Caller{UID: "cust", Role: auth.RoleCustomer}, ""},
		{"other customer", &auth.Caller{UID: "other", Role: auth.RoleCustomer}, errs.ErrCodePermissionDenied},
		{"owning agent", &auth.Caller{UID: "agent", Role: auth.RoleAgent}, ""},
		{"admin without profile", &auth.Caller{UID: "root", Role: auth.RoleAdmin}, ""},
		{"unlinked customer", &auth.Caller{UID: "nobody", Role: auth.RoleCustomer}, errs.ErrCodePermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := open(t, srv, tt.caller, profiles)
			p, err := a.LoadProposal(context.Background(), "a0P000000000001")
			if tt.wantCode != "" {
				assert.True(t, errs.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "P-1", p.Name)
		})
	}
}

func TestLoadProposal_NotFoundAndBadID(t *testing.T) {
	srv := crmServer(t, nil)
	a := open(t, srv, &auth.Caller{UID: "root", Role: auth.RoleAdmin}, profileMap{})

	_, err := a.LoadProposal(context.Background(), "a0P000000000001")
	assert.True(t, errs.HasCode(err, errs.ErrCodeNotFound))

	_, err = a.LoadProposal(context.Background(), "x' OR Id != '")
	assert.True(t, errs.HasCode(err, errs.ErrCodeValidationFailed))
}

func TestOpen_MintsForProfileUsername(t *testing.T) {
	connector := salesforce.NewConnectorWith(nil, nil, "v59.0", "", nil, logger.NewTestLogger(t))
	req := &callable.Request{Caller: &auth.Caller{UID: "agent", Role: auth.RoleAgent}}
	_, err := Open(context.Background(), connector, profileMap{
		"agent": {UID: "agent", CRMUsername: "agent@example.com"},
	}, req)
	assert.True(t, errs.HasCode(err, errs.ErrCodeCRMNotConfigured), "no minter configured")
}

func TestOpen_IntegrationUserOnlyForAdmins(t *testing.T) {
	connector := salesforce.NewConnectorWith(nil, nil, "v59.0", "integration@example.com", nil, logger.NewTestLogger(t))

	req := &callable.Request{Caller: &auth.Caller{UID: "agent", Role: auth.RoleAgent}}
	_, err := Open(context.Background(), connector, profileMap{"agent": {UID: "agent", CRMUserID: "005AGENT"}}, req)
	assert.True(t, errs.HasCode(err, errs.ErrCodePermissionDenied), "got %v", err)

	req = &callable.Request{Caller: &auth.Caller{UID: "cust", Role: auth.RoleCustomer}}
	_, err = Open(context.Background(), connector, profileMap{}, req)
	assert.True(t, errs.HasCode(err, errs.ErrCodePermissionDenied), "got %v", err)

	req = &callable.Request{Caller: &auth.Caller{UID: "root", Role: auth.RoleAdmin}}
	_, err = Open(context.Background(), connector, profileMap{}, req)
	assert.True(t, errs.HasCode(err, errs.ErrCodeCRMNotConfigured), "admin reaches the integration user, got %v", err)
}

func TestCheckRecords(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	seen := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), queries...)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()
		var records []map[string]interface{}
		if strings.Contains(q, "FROM Proposal__c") && strings.Contains(q, "Opportunity__r.AccountId = '001CUSTOMER'") {
			records = append(records, map[string]interface{}{"Id": "a0P000000000001"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"totalSize": len(records), "done": true, "records": records})
	}))
	t.Cleanup(srv.Close)
	profiles := profileMap{
		"cust":  {UID: "cust", Role: auth.RoleCustomer, CRMUserID: "001CUSTOMER"},
		"other": {UID: "other", Role: auth.RoleCustomer, CRMUserID: "001OTHER"},
	}

	a := open(t, srv, &auth.Caller{UID: "cust", Role: auth.RoleCustomer}, profiles)
	require.NoError(t, a.CheckRecords(context.Background(), "005000000000001", "a0P000000000001"))
	assert.Contains(t, seen()[0], "FROM Opportunity WHERE Id IN ('005000000000001', 'a0P000000000001') AND AccountId = '001CUSTOMER'")

	a = open(t, srv, &auth.Caller{UID: "other", Role: auth.RoleCustomer}, profiles)
	err := a.CheckRecords(context.Background(), "a0P000000000001")
	assert.True(t, errs.HasCode(err, errs.ErrCodePermissionDenied), "got %v", err)
	last := seen()
	assert.Contains(t, last[len(last)-1], "Proposal__r.Opportunity__r.AccountId = '001OTHER'")

	mu.Lock()
	queries = nil
	mu.Unlock()
	a = open(t, srv, &auth.Caller{UID: "cust", Role: auth.RoleCustomer}, profiles)
	err = a.CheckRecords(context.Background(), "x' OR Id != '")
	assert.True(t, errs.HasCode(err, errs.ErrCodePermissionDenied))
	assert.Empty(t, seen())

	a = open(t, srv, &auth.Caller{UID: "root", Role: auth.RoleAdmin}, profiles)
	require.NoError(t, a.CheckRecords(context.Background()))
	assert.Empty(t, seen())
}

func TestUploadKeys(t *testing.T) {
	assert.Equal(t, "uploads/u1/", UploadPrefix("u1"))
	assert.True(t, OwnsUpload("u1", "uploads/u1/4f1c/scan.jpg"))
	assert.False(t, OwnsUpload("u1", "uploads/u2/4f1c/scan.jpg"))
	assert.False(t, OwnsUpload("u1", "uploads/u1/scan.jpg"))
	assert.False(t, OwnsUpload("u1", "uploads/u1/../u2/scan.jpg"))
	assert.False(t, OwnsUpload("u1", "uploads/u1//scan.jpg"))
	assert.False(t, OwnsUpload("u", "uploads/u1/4f1c/scan.jpg"))
	assert.False(t, OwnsUpload("u1/x", "uploads/u1/x/scan.jpg"))
	assert.False(t, OwnsUpload("u1", "chat/u1_u2/img.png"))
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "a.pdf", SafeFileName(`..\..\a.pdf`))
	assert.Equal(t, "file", SafeFileName(""))
	assert.Equal(t, "file", SafeFileName(".."))
	assert.Equal(t, "ab.txt", SafeFileName("a\nb.txt"))
}

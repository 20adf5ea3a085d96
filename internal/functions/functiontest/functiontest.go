// Package functiontest has fakes shared by the function handler tests.
package functiontest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"crm-functions/internal/common/auth"
	"crm-functions/internal/common/callable"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/models"
)

const APIVersion = "v59.0"

// Request builds an invocation for caller with data marshalled as the payload.
func Request(t *testing.T, caller *auth.Caller, data interface{}) *callable.Request {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &callable.Request{Function: "test", RequestID: "req-1", Caller: caller, Data: raw}
}

func Customer(uid string) *auth.Caller { return &auth.Caller{UID: uid, Role: auth.RoleCustomer} }
func Agent(uid string) *auth.Caller    { return &auth.Caller{UID: uid, Role: auth.RoleAgent} }
func Admin(uid string) *auth.Caller    { return &auth.Caller{UID: uid, Role: auth.RoleAdmin} }

// Call is one request seen by a CRMServer.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

// CRMServer is an httptest CRM whose routes are keyed by "METHOD /path"
// relative to /services/data/{version}.
type CRMServer struct {
	*httptest.Server
	t *testing.T

	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []Call
}

func NewCRMServer(t *testing.T) *CRMServer {
	t.Helper()
	s := &CRMServer{t: t, routes: make(map[string]http.HandlerFunc)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *CRMServer) Handle(route string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[route] = h
}

// HandleJSON answers route with a fixed status and body.
func (s *CRMServer) HandleJSON(route string, status int, body interface{}) {
	s.Handle(route, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	})
}

func (s *CRMServer) serve(w http.ResponseWriter, r *http.Request) {
	prefix := "/services/data/" + APIVersion
	path := r.URL.Path
	if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
		path = path[len(prefix):]
	}

	call := Call{Method: r.Method, Path: path, Query: r.URL.Query().Get("q")}
	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPatch) {
		_ = json.NewDecoder(r.Body).Decode(&call.Body)
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	h, ok := s.routes[r.Method+" "+path]
	s.mu.Unlock()

	if !ok {
		s.t.Errorf("unexpected CRM request %s %s", r.Method, path)
		WriteJSON(w, http.StatusNotFound, []map[string]string{{"errorCode": "NOT_FOUND", "message": "no route"}})
		return
	}
	h(w, r)
}

// Calls returns the requests received so far.
func (s *CRMServer) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo counts requests for "METHOD /path".
func (s *CRMServer) CallsTo(route string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method+" "+c.Path == route {
			n++
		}
	}
	return n
}

// Connector returns a Connector that accepts the caller session pointing at this server.
func (s *CRMServer) Connector(t *testing.T) *salesforce.Connector {
	return salesforce.NewConnectorWith(nil, nil, APIVersion, "", s.Client(), logger.NewTestLogger(t))
}

// Session attaches a caller-supplied CRM session for this server to req.
func (s *CRMServer) Session(req *callable.Request) *callable.Request {
	req.CRM = salesforce.ConnectOptions{AccessToken: "00Dtest", InstanceURL: s.URL}
	return req
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// QueryResult is a single-page SOQL response.
func QueryResult(records ...map[string]interface{}) map[string]interface{} {
	if records == nil {
		records = []map[string]interface{}{}
	}
	return map[string]interface{}{"totalSize": len(records), "done": true, "records": records}
}

// Created is a successful sobject create response.
func Created(id string) map[string]interface{} {
	return map[string]interface{}{"id": id, "success": true, "errors": []interface{}{}}
}

// Profiles is an in-memory profile store.
type Profiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
}

func NewProfiles(profiles ...*models.Profile) *Profiles {
	p := &Profiles{profiles: make(map[string]*models.Profile)}
	for _, pr := range profiles {
		p.profiles[pr.UID] = pr
	}
	return p
}

func (p *Profiles) GetProfile(_ context.Context, uid string) (*models.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr, ok := p.profiles[uid]; ok {
		cp := *pr
		return &cp, nil
	}
	return nil, errs.NewNotFoundError("profile", uid)
}

func (p *Profiles) GetProfiles(_ context.Context, uids []string) (map[string]*models.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]*models.Profile)
	for _, uid := range uids {
		if pr, ok := p.profiles[uid]; ok {
			cp := *pr
			out[uid] = &cp
		}
	}
	return out, nil
}

// PruneNotificationTokens drops the given tokens from every profile.
func (p *Profiles) PruneNotificationTokens(_ context.Context, tokens []string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	drop := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		drop[t] = true
	}
	var n int64
	for _, pr := range p.profiles {
		kept := pr.NotificationTokens[:0:0]
		for _, t := range pr.NotificationTokens {
			if drop[t.Token] {
				n++
				continue
			}
			kept = append(kept, t)
		}
		pr.NotificationTokens = kept
	}
	return n, nil
}

package attachmentupload

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-functions/internal/blob"
	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/common/logger"
	ft "crm-functions/internal/functions/functiontest"
	"crm-functions/internal/models"
)

const recordID = "a0Q000000000001"

type fakeBlobs map[string][]byte

func (f fakeBlobs) Download(_ context.Context, key string, maxBytes int64) (*blob.Object, error) {
	data, ok := f[key]
	if !ok {
		return nil, errs.NewNotFoundError("blob", key)
	}
	if int64(len(data)) > maxBytes {
		return nil, errs.NewValidationError("too large")
	}
	return &blob.Object{Key: key, Data: data}, nil
}

// attachRoutes serves the upload and a scope check that finds recordID, a
// proposal meter under an opportunity owned by 005AGENT.
func attachRoutes(crm *ft.CRMServer) {
	crm.Handle("GET /query", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if strings.Contains(q, "FROM Proposal_Meter__c") && strings.Contains(q, "Proposal__r.Opportunity__r.OwnerId = '005AGENT'") {
			ft.WriteJSON(w, 200, ft.QueryResult(map[string]interface{}{"Id": recordID}))
			return
		}
		ft.WriteJSON(w, 200, ft.QueryResult())
	})
	crm.HandleJSON("POST /sobjects/ContentVersion", 201, ft.Created("068000000000001"))
	crm.HandleJSON("GET /sobjects/ContentVersion/068000000000001", 200, map[string]interface{}{"Id": "068000000000001", "ContentDocumentId": "069000000000001"})
	crm.HandleJSON("POST /sobjects/ContentDocumentLink", 201, ft.Created("06A000000000001"))
}

func agentProfile(crmUserID string) *models.Profile {
	return &models.Profile{UID: "agent", Role: "agent", CRMUserID: crmUserID}
}

func newHandler(t *testing.T, crm *ft.CRMServer, blobs BlobReader, maxBytes int64) *Handler {
	return newHandlerWith(t, crm, blobs, maxBytes, agentProfile("005AGENT"), ft.NewChats())
}

func newHandlerWith(t *testing.T, crm *ft.CRMServer, blobs BlobReader, maxBytes int64, profile *models.Profile, chats *ft.Chats) *Handler {
	return NewHandler(HandlerOptions{
		AppConfig:     &config.Config{Workflow: config.WorkflowConfig{MaxFileBytes: maxBytes}},
		Connector:     crm.Connector(t),
		Profiles:      ft.NewProfiles(profile),
		Conversations: chats,
		Blobs:         blobs,
		Logger:        logger.NewTestLogger(t),
	})
}

func TestHandler_Base64(t *testing.T) {
	crm := ft.NewCRMServer(t)
	attachRoutes(crm)
	h := newHandler(t, crm, nil, 1024)

	input := Input{RecordID: recordID, FileName: "contract.pdf", ContentBase64: base64.StdEncoding.EncodeToString([]byte("%PDF-contract"))}
	out, err := h.Invoke(context.Background(), crm.Session(ft.Request(t, ft.Agent("agent"), input)))
	require.NoError(t, err)

	res := out.(*Output)
	assert.Equal(t, "068000000000001", res.ContentVersionID)
	assert.Equal(t, "069000000000001", res.ContentDocumentID)
	assert.Equal(t, "06A000000000001", res.LinkID)
	assert.Equal(t, len("%PDF-contract"), res.Size)

	for _, c := range crm.Calls() {
		if c.Path == "/sobjects/ContentVersion" {
			assert.Equal(t, "contract", c.Body["Title"])
		}
	}
}

func TestHandler_FromBlobStore(t *testing.T) {
	crm := ft.NewCRMServer(t)
	attachRoutes(crm)
	h := newHandler(t, crm, fakeBlobs{"uploads/agent/f-1/scan.jpg": []byte("jpeg")}, 1024)

	out, err := h.Invoke(context.Background(), crm.Session(ft.Request(t, ft.Agent("agent"), Input{
		RecordID: recordID, FileName: "scan.jpg", Title: "ID scan", BlobKey: "uploads/agent/f-1/scan.jpg",
	})))
	require.NoError(t, err)
	assert.Equal(t, 4, out.(*Output).Size)
}

func TestHandler_FromChatImage(t *testing.T) {
	chats := ft.NewChats()
	conv, _, err := chats.GetOrCreateConversation(context.Background(), "agent", "cust")
	require.NoError(t, err)
	_, _, err = chats.GetOrCreateConversation(context.Background(), "cust", "other")
	require.NoError(t, err)

	crm := ft.NewCRMServer(t)
	attachRoutes(crm)
	blobs := fakeBlobs{"chat/cust_other/img.png": []byte("png")}
	blobs["chat/"+conv.ID+"/img.png"] = []byte("png")
	h := newHandlerWith(t, crm, blobs, 1024, agentProfile("005AGENT"), chats)

	out, err := h.Invoke(context.Background(), crm.Session(ft.Request(t, ft.Agent("agent"), Input{
		RecordID: recordID, FileName: "meter.png", BlobKey: "chat/" + conv.ID + "/img.png",
	})))
	require.NoError(t, err)
	assert.Equal(t, 3, out.(*Output).Size)

	_, err = h.Invoke(context.Background(), crm.Session(ft.Request(t, ft.Agent("agent"), Input{
		RecordID: recordID, FileName: "meter.png", BlobKey: "chat/cust_other/img.png",
	})))
	assert.True(t, errs.HasCode(err, errs.ErrCodePermissionDenied), "got %v", err)
}

func TestHandler_RecordOutsideCallerScope(t *testing.T) {
	crm := ft.NewCRMServer(t)
	attachRoutes(crm)
	h := newHandlerWith(t, crm, nil, 1024, agentProfile("005OTHER"), ft.NewChats())

	input := Input{RecordID: recordID, FileName: "contract.pdf", ContentBase64: base64.StdEncoding.EncodeToString([]byte("%PDF"))}
	_, err := h.Invoke(context.Background(), crm.Session(ft.Request(t, ft.Agent("agent"), input)))
	assert.True(t, errs.HasCode(err, errs.ErrCodePermissionDenied), "got %v", err)
	assert.Zero(t, crm.CallsTo("POST /sobjects/ContentVersion"))
	assert.Zero(t, crm.CallsTo("POST /sobjects/ContentDocumentLink"))
}

func TestHandler_NoIntegrationUserForAgents(t *testing.T) {
	crm := ft.NewCRMServer(t)
	attachRoutes(crm)
	h := newHandler(t, crm, nil, 1024)

	input := Input{RecordID: recordID, FileName: "contract.pdf", ContentBase64: base64.StdEncoding.EncodeToString([]byte("%PDF"))}
	_, err := h.Invoke(context.Background(), ft.Request(t, ft.Agent("agent"), input))
	assert.True(t, errs.HasCode(err, errs.ErrCodePermissionDenied), "got %v", err)
	assert.Empty(t, crm.Calls())
}

func TestHandler_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		code  errs.ErrorCode
	}{
		{"bad base64", Input{RecordID: recordID, FileName: "a.pdf", ContentBase64: "***"}, errs.ErrCodeValidationFailed},
		{"too large", Input{RecordID: recordID, FileName: "a.pdf", ContentBase64: base64.StdEncoding.EncodeToString(make([]byte, 64))}, errs.ErrCodeValidationFailed},
		{"bad record id", Input{RecordID: "nope", FileName: "a.pdf", ContentBase64: "AA=="}, errs.ErrCodeValidationFailed},
		{"missing blob", Input{RecordID: recordID, FileName: "a.pdf", BlobKey: "uploads/agent/f-1/missing.pdf"}, errs.ErrCodeNotFound},
		{"foreign upload", Input{RecordID: recordID, FileName: "a.pdf", BlobKey: "uploads/u1/f-1/a.pdf"}, errs.ErrCodePermissionDenied},
		{"bare key", Input{RecordID: recordID, FileName: "a.pdf", BlobKey: "crm/attachments/068000000000001/a.pdf"}, errs.ErrCodePermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crm := ft.NewCRMServer(t)
			h := newHandler(t, crm, fakeBlobs{}, 16)
			_, err := h.Execute(context.Background(), crm.Session(ft.Request(t, ft.Agent("agent"), nil)), &tt.input)
			assert.True(t, errs.HasCode(err, tt.code), "got %v", err)
			assert.Empty(t, crm.Calls())
		})
	}
}

func TestSchema_OneSource(t *testing.T) {
	res, err := inputSchema.Validate([]byte(`{"recordId":"a0Q000000000001","fileName":"a","contentBase64":"AA==","blobKey":"k"}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = inputSchema.Validate([]byte(`{"recordId":"a0Q000000000001","fileName":"a"}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

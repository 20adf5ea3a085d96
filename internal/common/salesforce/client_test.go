package salesforce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "crm-functions/internal/common/errors"
)

const apiVersion = "v59.0"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Session{AccessToken: "00Dtoken", InstanceURL: srv.URL}, apiVersion, srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_QueryFollowsPagination(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer 00Dtoken", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/services/data/v59.0/query":
			assert.Equal(t, "SELECT Id, Name FROM Opportunity", r.URL.Query().Get("q"))
			writeJSON(w, 200, map[string]interface{}{
				"totalSize":      3,
				"done":           false,
				"nextRecordsUrl": "/services/data/v59.0/query/01gD0000002HU6KIAW-2000",
				"records":        []map[string]interface{}{{"Id": "006A", "Name": "First"}, {"Id": "006B", "Name": "Second"}},
			})
		case "/services/data/v59.0/query/01gD0000002HU6KIAW-2000":
			writeJSON(w, 200, map[string]interface{}{
				"totalSize": 3,
				"done":      true,
				"records":   []map[string]interface{}{{"Id": "006C", "Name": "Third"}},
			})
		default:
			http.NotFound(w, r)
		}
	})

	var opps []Opportunity
	require.NoError(t, client.Query(context.Background(), "SELECT Id, Name FROM Opportunity", &opps))
	require.Len(t, opps, 3)
	assert.Equal(t, "006C", opps[2].ID)
}

func TestClient_QueryEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"totalSize": 0, "done": true, "records": []interface{}{}})
	})

	var points []MeteringPoint
	require.NoError(t, client.Query(context.Background(), "SELECT Id FROM Metering_Point__c", &points))
	assert.Empty(t, points)
	assert.NotNil(t, points)
}

func TestClient_CreateAndClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     interface{}
		wantID   string
		wantCode errs.ErrorCode
	}{
		{
			name:   "created",
			status: 201,
			body:   map[string]interface{}{"id": "a0M000000000001", "success": true, "errors": []interface{}{}},
			wantID: "a0M000000000001",
		},
		{
			name:   "missing field",
			status: 400,
			body: []map[string]interface{}{{
				"message": "Required fields are missing: [POD__c]", "errorCode": "REQUIRED_FIELD_MISSING", "fields": []string{"POD__c"},
			}},
			wantCode: errs.ErrCodeValidationFailed,
		},
		{
			name:     "expired session",
			status:   401,
			body:     []map[string]interface{}{{"message": "Session expired or invalid", "errorCode": "INVALID_SESSION_ID"}},
			wantCode: errs.ErrCodeSessionExpired,
		},
		{
			name:     "duplicate",
			status:   400,
			body:     []map[string]interface{}{{"message": "duplicate value found", "errorCode": "DUPLICATE_VALUE"}},
			wantCode: errs.ErrCodeAlreadyExists,
		},
		{
			name:     "server error",
			status:   500,
			body:     []map[string]interface{}{{"message": "An unexpected error occurred", "errorCode": "UNKNOWN_EXCEPTION"}},
			wantCode: errs.ErrCodeCRMAPIError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/services/data/v59.0/sobjects/Metering_Point__c", r.URL.Path)
				writeJSON(w, tt.status, tt.body)
			})

			id, err := client.Create(context.Background(), ObjectMeteringPoint, map[string]interface{}{"POD__c": "IT001E1"})
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, id)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, ClassifyError("create Metering_Point__c", err).Code)
		})
	}
}

func TestClassifyError_FieldErrors(t *testing.T) {
	err := &APIError{
		Operation:  "create",
		StatusCode: 400,
		Items:      []APIErrorItem{{ErrorCode: "INVALID_FIELD", Message: "bad value", Fields: []string{"Tariff__c"}}},
	}
	std := ClassifyError("create", err)
	assert.Equal(t, errs.ErrCodeValidationFailed, std.Code)
	assert.Equal(t, []string{"Tariff__c: bad value"}, std.Metadata["fieldErrors"])

	notFound := ClassifyError("get", &APIError{Operation: "get", StatusCode: 404})
	assert.Equal(t, errs.ErrCodeNotFound, notFound.Code)

	assert.Nil(t, ClassifyError("noop", nil))
}

func TestClient_AttachFile(t *testing.T) {
	var linkBody map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/services/data/v59.0/sobjects/ContentVersion":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "bill", body["Title"])
			assert.Equal(t, "bill.pdf", body["PathOnClient"])
			assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF")), body["VersionData"])
			writeJSON(w, 201, map[string]interface{}{"id": "068000000000001", "success": true})
		case r.Method == http.MethodGet && r.URL.Path == "/services/data/v59.0/sobjects/ContentVersion/068000000000001":
			assert.Equal(t, "Id,ContentDocumentId", r.URL.Query().Get("fields"))
			writeJSON(w, 200, map[string]interface{}{"Id": "068000000000001", "ContentDocumentId": "069000000000001"})
		case r.Method == http.MethodPost && r.URL.Path == "/services/data/v59.0/sobjects/ContentDocumentLink":
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &linkBody))
			writeJSON(w, 201, map[string]interface{}{"id": "06A000000000001", "success": true})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})

	attached, err := client.AttachFile(context.Background(), "a0P000000000001", FileUpload{FileName: "bill.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, &AttachedFile{
		ContentVersionID:  "068000000000001",
		ContentDocumentID: "069000000000001",
		LinkID:            "06A000000000001",
	}, attached)
	assert.Equal(t, "069000000000001", linkBody["ContentDocumentId"])
	assert.Equal(t, "a0P000000000001", linkBody["LinkedEntityId"])
	assert.Equal(t, "V", linkBody["ShareType"])
}

func TestClient_DownloadContentVersion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/data/v59.0/sobjects/ContentVersion/068000000000001":
			writeJSON(w, 200, map[string]interface{}{"Id": "068000000000001", "Title": "Contract", "PathOnClient": "contract.pdf", "FileExtension": "pdf"})
		case "/services/data/v59.0/sobjects/ContentVersion/068000000000001/VersionData":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-contract"))
		default:
			http.NotFound(w, r)
		}
	})

	file, err := client.DownloadContentVersion(context.Background(), "068000000000001")
	require.NoError(t, err)
	assert.Equal(t, "contract.pdf", file.FileName)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, []byte("%PDF-contract"), file.Data)
}

func TestClient_FindLinkedFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		assert.Contains(t, q, "LinkedEntityId = 'a0P000000000001'")
		assert.Contains(t, q, `ContentDocument.Title = 'O\'Brien bill'`)
		assert.Contains(t, q, `ContentDocument.LatestPublishedVersion.PathOnClient = 'O\'Brien bill.pdf'`)
		writeJSON(w, 200, map[string]interface{}{
			"totalSize": 1, "done": true,
			"records": []map[string]interface{}{{
				"Id": "06A000000000009", "ContentDocumentId": "069000000000009",
				"ContentDocument": map[string]interface{}{"Title": "O'Brien bill", "LatestPublishedVersionId": "068000000000009"},
			}},
		})
	})

	found, err := client.FindLinkedFile(context.Background(), "a0P000000000001", "O'Brien bill", "O'Brien bill.pdf")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "068000000000009", found.ContentVersionID)
	assert.Equal(t, "06A000000000009", found.LinkID)
}

func TestClient_FileLinks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/services/data/v59.0/sobjects/ContentVersion/068000000000001":
			assert.Equal(t, "Id,ContentDocumentId", r.URL.Query().Get("fields"))
			writeJSON(w, 200, map[string]interface{}{"Id": "068000000000001", "ContentDocumentId": "069000000000001"})
		case "/services/data/v59.0/query":
			assert.Contains(t, r.URL.Query().Get("q"), "ContentDocumentId = '069000000000001'")
			writeJSON(w, 200, map[string]interface{}{
				"totalSize": 2, "done": true,
				"records": []map[string]interface{}{
					{"Id": "06A000000000001", "LinkedEntityId": "005000000000001"},
					{"Id": "06A000000000002", "LinkedEntityId": "a0P000000000001"},
				},
			})
		default:
			http.NotFound(w, r)
		}
	})

	ids, err := client.FileLinks(context.Background(), "068000000000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"005000000000001", "a0P000000000001"}, ids)
}

func TestQuoteAndIsID(t *testing.T) {
	assert.Equal(t, `'it\'s'`, Quote("it's"))
	assert.Equal(t, `'a\\b'`, Quote(`a\b`))
	assert.True(t, IsID("0065g00000AbCdE"))
	assert.True(t, IsID("0065g00000AbCdEAAZ"))
	assert.False(t, IsID("006'; DROP"))
	assert.False(t, IsID("short"))
}

func TestCheckInstanceURL(t *testing.T) {
	hosts := []string{"my.salesforce.com", ".sandbox.my.salesforce.com"}
	for _, ok := range []string{
		"https://acme.my.salesforce.com",
		"https://ACME.My.Salesforce.com/",
		"https://acme.my.salesforce.com:443",
		"https://acme--dev.sandbox.my.salesforce.com",
	} {
		assert.NoError(t, CheckInstanceURL(ok, hosts), ok)
	}
	for _, bad := range []string{
		"",
		"acme.my.salesforce.com",
		"http://acme.my.salesforce.com",
		"https://169.254.169.254",
		"https://my.salesforce.com.attacker.net",
		"https://evilmy.salesforce.com",
		"https://acme.my.salesforce.com:8443",
		"https://u:p@acme.my.salesforce.com",
	} {
		err := CheckInstanceURL(bad, hosts)
		require.Error(t, err, bad)
		assert.True(t, errs.HasCode(err, errs.ErrCodeValidationFailed), bad)
	}
}

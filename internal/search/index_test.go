package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// fakeTransport answers Elasticsearch calls without a cluster.
type fakeTransport struct {
	requests []recordedRequest
	respond  func(r *http.Request) (int, string)
}

func (f *fakeTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &rec.Body)
	}
	f.requests = append(f.requests, rec)

	status, body := f.respond(r)
	h := http.Header{}
	h.Set("X-Elastic-Product", "Elasticsearch")
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}, nil
}

func newTestIndex(t *testing.T, respond func(r *http.Request) (int, string)) (*MessageIndex, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{respond: respond}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: ft,
	})
	require.NoError(t, err)
	return NewMessageIndex(client, "chat-messages"), ft
}

func TestMessageIndex_EnsureIndexCreatesMissing(t *testing.T) {
	idx, ft := newTestIndex(t, func(r *http.Request) (int, string) {
		if r.Method == http.MethodHead {
			return 404, ``
		}
		return 200, `{"acknowledged":true}`
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))
	require.Len(t, ft.requests, 2)
	assert.Equal(t, http.MethodPut, ft.requests[1].Method)
	assert.Equal(t, "/chat-messages", ft.requests[1].Path)
	assert.Contains(t, ft.requests[1].Body, "mappings")
}

func TestMessageIndex_IndexMessage(t *testing.T) {
	idx, ft := newTestIndex(t, func(r *http.Request) (int, string) {
		return 201, `{"result":"created"}`
	})
	msg := &models.Message{
		ID: "6f1d", ConversationID: "alice_bob", SenderID: "alice", Text: "contract attached",
		ImageKey: "chat/alice_bob/1.jpg", CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	require.NoError(t, idx.IndexMessage(context.Background(), msg, []string{"alice", "bob"}))
	require.Len(t, ft.requests, 1)
	assert.Equal(t, "/chat-messages/_doc/6f1d", ft.requests[0].Path)
	assert.Equal(t, true, ft.requests[0].Body["hasImage"])
	assert.Equal(t, []interface{}{"alice", "bob"}, ft.requests[0].Body["participants"])
}

func TestMessageIndex_Search(t *testing.T) {
	idx, ft := newTestIndex(t, func(r *http.Request) (int, string) {
		return 200, `{
			"hits": {
				"total": {"value": 1, "relation": "eq"},
				"hits": [{
					"_score": 2.5,
					"_source": {"id": "m1", "conversationId": "alice_bob", "senderId": "bob", "text": "meter reading", "createdAt": "2026-03-01T08:00:00Z"},
					"highlight": {"text": ["<em>meter</em> reading"]}
				}]
			}
		}`
	})

	res, err := idx.Search(context.Background(), Query{UID: "alice", Text: "meter", Size: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "m1", res.Hits[0].ID)
	assert.Equal(t, []string{"<em>meter</em> reading"}, res.Hits[0].Highlight)

	body := ft.requests[0].Body
	assert.Equal(t, float64(20), body["size"], "oversized pages fall back to the default")
	filter := body["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"participants": "alice"}}, filter[0])

	_, err = idx.Search(context.Background(), Query{Text: "x"})
	assert.True(t, errs.HasCode(err, errs.ErrCodeValidationFailed))
}

func TestMessageIndex_SearchError(t *testing.T) {
	idx, _ := newTestIndex(t, func(r *http.Request) (int, string) {
		return 400, `{"error":{"type":"parsing_exception"}}`
	})
	_, err := idx.Search(context.Background(), Query{UID: "alice", Text: "x"})
	assert.True(t, errs.HasCode(err, errs.ErrCodeSearchQueryFailed))
}

func TestMessageIndex_DeleteBefore(t *testing.T) {
	idx, ft := newTestIndex(t, func(r *http.Request) (int, string) {
		return 200, `{"deleted": 42}`
	})
	n, err := idx.DeleteBefore(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, "/chat-messages/_delete_by_query", ft.requests[0].Path)
	assert.Contains(t, ft.requests[0].Body["query"].(map[string]interface{})["range"], "createdAt")
}

// Package search keeps chat messages in an Elasticsearch index for full-text search.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	errs "crm-functions/internal/common/errors"
	"crm-functions/internal/models"
)

const indexMapping = `{
  "settings": {"number_of_shards": 1},
  "mappings": {
    "properties": {
      "id":             {"type": "keyword"},
      "conversationId": {"type": "keyword"},
      "senderId":       {"type": "keyword"},
      "participants":   {"type": "keyword"},
      "text":           {"type": "text"},
      "hasImage":       {"type": "boolean"},
      "createdAt":      {"type": "date"}
    }
  }
}`

// Document is the indexed form of a message.
type Document struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Participants   []string  `json:"participants"`
	Text           string    `json:"text"`
	HasImage       bool      `json:"hasImage"`
	CreatedAt      time.Time `json:"createdAt"`
}

type MessageIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewMessageIndex(client *elasticsearch.Client, index string) *MessageIndex {
	return &MessageIndex{client: client, index: index}
}

func (m *MessageIndex) Name() string {
	return m.index
}

// EnsureIndex creates the index with its mapping if it does not exist.
func (m *MessageIndex) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{m.index}}.Do(ctx, m.client)
	if err != nil {
		return errs.NewSearchQueryFailedError(m.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{Index: m.index, Body: strings.NewReader(indexMapping)}.Do(ctx, m.client)
	if err != nil {
		return errs.NewSearchQueryFailedError(m.index, err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(readBody(res.Body), "resource_already_exists_exception") {
		return errs.NewSearchQueryFailedError(m.index, fmt.Errorf("create index: %s", res.Status()))
	}
	return nil
}

// IndexMessage stores msg under its id.
func (m *MessageIndex) IndexMessage(ctx context.Context, msg *models.Message, participants []string) error {
	body, err := json.Marshal(Document{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Participants:   participants,
		Text:           msg.Text,
		HasImage:       msg.ImageKey != "",
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		return errs.NewInternalError(err)
	}

	res, err := esapi.IndexRequest{
		Index:      m.index,
		DocumentID: msg.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, m.client)
	if err != nil {
		return errs.NewSearchQueryFailedError(m.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errs.NewSearchQueryFailedError(m.index, fmt.Errorf("index message %s: %s %s", msg.ID, res.Status(), readBody(res.Body)))
	}
	return nil
}

// Query restricts a search to the conversations of UID.
type Query struct {
	UID            string
	Text           string
	ConversationID string
	From           int
	Size           int
}

type Hit struct {
	Document
	Score     float64  `json:"score"`
	Highlight []string `json:"highlight,omitempty"`
}

type Result struct {
	Total int64 `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Search runs a full-text query over the caller's messages.
func (m *MessageIndex) Search(ctx context.Context, q Query) (*Result, error) {
	if q.UID == "" {
		return nil, errs.NewValidationError("search requires a participant")
	}
	if q.Size <= 0 || q.Size > 100 {
		q.Size = 20
	}

	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"participants": q.UID}},
	}
	if q.ConversationID != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"conversationId": q.ConversationID}})
	}
	body, err := json.Marshal(map[string]interface{}{
		"from": q.From,
		"size": q.Size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   []map[string]interface{}{{"match": map[string]interface{}{"text": map[string]interface{}{"query": q.Text, "operator": "and"}}}},
				"filter": filters,
			},
		},
		"sort":      []interface{}{"_score", map[string]interface{}{"createdAt": "desc"}},
		"highlight": map[string]interface{}{"fields": map[string]interface{}{"text": map[string]interface{}{}}},
	})
	if err != nil {
		return nil, errs.NewInternalError(err)
	}

	res, err := esapi.SearchRequest{
		Index:          []string{m.index},
		Body:           bytes.NewReader(body),
		TrackTotalHits: true,
	}.Do(ctx, m.client)
	if err != nil {
		return nil, errs.NewSearchQueryFailedError(m.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errs.NewSearchQueryFailedError(m.index, fmt.Errorf("%s %s", res.Status(), readBody(res.Body)))
	}

	var raw struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score     float64             `json:"_score"`
				Source    Document            `json:"_source"`
				Highlight map[string][]string `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, errs.NewSearchQueryFailedError(m.index, fmt.Errorf("decode response: %w", err))
	}

	out := &Result{Total: raw.Hits.Total.Value, Hits: make([]Hit, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		out.Hits = append(out.Hits, Hit{Document: h.Source, Score: h.Score, Highlight: h.Highlight["text"]})
	}
	return out, nil
}

// DeleteBefore removes messages created before cutoff and returns the count.
func (m *MessageIndex) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"range": map[string]interface{}{"createdAt": map[string]interface{}{"lt": cutoff.UTC().Format(time.RFC3339)}},
		},
	})
	res, err := esapi.DeleteByQueryRequest{
		Index:     []string{m.index},
		Body:      bytes.NewReader(body),
		Conflicts: "proceed",
	}.Do(ctx, m.client)
	if err != nil {
		return 0, errs.NewSearchQueryFailedError(m.index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, errs.NewSearchQueryFailedError(m.index, fmt.Errorf("delete by query: %s %s", res.Status(), readBody(res.Body)))
	}

	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, errs.NewSearchQueryFailedError(m.index, err)
	}
	return out.Deleted, nil
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return string(b)
}

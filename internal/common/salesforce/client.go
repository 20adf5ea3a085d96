package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crm-functions/internal/common/metrics"
)

// Session is an authorized CRM session.
type Session struct {
	AccessToken string    `json:"accessToken"`
	InstanceURL string    `json:"instanceUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Client talks to the CRM REST API with one session.
type Client struct {
	session    Session
	apiVersion string
	httpClient *http.Client
}

func NewClient(session Session, apiVersion string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		session:    session,
		apiVersion: apiVersion,
		httpClient: httpClient,
	}
}

func (c *Client) InstanceURL() string {
	return strings.TrimSuffix(c.session.InstanceURL, "/")
}

func (c *Client) dataURL(path string) string {
	return fmt.Sprintf("%s/services/data/%s%s", c.InstanceURL(), c.apiVersion, path)
}

type queryResponse struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	NextRecordsURL string            `json:"nextRecordsUrl"`
	Records        []json.RawMessage `json:"records"`
}

// Query runs a SOQL query, following nextRecordsUrl, and decodes all records into out (a slice pointer).
func (c *Client) Query(ctx context.Context, soql string, out interface{}) error {
	next := c.dataURL("/query?q=" + url.QueryEscape(soql))
	records := make([]json.RawMessage, 0)

	for next != "" {
		var page queryResponse
		if err := c.doJSON(ctx, "query", http.MethodGet, next, nil, &page); err != nil {
			return err
		}
		records = append(records, page.Records...)
		if page.Done || page.NextRecordsURL == "" {
			break
		}
		next = c.InstanceURL() + page.NextRecordsURL
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("query: re-encode records: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("query: decode records: %w", err)
	}
	return nil
}

// Get fetches one record. fields may be empty to fetch all fields.
func (c *Client) Get(ctx context.Context, object, id string, fields []string, out interface{}) error {
	u := c.dataURL(fmt.Sprintf("/sobjects/%s/%s", object, url.PathEscape(id)))
	if len(fields) > 0 {
		u += "?fields=" + url.QueryEscape(strings.Join(fields, ","))
	}
	return c.doJSON(ctx, "get", http.MethodGet, u, nil, out)
}

type saveResult struct {
	ID      string         `json:"id"`
	Success bool           `json:"success"`
	Errors  []APIErrorItem `json:"errors"`
}

// Create inserts a record and returns its id.
func (c *Client) Create(ctx context.Context, object string, fields map[string]interface{}) (string, error) {
	var res saveResult
	if err := c.doJSON(ctx, "create", http.MethodPost, c.dataURL("/sobjects/"+object), fields, &res); err != nil {
		return "", err
	}
	if !res.Success || res.ID == "" {
		return "", &APIError{Operation: "create " + object, StatusCode: http.StatusBadRequest, Items: res.Errors}
	}
	return res.ID, nil
}

// Update patches a record.
func (c *Client) Update(ctx context.Context, object, id string, fields map[string]interface{}) error {
	u := c.dataURL(fmt.Sprintf("/sobjects/%s/%s", object, url.PathEscape(id)))
	return c.doJSON(ctx, "update", http.MethodPatch, u, fields, nil)
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, object, id string) error {
	u := c.dataURL(fmt.Sprintf("/sobjects/%s/%s", object, url.PathEscape(id)))
	return c.doJSON(ctx, "delete", http.MethodDelete, u, nil, nil)
}

// GetBlob reads a binary field such as ContentVersion.VersionData.
func (c *Client) GetBlob(ctx context.Context, object, id, field string) ([]byte, string, error) {
	u := c.dataURL(fmt.Sprintf("/sobjects/%s/%s/%s", object, url.PathEscape(id), field))
	resp, body, err := c.do(ctx, "blob", http.MethodGet, u, nil, "*/*")
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) doJSON(ctx context.Context, operation, method, u string, in, out interface{}) error {
	_, body, err := c.do(ctx, operation, method, u, in, "application/json")
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", operation, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, operation, method, u string, in interface{}, accept string) (*http.Response, []byte, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to marshal request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to create request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken)
	req.Header.Set("Accept", accept)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.CRMRequests.WithLabelValues(operation, "error").Inc()
		return nil, nil, fmt.Errorf("%s: failed to execute request: %w", operation, err)
	}
	defer resp.Body.Close()
	metrics.CRMRequests.WithLabelValues(operation, metrics.StatusClass(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to read response body: %w", operation, err)
	}
	if resp.StatusCode >= 400 {
		return nil, nil, newAPIError(operation, resp.StatusCode, body)
	}
	return resp, body, nil
}

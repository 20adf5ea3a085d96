package attachmentdownload

import "time"

type Input struct {
	ContentVersionID string `json:"contentVersionId" validate:"required"`
}

type Output struct {
	FileName    string            `json:"fileName"`
	Title       string            `json:"title"`
	ContentType string            `json:"contentType"`
	Size        int               `json:"size"`
	Key         string            `json:"key"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

package attachmentuploadurl

import "crm-functions/internal/blob"

type Input struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,max=255"`
}

// Output carries the presigned PUT. The client sends the file to URL with
// Headers and then passes Key as blobKey to crm.attachment.upload.
type Output struct {
	blob.PresignedURL
}

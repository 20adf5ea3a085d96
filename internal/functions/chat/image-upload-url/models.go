package imageuploadurl

import "crm-functions/internal/blob"

type Input struct {
	ConversationID string `json:"conversationId" validate:"required,max=800"`
	ContentType    string `json:"contentType" validate:"required,oneof=image/jpeg image/png image/gif image/webp image/heic"`
}

// Output carries the presigned PUT. The client sends the image to URL with
// Headers and then passes Key as imageKey to chat.message.send.
type Output struct {
	blob.PresignedURL
}

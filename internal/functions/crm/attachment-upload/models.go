package attachmentupload

type Input struct {
	RecordID      string `json:"recordId" validate:"required"`
	FileName      string `json:"fileName" validate:"required,max=255"`
	Title         string `json:"title,omitempty" validate:"omitempty,max=255"`
	ContentBase64 string `json:"contentBase64,omitempty" validate:"required_without=BlobKey,excluded_with=BlobKey"`
	BlobKey       string `json:"blobKey,omitempty" validate:"required_without=ContentBase64,max=1024"`
}

type Output struct {
	RecordID          string `json:"recordId"`
	ContentVersionID  string `json:"contentVersionId"`
	ContentDocumentID string `json:"contentDocumentId"`
	LinkID            string `json:"linkId"`
	Size              int    `json:"size"`
}

package salesforce

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"
)

// FileUpload is a file to store as a ContentVersion.
type FileUpload struct {
	Title    string
	FileName string
	Data     []byte
}

// AttachedFile identifies a file linked to a record.
type AttachedFile struct {
	ContentVersionID  string `json:"contentVersionId"`
	ContentDocumentID string `json:"contentDocumentId"`
	LinkID            string `json:"linkId,omitempty"`
}

// DownloadedFile is a ContentVersion with its binary.
type DownloadedFile struct {
	Title       string
	FileName    string
	ContentType string
	Data        []byte
}

// CreateContentVersion uploads the file and resolves its ContentDocumentId.
func (c *Client) CreateContentVersion(ctx context.Context, f FileUpload) (*AttachedFile, error) {
	title := f.Title
	if title == "" {
		title = strings.TrimSuffix(f.FileName, path.Ext(f.FileName))
	}

	versionID, err := c.Create(ctx, ObjectContentVersion, map[string]interface{}{
		"Title":        title,
		"PathOnClient": f.FileName,
		"VersionData":  base64.StdEncoding.EncodeToString(f.Data),
	})
	if err != nil {
		return nil, err
	}

	var version ContentVersion
	if err := c.Get(ctx, ObjectContentVersion, versionID, []string{"Id", "ContentDocumentId"}, &version); err != nil {
		return &AttachedFile{ContentVersionID: versionID}, err
	}
	return &AttachedFile{ContentVersionID: versionID, ContentDocumentID: version.ContentDocumentID}, nil
}

// LinkDocument shares a ContentDocument with a record.
func (c *Client) LinkDocument(ctx context.Context, documentID, entityID string) (string, error) {
	return c.Create(ctx, ObjectContentDocumentLink, map[string]interface{}{
		"ContentDocumentId": documentID,
		"LinkedEntityId":    entityID,
		"ShareType":         "V",
		"Visibility":        "AllUsers",
	})
}

// AttachFile uploads f and links it to entityID. On a link failure the
// partially created identifiers are returned with the error.
func (c *Client) AttachFile(ctx context.Context, entityID string, f FileUpload) (*AttachedFile, error) {
	attached, err := c.CreateContentVersion(ctx, f)
	if err != nil {
		return attached, err
	}
	linkID, err := c.LinkDocument(ctx, attached.ContentDocumentID, entityID)
	if err != nil {
		return attached, err
	}
	attached.LinkID = linkID
	return attached, nil
}

// FindLinkedFile looks for a document already linked to entityID whose
// title and file name both match. It returns nil when none exists.
func (c *Client) FindLinkedFile(ctx context.Context, entityID, title, fileName string) (*AttachedFile, error) {
	soql := fmt.Sprintf(
		"SELECT Id, ContentDocumentId, ContentDocument.Title, ContentDocument.LatestPublishedVersionId "+
			"FROM ContentDocumentLink WHERE LinkedEntityId = %s AND ContentDocument.Title = %s "+
			"AND ContentDocument.LatestPublishedVersion.PathOnClient = %s LIMIT 1",
		Quote(entityID), Quote(title), Quote(fileName),
	)
	var links []ContentDocumentLink
	if err := c.Query(ctx, soql, &links); err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	out := &AttachedFile{ContentDocumentID: links[0].ContentDocumentID, LinkID: links[0].ID}
	if links[0].ContentDocument != nil {
		out.ContentVersionID = links[0].ContentDocument.LatestPublishedVersionID
	}
	return out, nil
}

// FileLinks returns the ids of the records a ContentVersion's document is
// shared with.
func (c *Client) FileLinks(ctx context.Context, versionID string) ([]string, error) {
	var version ContentVersion
	if err := c.Get(ctx, ObjectContentVersion, versionID, []string{"Id", "ContentDocumentId"}, &version); err != nil {
		return nil, err
	}
	if version.ContentDocumentID == "" {
		return nil, nil
	}
	soql := fmt.Sprintf("SELECT Id, LinkedEntityId FROM ContentDocumentLink WHERE ContentDocumentId = %s",
		Quote(version.ContentDocumentID))
	var links []ContentDocumentLink
	if err := c.Query(ctx, soql, &links); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.LinkedEntityID)
	}
	return ids, nil
}

// DownloadContentVersion reads metadata and binary of a ContentVersion.
func (c *Client) DownloadContentVersion(ctx context.Context, versionID string) (*DownloadedFile, error) {
	var version ContentVersion
	if err := c.Get(ctx, ObjectContentVersion, versionID, []string{"Id", "Title", "PathOnClient", "FileExtension"}, &version); err != nil {
		return nil, err
	}

	data, contentType, err := c.GetBlob(ctx, ObjectContentVersion, versionID, "VersionData")
	if err != nil {
		return nil, err
	}

	fileName := version.PathOnClient
	if fileName == "" {
		fileName = version.Title
		if version.FileExtension != "" {
			fileName += "." + version.FileExtension
		}
	}
	return &DownloadedFile{
		Title:       version.Title,
		FileName:    path.Base(fileName),
		ContentType: contentType,
		Data:        data,
	}, nil
}

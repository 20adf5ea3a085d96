// Package blob stores chat images and proxied CRM attachments in an
// S3-compatible bucket and hands out presigned URLs for them.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	awsclients "crm-functions/internal/common/aws"
	"crm-functions/internal/common/config"
	errs "crm-functions/internal/common/errors"
)

// maxDeleteBatch is the DeleteObjects limit per request.
const maxDeleteBatch = 1000

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Presigner is the subset of s3.PresignClient the store uses.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Store struct {
	client    S3API
	presigner Presigner
	bucket    string
	expiry    time.Duration
	now       func() time.Time
}

// PresignedURL is a time-limited URL for one object.
type PresignedURL struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Key       string            `json:"key"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Object is a downloaded blob.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
}

func New(client S3API, presigner Presigner, bucket string, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Store{client: client, presigner: presigner, bucket: bucket, expiry: expiry, now: time.Now}
}

// NewFromConfig builds a store backed by the real S3 client.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	awsCfg, err := awsclients.LoadConfig(ctx, awsclients.Options{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	client := awsclients.NewS3Client(awsCfg, cfg.Endpoint, cfg.UsePathStyle)
	return New(client, s3.NewPresignClient(client), cfg.Bucket, time.Duration(cfg.PresignExpiration)*time.Second), nil
}

func (s *Store) Bucket() string {
	return s.bucket
}

// Upload writes data under key.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errs.NewValidationError("storage key is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return errs.NewBlobStoreError("upload "+key, err)
	}
	return nil
}

// Download reads an object. Objects larger than maxBytes are rejected when maxBytes > 0.
func (s *Store) Download(ctx context.Context, key string, maxBytes int64) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, errs.NewNotFoundError("blob", key)
		}
		return nil, errs.NewBlobStoreError("download "+key, err)
	}
	defer out.Body.Close()

	if maxBytes > 0 && aws.ToInt64(out.ContentLength) > maxBytes {
		return nil, errs.NewValidationError(fmt.Sprintf("blob %s exceeds %d bytes", key, maxBytes))
	}
	reader := io.Reader(out.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(out.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errs.NewBlobStoreError("download "+key, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, errs.NewValidationError(fmt.Sprintf("blob %s exceeds %d bytes", key, maxBytes))
	}

	return &Object{Key: key, Data: data, ContentType: aws.ToString(out.ContentType)}, nil
}

// UploadURL presigns a PUT for key. The client must send the returned headers.
func (s *Store) UploadURL(ctx context.Context, key, contentType string) (*PresignedURL, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, errs.NewBlobStoreError("presign upload "+key, err)
	}
	return s.presigned(key, req), nil
}

// DownloadURL presigns a GET for key.
func (s *Store) DownloadURL(ctx context.Context, key string) (*PresignedURL, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, errs.NewBlobStoreError("presign download "+key, err)
	}
	return s.presigned(key, req), nil
}

func (s *Store) presigned(key string, req *v4.PresignedHTTPRequest) *PresignedURL {
	out := &PresignedURL{
		URL:       req.URL,
		Method:    req.Method,
		Key:       key,
		ExpiresAt: s.now().Add(s.expiry).UTC(),
	}
	for name, values := range req.SignedHeader {
		if name == "Host" || len(values) == 0 {
			continue
		}
		if out.Headers == nil {
			out.Headers = make(map[string]string)
		}
		out.Headers[name] = values[0]
	}
	return out
}

// Delete removes keys in batches and returns how many were deleted.
func (s *Store) Delete(ctx context.Context, keys ...string) (int, error) {
	deleted := 0
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return deleted, errs.NewBlobStoreError("delete objects", err)
		}
		deleted += len(objects) - len(out.Errors)
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return deleted, errs.NewBlobStoreError("delete objects",
				fmt.Errorf("%d objects not deleted, first %s: %s", len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message)))
		}
	}
	return deleted, nil
}

// Package s3blob stores blobs in an S3-compatible bucket. The nonce and the
// uploader id travel as object metadata.
package s3blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/server/blobstore"
)

const (
	metaNonce  = "nonce"
	metaUserID = "userid"
)

// API is the subset of *s3.Client used here.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
}

type Store struct {
	client API
	bucket string
}

func New(client API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// NewFromOptions builds a path-style client with static credentials, as
// required by MinIO and most self-hosted S3 implementations.
func NewFromOptions(ctx context.Context, o Options) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
		}
		so.UsePathStyle = true
	})

	return New(client, o.Bucket), nil
}

func (s *Store) Put(ctx context.Context, key string, body []byte, meta blobstore.Meta) error {
	contentType := meta.ContentType
	if contentType == "" {
		contentType = common.ContentTypeOctetStream
	}

	md := map[string]string{metaUserID: meta.Owner}
	if len(meta.Nonce) > 0 {
		md[metaNonce] = base64.RawURLEncoding.EncodeToString(meta.Nonce)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		Metadata:      md,
	})
	if err != nil {
		return fmt.Errorf("s3 PutObject: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, blobstore.Meta, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.Meta{}, common.ErrorNotFound
		}
		return nil, blobstore.Meta{}, fmt.Errorf("s3 GetObject: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, blobstore.Meta{}, fmt.Errorf("s3 read body: %w", err)
	}

	meta := blobstore.Meta{
		Owner:       out.Metadata[metaUserID],
		ContentType: aws.ToString(out.ContentType),
	}
	if enc, ok := out.Metadata[metaNonce]; ok {
		if meta.Nonce, err = base64.RawURLEncoding.DecodeString(enc); err != nil {
			return nil, blobstore.Meta{}, fmt.Errorf("decode nonce metadata for %s: %w", key, err)
		}
	}

	return body, meta, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/server/blobstore"
)

type object struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

// fakeS3 keeps objects in memory keyed by bucket/key.
type fakeS3 struct {
	API
	objects map[string]object
	putErr  error
	getErr  error
}

func newFake() *fakeS3 { return &fakeS3{objects: map[string]object{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, _ := io.ReadAll(in.Body)
	f.objects[*in.Bucket+"/"+*in.Key] = object{body: b, contentType: aws.ToString(in.ContentType), metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	o, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(o.body)),
		ContentType: aws.String(o.contentType),
		Metadata:    o.metadata,
	}, nil
}

func TestPutGet_RoundTrip(t *testing.T) {
	f := newFake()
	s := New(f, "bucket")
	ctx := context.Background()

	meta := blobstore.Meta{Nonce: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, Owner: "alice"}
	require.NoError(t, s.Put(ctx, "content/ab/cd/ef", []byte("ciphertext"), meta))

	stored := f.objects["bucket/content/ab/cd/ef"]
	assert.Equal(t, "alice", stored.metadata["userid"])
	assert.Equal(t, "AQIDBAUGBwgJCgsM", stored.metadata["nonce"])
	assert.Equal(t, common.ContentTypeOctetStream, stored.contentType)

	body, got, err := s.Get(ctx, "content/ab/cd/ef")
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), body)
	assert.Equal(t, meta.Nonce, got.Nonce)
	assert.Equal(t, "alice", got.Owner)
}

func TestGet_NotFound(t *testing.T) {
	s := New(newFake(), "bucket")

	_, _, err := s.Get(context.Background(), "content/no/pe/x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_GenericNotFoundCode(t *testing.T) {
	f := newFake()
	f.getErr = &smithy.GenericAPIError{Code: "NotFound", Message: "head"}

	_, _, err := New(f, "bucket").Get(context.Background(), "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPut_Error(t *testing.T) {
	f := newFake()
	f.putErr = errors.New("bucket gone")

	err := New(f, "bucket").Put(context.Background(), "k", nil, blobstore.Meta{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 PutObject")
}

func TestGet_BadNonceMetadata(t *testing.T) {
	f := newFake()
	f.objects["bucket/k"] = object{body: []byte("x"), metadata: map[string]string{"nonce": "%%%"}}

	_, _, err := New(f, "bucket").Get(context.Background(), "k")
	require.Error(t, err)
}

func TestNewFromOptions(t *testing.T) {
	s, err := NewFromOptions(context.Background(), Options{
		Region:       "us-east-1",
		AccessKey:    "admin",
		SecretKey:    "secret",
		BaseEndpoint: "http://127.0.0.1:9000",
		Bucket:       "feedkeeper",
	})
	require.NoError(t, err)
	assert.Equal(t, "feedkeeper", s.bucket)
	assert.IsType(t, &s3.Client{}, s.client)
}

package app

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"example/meal-planner-api/app/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if params.Body != nil {
		f.body, _ = io.ReadAll(params.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

var imageKeyPattern = regexp.MustCompile(`^recipes/user-1/[0-9a-f-]{36}\.png$`)

func TestS3ImageStorePublicURL(t *testing.T) {
	client := &fakeS3{}
	store := &s3ImageStore{client: client, bucket: "meal-images", publicBaseURL: "https://cdn.example.com"}

	url, err := store.Save(context.Background(), "user-1", []byte("png-bytes"))
	require.NoError(t, err)

	key := aws.ToString(client.input.Key)
	assert.Regexp(t, imageKeyPattern, key)
	assert.Equal(t, "meal-images", aws.ToString(client.input.Bucket))
	assert.Equal(t, "image/png", aws.ToString(client.input.ContentType))
	assert.Equal(t, []byte("png-bytes"), client.body)
	assert.Equal(t, "https://cdn.example.com/"+key, url)
}

func TestS3ImageStorePresigned(t *testing.T) {
	var gotTTL time.Duration
	store := &s3ImageStore{
		client: &fakeS3{},
		bucket: "meal-images",
		ttl:    time.Hour,
		presign: func(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
			gotTTL = ttl
			return "https://" + bucket + ".s3.amazonaws.com/" + key + "?X-Amz-Signature=abc", nil
		},
	}

	url, err := store.Save(context.Background(), "user-1", []byte("png"))
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Signature=abc")
	assert.Equal(t, time.Hour, gotTTL)
}

func TestS3ImageStoreErrors(t *testing.T) {
	store := &s3ImageStore{client: &fakeS3{err: errors.New("access denied")}, bucket: "b", publicBaseURL: "https://cdn"}
	_, err := store.Save(context.Background(), "user-1", []byte("png"))
	assert.ErrorContains(t, err, "access denied")

	store = &s3ImageStore{
		client: &fakeS3{},
		bucket: "b",
		presign: func(context.Context, string, string, time.Duration) (string, error) {
			return "", errors.New("no credentials")
		},
	}
	_, err = store.Save(context.Background(), "user-1", []byte("png"))
	assert.ErrorContains(t, err, "no credentials")
}

func TestNewImageStoreWithoutBucket(t *testing.T) {
	store := NewImageStore(nil, config.AWSConfig{})
	url, err := store.Save(context.Background(), "user-1", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBORw==", url)
}

package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"example/meal-planner-api/app/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ImageStore keeps generated images and returns a URL the client can load.
type ImageStore interface {
	Save(ctx context.Context, userID string, png []byte) (string, error)
}

// S3API is the part of the S3 client the image store needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3ImageStore struct {
	client        S3API
	presign       func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	bucket        string
	publicBaseURL string
	ttl           time.Duration
}

// NewImageStore returns an S3 store when a bucket is configured, otherwise
// a store that inlines the image as a data URL.
func NewImageStore(client *s3.Client, cfg config.AWSConfig) ImageStore {
	if cfg.ImageBucket == "" || client == nil {
		return inlineImageStore{}
	}
	presigner := s3.NewPresignClient(client)
	return &s3ImageStore{
		client: client,
		presign: func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
			req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			}, s3.WithPresignExpires(ttl))
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
		bucket:        cfg.ImageBucket,
		publicBaseURL: cfg.PublicImageBaseURL,
		ttl:           cfg.ImageURLTTL,
	}
}

func imageKey(userID string) string {
	return fmt.Sprintf("recipes/%s/%s.png", userID, uuid.New().String())
}

func (s *s3ImageStore) Save(ctx context.Context, userID string, png []byte) (string, error) {
	key := imageKey(userID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(png),
		ContentType:  aws.String("image/png"),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("put image %s: %w", key, err)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}
	url, err := s.presign(ctx, s.bucket, key, s.ttl)
	if err != nil {
		return "", fmt.Errorf("presign image %s: %w", key, err)
	}
	return url, nil
}

type inlineImageStore struct{}

func (inlineImageStore) Save(_ context.Context, _ string, png []byte) (string, error) {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type BadgeStorage interface {
	UploadBadge(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// S3BadgeStorage stores badge artwork in an S3-compatible bucket (AWS S3 or
// Cloudflare R2).
type S3BadgeStorage struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3BadgeStorageFromEnv reads BADGE_BUCKET, BADGE_PUBLIC_BASE_URL,
// S3_ENDPOINT, S3_REGION, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY.
func NewS3BadgeStorageFromEnv(ctx context.Context) (*S3BadgeStorage, error) {
	bucket := os.Getenv("BADGE_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("BADGE_BUCKET is not set")
	}

	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "auto"
	}
	endpoint := os.Getenv("S3_ENDPOINT")

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if key := os.Getenv("S3_ACCESS_KEY_ID"); key != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, os.Getenv("S3_SECRET_ACCESS_KEY"), ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	publicBaseURL := os.Getenv("BADGE_PUBLIC_BASE_URL")
	if publicBaseURL == "" {
		if endpoint != "" {
			publicBaseURL = strings.TrimRight(endpoint, "/") + "/" + bucket
		} else {
			publicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
		}
	}

	return &S3BadgeStorage{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (b *S3BadgeStorage) UploadBadge(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(b.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload badge %s: %w", key, err)
	}
	return b.publicBaseURL + "/" + key, nil
}

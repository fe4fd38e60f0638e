package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscredentials "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BucketOptions configures the S3-compatible bucket store. The endpoint is
// derived from the R2 account id; any S3-compatible service works as long as
// Endpoint is set explicitly.
type BucketOptions struct {
	AccountID     string
	AccessKeyID   string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	Endpoint      string
}

// s3PutAPI is the slice of the S3 client the store needs; tests substitute it.
type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// BucketStore writes objects to an S3-compatible bucket (Cloudflare R2 in
// production).
type BucketStore struct {
	client        s3PutAPI
	bucket        string
	publicBaseURL string
}

// NewBucketStore builds an R2-backed store.
func NewBucketStore(ctx context.Context, opts BucketOptions) (*BucketStore, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket name is required")
	}
	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if endpoint == "" {
		if opts.AccountID == "" {
			return nil, fmt.Errorf("storage: endpoint or account id is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			awscredentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &BucketStore{
		client:        client,
		bucket:        opts.Bucket,
		publicBaseURL: opts.PublicBaseURL,
	}, nil
}

// Put writes the object with a long-lived cache-control directive and
// returns its public URL.
func (s *BucketStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/png"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}
	return PublicURL(s.publicBaseURL, key), nil
}

var _ BlobStore = (*BucketStore)(nil)

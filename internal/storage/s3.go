package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/samber/lo"

	"text2image/internal/domain"
)

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures an S3-compatible object store.
type S3Options struct {
	EndpointURL string
	AccessKey   string
	SecretKey   string
	Bucket      string
	Region      string
	HTTPClient  *http.Client
}

// S3Store writes objects with a public-read ACL to an S3-compatible bucket.
type S3Store struct {
	client   s3PutAPI
	endpoint string
	bucket   string
}

// NewS3Store builds a path-style S3 client against the configured endpoint.
func NewS3Store(opts S3Options) (*S3Store, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.EndpointURL), "/")
	bucket := strings.TrimSpace(opts.Bucket)
	if endpoint == "" || bucket == "" {
		return nil, fmt.Errorf("%w: storage: s3 endpoint and bucket are required", domain.ErrConfiguration)
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	s3Opts := s3.Options{
		Region:                     region,
		Credentials:                credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		BaseEndpoint:               lo.ToPtr(endpoint),
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	}
	if opts.HTTPClient != nil {
		s3Opts.HTTPClient = opts.HTTPClient
	}
	return &S3Store{client: s3.New(s3Opts), endpoint: endpoint, bucket: bucket}, nil
}

// Put uploads data under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("%w: storage: put %s: %w", domain.ErrStorage, key, err)
	}
	return nil
}

// PublicURL is endpoint/bucket/key.
func (s *S3Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
}

var _ Backend = (*S3Store)(nil)

// Package s3 stores each collection as one JSON object in an S3-compatible
// bucket (AWS S3 or MinIO). PutObject replaces objects atomically, so the
// whole-collection contract holds without temp keys.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/warp/dashboard-engine/generic"
)

// Config holds construction parameters. Credentials fall back to the
// default AWS chain when AccessKeyID is empty.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, e.g. MinIO
	Prefix          string // optional key prefix, e.g. "dashboard/"
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string

	// MaxAttempts caps SDK retries; zero keeps the SDK default.
	MaxAttempts int

	// HTTPClient overrides the transport; tests inject a fake here.
	HTTPClient *http.Client
}

// Store implements generic.CollectionStore over one bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds the client from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
		// S3-compatible servers often reject trailing checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key returns the object key for a type.
func (s *Store) Key(t generic.EntityType) string {
	return path.Join(s.prefix, string(t)+".json")
}

// ReadCollection fetches the object; a missing key is an empty collection.
func (s *Store) ReadCollection(ctx context.Context, t generic.EntityType) (generic.Collection, error) {
	if !t.Valid() {
		return nil, &generic.UnknownTypeError{Type: t}
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.Key(t))})
	if isNotFound(err) {
		return generic.Collection{}, nil
	}
	if err != nil {
		return nil, &generic.StorageError{Op: "read", Type: t, Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &generic.StorageError{Op: "read", Type: t, Err: err}
	}
	coll, err := generic.DecodeCollection(data)
	if err != nil {
		return nil, &generic.CorruptCollectionError{Type: t, Err: err}
	}
	return coll, nil
}

// WriteCollection uploads the encoded collection over the existing object.
func (s *Store) WriteCollection(ctx context.Context, t generic.EntityType, c generic.Collection) error {
	if !t.Valid() {
		return &generic.UnknownTypeError{Type: t}
	}
	data, err := generic.EncodeCollection(c)
	if err != nil {
		return &generic.StorageError{Op: "encode", Type: t, Err: err}
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(t)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &generic.StorageError{Op: "write", Type: t, Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

package primarystore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// Store is the primary object store boundary. Evidence binaries live here
// from upload until the retention job (or an administrative delete) removes
// them.
type Store interface {
	// Put stores an object at the given path.
	Put(ctx context.Context, path string, body io.Reader, contentType string) error

	// SignedGetURL returns a freshly generated time-limited download URL.
	// URLs are never cached; every caller gets a new one.
	SignedGetURL(ctx context.Context, path string) (string, error)

	// Delete removes the object at the given path. Deleting an absent
	// object is not an error.
	Delete(ctx context.Context, path string) error
}

// S3Store implements Store against S3-compatible storage (AWS S3, MinIO,
// DigitalOcean Spaces, Cloudflare R2, ...).
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	signedExpiry  time.Duration
	log           *logrus.Logger
}

// Config holds the settings needed to reach the bucket.
type Config struct {
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Endpoint     string // optional, for S3-compatible services
	SignedExpiry time.Duration
}

// New creates an S3-backed primary store.
func New(ctx context.Context, cfg Config, log *logrus.Logger) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for MinIO and friends
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	expiry := cfg.SignedExpiry
	if expiry == 0 {
		expiry = time.Hour
	}

	log.WithFields(logrus.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
	}).Info("primary store initialized")

	return &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		signedExpiry:  expiry,
		log:           log,
	}, nil
}

// Put stores an object.
func (s *S3Store) Put(ctx context.Context, path string, body io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload to primary store: %w", err)
	}
	return nil
}

// SignedGetURL presigns a GET for the object. The URL expires after the
// configured lifetime, so callers must request one per operation.
func (s *S3Store) SignedGetURL(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.signedExpiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GET for %s: %w", path, err)
	}
	return req.URL, nil
}

// Delete removes an object. S3 DeleteObject on a missing key succeeds, which
// matches the cleanup job's idempotency requirement.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("delete from primary store: %w", err)
	}
	return nil
}

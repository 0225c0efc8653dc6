package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCSClient implements ObjectAPI against Google Cloud Storage, the bucket
// the speech engine reads staged media from by gs:// URI.
type GCSClient struct {
	service *storage.Service
}

// NewGCSClient builds a GCS client. With a credentials file it uses a
// service-account JWT; otherwise it falls back to application default
// credentials.
func NewGCSClient(ctx context.Context, credentialsFile string) (*GCSClient, error) {
	var opts []option.ClientOption

	if credentialsFile != "" {
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read staging credentials: %w", err)
		}
		conf, err := google.JWTConfigFromJSON(b, storage.DevstorageReadWriteScope)
		if err != nil {
			return nil, fmt.Errorf("parse staging credentials: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(conf.Client(ctx)))
	}

	srv, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &GCSClient{service: srv}, nil
}

// BucketExists reports whether the bucket is reachable. A 404 is a definite
// "no"; other errors propagate.
func (c *GCSClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := c.service.Buckets.Get(bucket).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Upload streams body into bucket/name.
func (c *GCSClient) Upload(ctx context.Context, bucket, name string, body io.Reader, contentType string) error {
	obj := &storage.Object{Name: name, ContentType: contentType}
	_, err := c.service.Objects.Insert(bucket, obj).Media(body).Context(ctx).Do()
	return err
}

// Delete removes bucket/name. A 404 counts as success: the temporary copy
// is already gone.
func (c *GCSClient) Delete(ctx context.Context, bucket, name string) error {
	err := c.service.Objects.Delete(bucket, name).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil
		}
	}
	return err
}

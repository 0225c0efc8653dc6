package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrTransfer means the download from the primary store's signed URL
	// did not succeed. The source binary is untouched.
	ErrTransfer = errors.New("staging transfer failed")

	// ErrBucketMissing means the staging bucket does not exist. The bridge
	// never provisions production buckets; a missing bucket is infra drift
	// that must be fixed by an operator.
	ErrBucketMissing = errors.New("staging bucket does not exist")
)

// ObjectAPI is the slice of the staging object store the bridge needs.
// Implemented by the GCS client in gcs.go and by fakes in tests.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	Upload(ctx context.Context, bucket, name string, body io.Reader, contentType string) error
	Delete(ctx context.Context, bucket, name string) error
}

// Bridge copies a binary from the primary store into the staging bucket the
// recognition engine reads from, and removes the temporary copy afterwards.
type Bridge struct {
	objects    ObjectAPI
	bucket     string
	httpClient *http.Client
	log        *logrus.Logger
	now        func() time.Time
}

// NewBridge creates a bridge targeting the given staging bucket.
func NewBridge(objects ObjectAPI, bucket string, log *logrus.Logger) *Bridge {
	return &Bridge{
		objects:    objects,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		log:        log,
		now:        time.Now,
	}
}

// Stage downloads the object behind sourceURL and uploads it into the
// staging bucket under a collision-resistant temporary name. The returned
// URI is addressable by the recognition engine.
func (b *Bridge) Stage(ctx context.Context, sourceURL, filename string) (string, error) {
	exists, err := b.objects.BucketExists(ctx, b.bucket)
	if err != nil {
		return "", fmt.Errorf("check staging bucket %q: %w", b.bucket, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %q", ErrBucketMissing, b.bucket)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTransfer, err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: source returned %s", ErrTransfer, resp.Status)
	}

	name := b.tempName(filename)
	contentType := resp.Header.Get("Content-Type")
	if err := b.objects.Upload(ctx, b.bucket, name, resp.Body, contentType); err != nil {
		return "", fmt.Errorf("upload staged object: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", b.bucket, name)
	b.log.WithFields(logrus.Fields{
		"uri":  uri,
		"size": resp.ContentLength,
	}).Info("staged media for transcription")
	return uri, nil
}

// Unstage removes the temporary copy. Best effort: failures are logged and
// swallowed so they never block the caller. Callers run it exactly once per
// successful Stage, in a defer, on every outcome.
func (b *Bridge) Unstage(ctx context.Context, stagedURI string) {
	bucket, name, err := parseStagedURI(stagedURI)
	if err != nil {
		b.log.WithError(err).Warn("unstage: malformed staged URI")
		return
	}
	if err := b.objects.Delete(ctx, bucket, name); err != nil {
		b.log.WithError(err).WithField("uri", stagedURI).Warn("unstage: delete failed")
		return
	}
	b.log.WithField("uri", stagedURI).Debug("staged copy removed")
}

// tempName builds transcription-<unixtime>-<random>-<filename>. Collision
// avoidance relies on the random segment, not on locking.
func (b *Bridge) tempName(filename string) string {
	random := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("transcription-%d-%s-%s", b.now().Unix(), random, sanitizeName(filename))
}

func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if len(name) > 128 {
		name = name[len(name)-128:]
	}
	return name
}

func parseStagedURI(uri string) (bucket, name string, err error) {
	trimmed, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, name, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || name == "" {
		return "", "", fmt.Errorf("malformed staged URI: %q", uri)
	}
	return bucket, name, nil
}

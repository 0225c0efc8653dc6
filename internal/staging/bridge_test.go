package staging

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// fakeObjects records calls and allows injected failures.
type fakeObjects struct {
	bucketExists bool
	existsErr    error
	uploadErr    error
	deleteErr    error

	uploadedBucket string
	uploadedName   string
	uploadedBody   []byte
	deleteCalls    int
	deletedName    string
}

func (f *fakeObjects) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.bucketExists, f.existsErr
}

func (f *fakeObjects) Upload(ctx context.Context, bucket, name string, body io.Reader, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploadedBucket = bucket
	f.uploadedName = name
	f.uploadedBody, _ = io.ReadAll(body)
	return nil
}

func (f *fakeObjects) Delete(ctx context.Context, bucket, name string) error {
	f.deleteCalls++
	f.deletedName = name
	return f.deleteErr
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestBridge(objects ObjectAPI) *Bridge {
	b := NewBridge(objects, "staging-bucket", quietLogger())
	b.now = func() time.Time { return time.Unix(1700000000, 0) }
	return b
}

func TestStageUploadsUnderTemporaryName(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("media-bytes"))
	}))
	defer src.Close()

	objects := &fakeObjects{bucketExists: true}
	bridge := newTestBridge(objects)

	uri, err := bridge.Stage(context.Background(), src.URL, "hearing.mp4")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	if objects.uploadedBucket != "staging-bucket" {
		t.Fatalf("uploaded bucket = %q", objects.uploadedBucket)
	}
	if string(objects.uploadedBody) != "media-bytes" {
		t.Fatalf("uploaded body = %q", objects.uploadedBody)
	}

	namePattern := regexp.MustCompile(`^transcription-1700000000-[0-9a-f]{8}-hearing\.mp4$`)
	if !namePattern.MatchString(objects.uploadedName) {
		t.Fatalf("temp name %q does not match pattern", objects.uploadedName)
	}
	if uri != "gs://staging-bucket/"+objects.uploadedName {
		t.Fatalf("staged URI = %q", uri)
	}
}

func TestStageFailsWhenSourceUnreachable(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		bridge := newTestBridge(&fakeObjects{bucketExists: true})
		_, err := bridge.Stage(context.Background(), src.URL, "a.mp3")
		src.Close()

		if !errors.Is(err, ErrTransfer) {
			t.Fatalf("status %d: err = %v, want ErrTransfer", status, err)
		}
	}
}

func TestStageFailsWhenBucketMissing(t *testing.T) {
	bridge := newTestBridge(&fakeObjects{bucketExists: false})

	_, err := bridge.Stage(context.Background(), "http://unused.invalid", "a.mp3")
	if !errors.Is(err, ErrBucketMissing) {
		t.Fatalf("err = %v, want ErrBucketMissing", err)
	}
}

func TestUnstageSwallowsDeleteErrors(t *testing.T) {
	objects := &fakeObjects{deleteErr: errors.New("backend down")}
	bridge := newTestBridge(objects)

	// Must not panic or propagate.
	bridge.Unstage(context.Background(), "gs://staging-bucket/transcription-1-abc-a.mp3")
	if objects.deleteCalls != 1 {
		t.Fatalf("delete calls = %d, want 1", objects.deleteCalls)
	}
}

func TestUnstageDeletesNamedObject(t *testing.T) {
	objects := &fakeObjects{}
	bridge := newTestBridge(objects)

	bridge.Unstage(context.Background(), "gs://staging-bucket/transcription-1-abc-a.mp3")
	if objects.deletedName != "transcription-1-abc-a.mp3" {
		t.Fatalf("deleted name = %q", objects.deletedName)
	}

	// Malformed URI: logged, no delete attempted.
	bridge.Unstage(context.Background(), "not-a-uri")
	if objects.deleteCalls != 1 {
		t.Fatalf("delete calls after malformed URI = %d, want 1", objects.deleteCalls)
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/courtflow/media-transcription/internal/queue"
	"github.com/courtflow/media-transcription/internal/record"
	"github.com/courtflow/media-transcription/internal/types"
)

const maxUpload = 100 * 1024 * 1024

// memStore is an in-memory primary store for handler tests.
type memStore struct {
	objects map[string][]byte
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(ctx context.Context, path string, body io.Reader, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, _ := io.ReadAll(body)
	m.objects[path] = b
	return nil
}

func (m *memStore) SignedGetURL(ctx context.Context, path string) (string, error) {
	return "https://signed.example/" + path, nil
}

func (m *memStore) Delete(ctx context.Context, path string) error {
	delete(m.objects, path)
	return nil
}

// fakePool records enqueued jobs.
type fakePool struct {
	jobs []*queue.Job
	full bool
}

func (f *fakePool) Enqueue(job *queue.Job) bool {
	if f.full {
		return false
	}
	f.jobs = append(f.jobs, job)
	return true
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testRepo(t *testing.T) record.Repository {
	t.Helper()
	db, err := record.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return record.NewRepository(db)
}

func multipartUpload(t *testing.T, filename, mimeType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(content)

	w.WriteField("case_id", "case-42")
	w.Close()
	return body, w.FormDataContentType()
}

func TestUploadAcceptsValidMedia(t *testing.T) {
	repo := testRepo(t)
	store := newMemStore()
	h := NewUploadHandler(repo, store, maxUpload, quietLogger())

	app := fiber.New()
	app.Post("/media", h.Handle)

	body, contentType := multipartUpload(t, "hearing.mp4", "video/mp4", bytes.Repeat([]byte("x"), 2048))
	req := httptest.NewRequest(http.MethodPost, "/media", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Uploaded-By", "admin-1")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var created record.MediaFile
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Status != types.StatusPending {
		t.Fatalf("status = %q, want pending", created.Status)
	}
	if created.MediaKind != types.KindVideo {
		t.Fatalf("kind = %q, want video", created.MediaKind)
	}
	if created.CaseID == nil || *created.CaseID != "case-42" {
		t.Fatalf("case_id = %v", created.CaseID)
	}
	if created.UploadedBy != "admin-1" {
		t.Fatalf("uploaded_by = %q", created.UploadedBy)
	}
	if _, ok := store.objects[created.StoragePath]; !ok {
		t.Fatal("binary missing from primary store")
	}

	stored, err := repo.ByID(created.ID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if stored.DurationSeconds == nil {
		t.Fatal("duration estimate not stored")
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	repo := testRepo(t)
	h := NewUploadHandler(repo, newMemStore(), maxUpload, quietLogger())

	app := fiber.New()
	app.Post("/media", h.Handle)

	body, contentType := multipartUpload(t, "report.pdf", "application/pdf", []byte("pdf"))
	req := httptest.NewRequest(http.MethodPost, "/media", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	// Rejected before any persisted state exists.
	files, _ := repo.List(10)
	if len(files) != 0 {
		t.Fatalf("records created = %d, want 0", len(files))
	}
}

func seedMedia(t *testing.T, repo record.Repository) *record.MediaFile {
	t.Helper()
	m := &record.MediaFile{
		ID:               uuid.New().String(),
		OriginalFilename: "hearing.mp3",
		StoragePath:      "media/" + uuid.New().String() + ".mp3",
		MediaKind:        types.KindAudio,
		SizeBytes:        1024,
		UploadedBy:       "admin-1",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
	if err := repo.Create(m); err != nil {
		t.Fatalf("create: %v", err)
	}
	return m
}

func TestTranscribeTriggerEnqueues(t *testing.T) {
	repo := testRepo(t)
	pool := &fakePool{}
	h := NewTranscribeHandler(repo, pool, "en-US", quietLogger())

	app := fiber.New()
	app.Post("/media/:id/transcribe", h.Handle)

	m := seedMedia(t, repo)
	payload := bytes.NewBufferString(`{"model":"video","try_variants":true}`)
	req := httptest.NewRequest(http.MethodPost, "/media/"+m.ID+"/transcribe", payload)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if len(pool.jobs) != 1 {
		t.Fatalf("enqueued jobs = %d, want 1", len(pool.jobs))
	}

	job := pool.jobs[0]
	if job.MediaID != m.ID || job.Profile.Model != "video" || !job.TryVariants {
		t.Fatalf("job = %+v", job)
	}
	// Untouched knobs keep their defaults.
	if job.Profile.Encoding != "LINEAR16" || !job.Profile.UseEnhanced {
		t.Fatalf("profile defaults lost: %+v", job.Profile)
	}
}

func TestTranscribeTriggerConflictsOnBusyRecord(t *testing.T) {
	repo := testRepo(t)
	pool := &fakePool{}
	h := NewTranscribeHandler(repo, pool, "en-US", quietLogger())

	app := fiber.New()
	app.Post("/media/:id/transcribe", h.Handle)

	m := seedMedia(t, repo)
	if err := repo.ClaimForProcessing(m.ID, time.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/media/"+m.ID+"/transcribe", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if len(pool.jobs) != 0 {
		t.Fatal("busy record must not be enqueued")
	}
}

func TestTranscribeTriggerNotFound(t *testing.T) {
	repo := testRepo(t)
	h := NewTranscribeHandler(repo, &fakePool{}, "en-US", quietLogger())

	app := fiber.New()
	app.Post("/media/:id/transcribe", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/media/"+uuid.New().String()+"/transcribe", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminDeleteRemovesBinary(t *testing.T) {
	repo := testRepo(t)
	store := newMemStore()
	h := NewMediaHandler(repo, store, quietLogger())

	app := fiber.New()
	app.Delete("/media/:id", h.Delete)

	m := seedMedia(t, repo)
	store.objects[m.StoragePath] = []byte("bytes")

	req := httptest.NewRequest(http.MethodDelete, "/media/"+m.ID, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if _, ok := store.objects[m.StoragePath]; ok {
		t.Fatal("binary still in primary store")
	}
	if _, err := repo.ByID(m.ID); err == nil {
		t.Fatal("record still exists")
	}
}

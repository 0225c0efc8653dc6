package record

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/courtflow/media-transcription/internal/types"
)

var (
	// ErrNotFound means no media_files row with that id exists.
	ErrNotFound = errors.New("media file not found")

	// ErrNotClaimable means the claim guard rejected the transition to
	// processing: the record is already in flight, already completed, or
	// its binary has been purged.
	ErrNotClaimable = errors.New("media file not claimable for transcription")

	// ErrInvalidTransition means a completion or failure write found the
	// record outside the processing state.
	ErrInvalidTransition = errors.New("media file is not processing")
)

// Repository is the keyed read/update surface over media_files rows. All
// lifecycle transitions go through the conditional updates here; nothing
// else writes the status column.
type Repository interface {
	Create(m *MediaFile) error
	ByID(id string) (*MediaFile, error)
	List(limit int) ([]*MediaFile, error)
	UpdateDisplay(id string, customFilename, caseID *string) error
	Delete(id string) error

	ClaimForProcessing(id string, now time.Time) error
	MarkCompleted(id, transcript string, confidence, durationSeconds float64, now time.Time, retention time.Duration) error
	MarkFailed(id, message string, now time.Time) error
	MarkBinaryDeleted(id string, now time.Time) error
	ResetStaleProcessing(message string, now time.Time) (int64, error)

	CleanupCandidates(cutoff time.Time) ([]*MediaFile, error)
}

type sqlRepository struct {
	db *sqlx.DB
}

// NewRepository builds the sqlx-backed repository.
func NewRepository(db *sqlx.DB) Repository {
	return &sqlRepository{db: db}
}

func (r *sqlRepository) Create(m *MediaFile) error {
	query := `INSERT INTO media_files
	    (id, original_filename, custom_filename, storage_path, media_kind, size_bytes,
	     duration_seconds, status, case_id, uploaded_by, created_at, updated_at, binary_deleted)
	    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`

	_, err := r.db.Exec(query,
		m.ID,
		m.OriginalFilename,
		m.CustomFilename,
		m.StoragePath,
		m.MediaKind,
		m.SizeBytes,
		m.DurationSeconds,
		types.StatusPending,
		m.CaseID,
		m.UploadedBy,
		m.CreatedAt.UTC(),
		m.CreatedAt.UTC(),
	)
	return err
}

func (r *sqlRepository) ByID(id string) (*MediaFile, error) {
	m := &MediaFile{}
	err := r.db.Get(m, `SELECT * FROM media_files WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (r *sqlRepository) List(limit int) ([]*MediaFile, error) {
	var files []*MediaFile
	err := r.db.Select(&files, `SELECT * FROM media_files ORDER BY created_at DESC LIMIT ?`, limit)
	return files, err
}

// UpdateDisplay touches only display metadata. CRUD flows outside the
// pipeline are limited to this.
func (r *sqlRepository) UpdateDisplay(id string, customFilename, caseID *string) error {
	res, err := r.db.Exec(
		`UPDATE media_files SET custom_filename = ?, case_id = ?, updated_at = ? WHERE id = ?`,
		customFilename, caseID, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sqlRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM media_files WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ClaimForProcessing is the pending/failed -> processing guard as a single
// conditional update, so two concurrent triggers cannot both claim the same
// record. For a previously failed record the same statement performs the
// full reset: transcript, confidence, error and timestamps are cleared
// before re-entering processing.
func (r *sqlRepository) ClaimForProcessing(id string, now time.Time) error {
	res, err := r.db.Exec(`
	    UPDATE media_files
	    SET status = ?,
	        transcript = NULL,
	        transcript_confidence = NULL,
	        error_message = NULL,
	        transcribed_at = NULL,
	        transcript_completed_at = NULL,
	        cleanup_scheduled_at = NULL,
	        updated_at = ?
	    WHERE id = ?
	      AND status IN (?, ?)
	      AND binary_deleted = 0`,
		types.StatusProcessing, now.UTC(), id, types.StatusPending, types.StatusFailed)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.ByID(id); err != nil {
			return err
		}
		return ErrNotClaimable
	}
	return nil
}

// MarkCompleted commits a successful transcription and schedules the
// binary's deletion for completion time plus the retention window.
func (r *sqlRepository) MarkCompleted(id, transcript string, confidence, durationSeconds float64, now time.Time, retention time.Duration) error {
	now = now.UTC()
	cleanupAt := now.Add(retention)

	res, err := r.db.Exec(`
	    UPDATE media_files
	    SET status = ?,
	        transcript = ?,
	        transcript_confidence = ?,
	        duration_seconds = CASE WHEN CAST(? AS REAL) > 0 THEN ? ELSE duration_seconds END,
	        error_message = NULL,
	        transcribed_at = ?,
	        transcript_completed_at = ?,
	        cleanup_scheduled_at = ?,
	        updated_at = ?
	    WHERE id = ? AND status = ?`,
		types.StatusCompleted, transcript, confidence,
		durationSeconds, durationSeconds,
		now, now, cleanupAt, now,
		id, types.StatusProcessing)
	if err != nil {
		return err
	}
	return requireTransition(res)
}

// MarkFailed records an unsuccessful attempt. The transcript stays null;
// the record remains explicitly retriable.
func (r *sqlRepository) MarkFailed(id, message string, now time.Time) error {
	now = now.UTC()
	res, err := r.db.Exec(`
	    UPDATE media_files
	    SET status = ?,
	        error_message = ?,
	        transcribed_at = ?,
	        updated_at = ?
	    WHERE id = ? AND status = ?`,
		types.StatusFailed, message, now, now, id, types.StatusProcessing)
	if err != nil {
		return err
	}
	return requireTransition(res)
}

// ResetStaleProcessing fails every record still marked processing. Only a
// dead worker leaves records there at startup, so this runs once before
// the pool starts; the failed state keeps re-transcription available.
func (r *sqlRepository) ResetStaleProcessing(message string, now time.Time) (int64, error) {
	res, err := r.db.Exec(`
	    UPDATE media_files
	    SET status = ?,
	        error_message = ?,
	        updated_at = ?
	    WHERE status = ?`,
		types.StatusFailed, message, now.UTC(), types.StatusProcessing)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkBinaryDeleted flips the deletion flag. No statement anywhere unsets it.
func (r *sqlRepository) MarkBinaryDeleted(id string, now time.Time) error {
	res, err := r.db.Exec(
		`UPDATE media_files SET binary_deleted = 1, updated_at = ? WHERE id = ?`,
		now.UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CleanupCandidates returns completed records whose retention window has
// elapsed and whose binary still exists. The cutoff boundary is inclusive.
func (r *sqlRepository) CleanupCandidates(cutoff time.Time) ([]*MediaFile, error) {
	var files []*MediaFile
	err := r.db.Select(&files, `
	    SELECT * FROM media_files
	    WHERE status = ?
	      AND binary_deleted = 0
	      AND transcript_completed_at <= ?
	    ORDER BY transcript_completed_at`,
		types.StatusCompleted, cutoff.UTC())
	return files, err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func requireTransition(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

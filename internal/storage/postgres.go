package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/voice-jobs/internal/domain"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS tts_jobs (
	job_id          TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	voice_name      TEXT NOT NULL,
	text            TEXT NOT NULL,
	text_length     INTEGER NOT NULL,
	language        TEXT NOT NULL,
	status          TEXT NOT NULL,
	progress        TEXT,
	speaker_ref     TEXT NOT NULL,
	output_path     TEXT NOT NULL,
	result_location TEXT,
	error_message   TEXT,
	created_at      TIMESTAMPTZ NOT NULL,
	started_at      TIMESTAMPTZ,
	completed_at    TIMESTAMPTZ,
	failed_at       TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_tts_jobs_status ON tts_jobs (status);
`

const upsertJob = `
	INSERT INTO tts_jobs (
		job_id, user_id, voice_name, text, text_length, language,
		status, progress, speaker_ref, output_path, result_location, error_message,
		created_at, started_at, completed_at, failed_at
	) VALUES (
		:job_id, :user_id, :voice_name, :text, :text_length, :language,
		:status, :progress, :speaker_ref, :output_path, :result_location, :error_message,
		:created_at, :started_at, :completed_at, :failed_at
	)
	ON CONFLICT (job_id) DO UPDATE SET
		status = EXCLUDED.status,
		progress = EXCLUDED.progress,
		result_location = EXCLUDED.result_location,
		error_message = EXCLUDED.error_message,
		started_at = EXCLUDED.started_at,
		completed_at = EXCLUDED.completed_at,
		failed_at = EXCLUDED.failed_at
`

const selectJob = `
	SELECT
		job_id, user_id, voice_name, text, text_length, language,
		status, progress, speaker_ref, output_path, result_location, error_message,
		created_at, started_at, completed_at, failed_at
	FROM tts_jobs
	WHERE job_id = $1
`

// PostgresStore keeps job records in the tts_jobs table
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a store on an open connection pool
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the jobs table when it does not exist yet
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tts_jobs schema: %w", err)
	}
	s.logger.Info("Job table ready", slog.String("table", "tts_jobs"))
	return nil
}

// Put inserts the record, or replaces the mutable columns of an existing one
func (s *PostgresStore) Put(ctx context.Context, job *domain.Job) error {
	if _, err := s.db.NamedExecContext(ctx, upsertJob, job); err != nil {
		return domain.NewStoreError("put", job.JobID, err)
	}
	return nil
}

// Get loads the record for jobID
func (s *PostgresStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	if err := s.db.GetContext(ctx, &job, selectJob, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, domain.NewStoreError("get", jobID, err)
	}
	return &job, nil
}

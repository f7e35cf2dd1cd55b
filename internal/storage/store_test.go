package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/cuongbtq/voice-jobs/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(t *testing.T) *domain.Job {
	t.Helper()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return domain.NewJob(
		uuid.NewString(),
		domain.Owner{UserID: "alice", VoiceName: "Morning Voice"},
		"Hello there. General Kenobi!",
		"en",
		"/data/voices/alice/morning_voice/ref.wav",
		"/data/outputs/alice/morning_voice/x.wav",
		created,
	)
}

// exerciseStore runs the behaviour every JobStore must share
func exerciseStore(t *testing.T, store JobStore) {
	ctx := context.Background()

	t.Run("missing record", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		job := newTestJob(t)
		require.NoError(t, store.Put(ctx, job))

		got, err := store.Get(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, job.JobID, got.JobID)
		assert.Equal(t, domain.JobStatusQueued, got.Status)
		assert.Equal(t, job.Text, got.Text)
		assert.Equal(t, 28, got.TextLength)
		assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.StartedAt)
	})

	t.Run("put replaces", func(t *testing.T) {
		job := newTestJob(t)
		require.NoError(t, store.Put(ctx, job))

		require.NoError(t, job.Start(job.CreatedAt.Add(time.Second)))
		require.NoError(t, job.SetProgress(1, 3))
		require.NoError(t, store.Put(ctx, job))

		got, err := store.Get(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, got.Status)
		require.NotNil(t, got.Progress)
		assert.Equal(t, "1/3", *got.Progress)
		require.NotNil(t, got.StartedAt)
	})

	t.Run("concurrent readers see whole records", func(t *testing.T) {
		job := newTestJob(t)
		require.NoError(t, store.Put(ctx, job))
		require.NoError(t, job.Start(job.CreatedAt))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 1; i <= 20; i++ {
				cp := *job
				_ = cp.SetProgress(i, 20)
				_ = store.Put(ctx, &cp)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				got, err := store.Get(ctx, job.JobID)
				if assert.NoError(t, err) {
					assert.Equal(t, job.JobID, got.JobID)
					assert.Equal(t, job.Text, got.Text)
				}
			}
		}()
		wg.Wait()
	})
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	job := newTestJob(t)
	job.JobID = "a/b"
	err = store.Put(context.Background(), job)
	var storeErr *domain.StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestFileStore_Ping(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "jobs")
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	assert.NoError(t, store.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.ErrorContains(t, store.Ping(context.Background()), "jobs directory unavailable")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	exerciseStore(t, NewRedisStore(client, "", 0))
}

func TestRedisStore_KeyLayoutAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client, "test:", time.Hour)
	job := newTestJob(t)
	require.NoError(t, store.Put(context.Background(), job))

	assert.True(t, mr.Exists("test:"+job.JobID))
	assert.Equal(t, time.Hour, mr.TTL("test:"+job.JobID))
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	_, err := NewRedisStore(client, "", 0).Get(context.Background(), uuid.NewString())
	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get", storeErr.Op)
}

func TestNatsStore(t *testing.T) {
	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	server := test.RunServer(&opts)
	t.Cleanup(server.Shutdown)

	conn, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	js, err := conn.JetStream()
	require.NoError(t, err)

	store, err := NewNatsStore(js, "tts_jobs")
	require.NoError(t, err)
	exerciseStore(t, store)

	// binding a second time reuses the bucket
	again, err := NewNatsStore(js, "tts_jobs")
	require.NoError(t, err)
	job := newTestJob(t)
	require.NoError(t, store.Put(context.Background(), job))
	got, err := again.Get(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.JobID, got.JobID)
}

var jobColumns = []string{
	"job_id", "user_id", "voice_name", "text", "text_length", "language",
	"status", "progress", "speaker_ref", "output_path", "result_location", "error_message",
	"created_at", "started_at", "completed_at", "failed_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPostgresStore(sqlx.NewDb(db, "postgres"), logger), mock
}

func TestPostgresStore_Put(t *testing.T) {
	store, mock := newMockStore(t)
	job := newTestJob(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tts_jobs")).
		WithArgs(
			job.JobID, "alice", "Morning Voice", job.Text, 28, "en",
			domain.JobStatusQueued, nil, job.SpeakerRef, job.OutputPath, nil, nil,
			job.CreatedAt, nil, nil, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Put(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutFailure(t *testing.T) {
	store, mock := newMockStore(t)
	job := newTestJob(t)

	mock.ExpectExec("INSERT INTO tts_jobs").WillReturnError(assert.AnError)

	err := store.Put(context.Background(), job)
	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, job.JobID, storeErr.JobID)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	job := newTestJob(t)
	started := job.CreatedAt.Add(time.Second)

	mock.ExpectQuery("SELECT (.+) FROM tts_jobs WHERE job_id = \\$1").
		WithArgs(job.JobID).
		WillReturnRows(sqlmock.NewRows(jobColumns).AddRow(
			job.JobID, "alice", "Morning Voice", job.Text, 28, "en",
			"processing", "2/3", job.SpeakerRef, job.OutputPath, nil, nil,
			job.CreatedAt, started, nil, nil,
		))

	got, err := store.Get(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
	require.NotNil(t, got.Progress)
	assert.Equal(t, "2/3", *got.Progress)
	require.NotNil(t, got.StartedAt)
	assert.True(t, started.Equal(*got.StartedAt))
	assert.Nil(t, got.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM tts_jobs").WillReturnRows(sqlmock.NewRows(jobColumns))

	_, err := store.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tts_jobs").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

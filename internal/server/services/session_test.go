package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/passshare/internal/server/blob"
	"github.com/dmitrijs2005/passshare/internal/server/notify"
	"github.com/dmitrijs2005/passshare/internal/server/repositories/repomanager"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	notify.Hub
	published []string
	err       error
}

func (h *recordingHub) Publish(_ context.Context, passkey string) error {
	h.published = append(h.published, passkey)
	return h.err
}

func newMemoryService(t *testing.T) (*SessionService, *blob.MemoryStore, *recordingHub) {
	t.Helper()
	blobs := blob.NewMemoryStore()
	hub := &recordingHub{}
	s := NewSessionService(nil, repomanager.NewMemoryRepositoryManager(), blobs, hub, nil)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return s, blobs, hub
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newMemoryService(t)

	require.NoError(t, s.Create(ctx, "AB12CD34", "alice"))
	assert.ErrorIs(t, s.Create(ctx, "AB12CD34", "bob"), ErrDuplicatePasskey)
}

func TestCreate_Validation(t *testing.T) {
	s, _, _ := newMemoryService(t)

	tests := []struct {
		name, passkey, username, want string
	}{
		{"empty username", "AB12CD34", " ", "username is required"},
		{"short passkey", "AB12", "alice", "passkey must be 8 characters A-Z or 0-9"},
		{"lower case passkey", "ab12cd34", "alice", "passkey must be 8 characters A-Z or 0-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Create(context.Background(), tt.passkey, tt.username)
			require.ErrorIs(t, err, ErrValidation)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestJoin(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newMemoryService(t)
	require.NoError(t, s.Create(ctx, "AB12CD34", "alice"))

	require.NoError(t, s.Join(ctx, "AB12CD34", "bob"))
	assert.ErrorIs(t, s.Join(ctx, "ZZZZ9999", "bob"), ErrSessionNotFound)
	assert.ErrorIs(t, s.Join(ctx, "", "bob"), ErrValidation)
	assert.ErrorIs(t, s.Join(ctx, "AB12CD34", ""), ErrValidation)
}

func TestUploadListDownload(t *testing.T) {
	ctx := context.Background()
	s, blobs, hub := newMemoryService(t)
	require.NoError(t, s.Create(ctx, "AB12CD34", "alice"))

	f, err := s.Upload(ctx, "AB12CD34", "u1", "../notes.txt", strings.NewReader("hello"), -1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.ID)
	assert.Equal(t, "notes.txt", f.FileName)
	assert.Equal(t, int64(5), f.Size)
	assert.True(t, strings.HasPrefix(f.StorageKey, "sessions/AB12CD34/2024/05/01/"), f.StorageKey)
	assert.Equal(t, []string{"AB12CD34"}, hub.published)

	stored, err := blobs.Get(ctx, f.StorageKey)
	require.NoError(t, err)
	stored.Close()

	files, err := s.ListFiles(ctx, "AB12CD34")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "notes.txt", files[0].FileName)

	got, body, err := s.Download(ctx, "1")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "notes.txt", got.FileName)
}

func TestUpload_KnownSize(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newMemoryService(t)
	require.NoError(t, s.Create(ctx, "AB12CD34", "alice"))

	f, err := s.Upload(ctx, "AB12CD34", "u1", "a.bin", strings.NewReader("abc"), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.Size)
}

func TestUpload_Errors(t *testing.T) {
	ctx := context.Background()
	s, _, hub := newMemoryService(t)
	require.NoError(t, s.Create(ctx, "AB12CD34", "alice"))

	_, err := s.Upload(ctx, "ZZZZ9999", "u1", "a.txt", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.Upload(ctx, "AB12CD34", "", "a.txt", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Upload(ctx, "AB12CD34", "u1", " ", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, hub.published)
}

func TestUpload_PublishFailureStillSucceeds(t *testing.T) {
	ctx := context.Background()
	s, _, hub := newMemoryService(t)
	hub.err = errors.New("redis down")
	require.NoError(t, s.Create(ctx, "AB12CD34", "alice"))

	_, err := s.Upload(ctx, "AB12CD34", "u1", "a.txt", strings.NewReader("x"), 1)
	require.NoError(t, err)

	files, err := s.ListFiles(ctx, "AB12CD34")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestListFiles_UnknownSession(t *testing.T) {
	s, _, _ := newMemoryService(t)
	_, err := s.ListFiles(context.Background(), "ZZZZ9999")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDownload_NotFound(t *testing.T) {
	s, _, _ := newMemoryService(t)

	for _, id := range []string{"42", "abc", ""} {
		_, _, err := s.Download(context.Background(), id)
		assert.ErrorIs(t, err, ErrFileNotFound, "id %q", id)
	}
}

func TestCreate_PostgresTransaction(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	s := NewSessionService(db, repomanager.NewPostgresRepositoryManager(), blob.NewMemoryStore(), &recordingHub{}, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT\s+INTO\s+sessions`).
		WithArgs("AB12CD34", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT\s+INTO\s+session_members`).
		WithArgs("AB12CD34", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Create(context.Background(), "AB12CD34", "alice"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_PostgresDuplicateRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	s := NewSessionService(db, repomanager.NewPostgresRepositoryManager(), blob.NewMemoryStore(), &recordingHub{}, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT\s+INTO\s+sessions`).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	assert.ErrorIs(t, s.Create(context.Background(), "AB12CD34", "alice"), ErrDuplicatePasskey)
	require.NoError(t, mock.ExpectationsWereMet())
}

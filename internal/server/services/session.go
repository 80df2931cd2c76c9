// Package services contains the backend's business logic: sessions, their
// members and the files shared in them.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/passshare/internal/dbx"
	"github.com/dmitrijs2005/passshare/internal/filex"
	"github.com/dmitrijs2005/passshare/internal/logging"
	"github.com/dmitrijs2005/passshare/internal/passkey"
	"github.com/dmitrijs2005/passshare/internal/server/blob"
	"github.com/dmitrijs2005/passshare/internal/server/models"
	"github.com/dmitrijs2005/passshare/internal/server/notify"
	"github.com/dmitrijs2005/passshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passshare/internal/server/repositories/sessions"
	"github.com/google/uuid"
)

// SessionService creates and joins sessions and moves files in and out of
// them. Every successful upload publishes a change event for its session.
type SessionService struct {
	db          *sql.DB // nil when the repositories live in memory
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	hub         notify.Hub
	log         logging.Logger
	now         func() time.Time
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store, hub notify.Hub, log logging.Logger) *SessionService {
	if log == nil {
		log = logging.Nop()
	}
	return &SessionService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		hub:         hub,
		log:         log.With("module", "session_service"),
		now:         time.Now,
	}
}

// StorageKey returns a fresh blob key for a file of passkey.
func (s *SessionService) StorageKey(passkey string) string {
	d := s.now().UTC()
	return fmt.Sprintf("sessions/%s/%d/%02d/%02d/%v", passkey, d.Year(), d.Month(), d.Day(), uuid.New())
}

// Create registers a new session owned by username.
func (s *SessionService) Create(ctx context.Context, key, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return invalid("username is required")
	}
	if err := passkey.Validate(key); err != nil {
		return invalid("passkey must be 8 characters A-Z or 0-9")
	}

	err := s.withRepo(ctx, func(ctx context.Context, repo sessions.Repository) error {
		if err := repo.Create(ctx, &models.Session{Passkey: key, Owner: username}); err != nil {
			return err
		}
		return repo.AddMember(ctx, key, username)
	})
	if errors.Is(err, sessions.ErrDuplicatePasskey) {
		return ErrDuplicatePasskey
	}
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	s.log.Info(ctx, "session created", "passkey", key, "owner", username)
	return nil
}

// Join adds username to an existing session.
func (s *SessionService) Join(ctx context.Context, key, username string) error {
	username = strings.TrimSpace(username)
	if key == "" || username == "" {
		return invalid("passkey and username are required")
	}

	err := s.withRepo(ctx, func(ctx context.Context, repo sessions.Repository) error {
		if _, err := repo.Get(ctx, key); err != nil {
			return err
		}
		return repo.AddMember(ctx, key, username)
	})
	if errors.Is(err, sessions.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("join session: %w", err)
	}

	s.log.Info(ctx, "session joined", "passkey", key, "username", username)
	return nil
}

// ListFiles returns the session's files in upload order.
func (s *SessionService) ListFiles(ctx context.Context, key string) ([]*models.File, error) {
	repo := s.repomanager.Sessions(s.conn())
	if _, err := repo.Get(ctx, key); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	files, err := repo.ListFiles(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// Upload stores the content of r as fileName in the session and notifies
// its subscribers. size may be -1 when unknown.
func (s *SessionService) Upload(ctx context.Context, key, uploaderID, fileName string, r io.Reader, size int64) (*models.File, error) {
	if uploaderID == "" {
		return nil, invalid("user id is required")
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, invalid("file name is required")
	}

	repo := s.repomanager.Sessions(s.conn())
	if _, err := repo.Get(ctx, key); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	body := r
	var cr *countingReader
	if size < 0 {
		cr = &countingReader{r: r}
		body = cr
	}
	storageKey := s.StorageKey(key)
	if err := s.blobs.Put(ctx, storageKey, body, size); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}
	if cr != nil {
		size = cr.n
	}

	f := &models.File{
		Passkey:    key,
		UploaderID: uploaderID,
		FileName:   filex.SanitizeFileName(fileName),
		StorageKey: storageKey,
		Size:       size,
	}
	if err := repo.AddFile(ctx, f); err != nil {
		return nil, fmt.Errorf("record file: %w", err)
	}

	// The file is stored either way; subscribers catch up on their next refresh.
	if err := s.hub.Publish(ctx, key); err != nil {
		s.log.Error(ctx, "publish change event", "passkey", key, "error", err)
	}

	s.log.Info(ctx, "file uploaded", "passkey", key, "file_id", f.ID, "bytes", f.Size)
	return f, nil
}

// Download opens the content of file id. The caller closes the reader.
func (s *SessionService) Download(ctx context.Context, id string) (*models.File, io.ReadCloser, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, nil, ErrFileNotFound
	}

	f, err := s.repomanager.Sessions(s.conn()).GetFile(ctx, n)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("get file: %w", err)
	}

	body, err := s.blobs.Get(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	return f, body, nil
}

// withRepo runs fn in a transaction when backed by a database.
func (s *SessionService) withRepo(ctx context.Context, fn func(ctx context.Context, repo sessions.Repository) error) error {
	if s.db == nil {
		return fn(ctx, s.repomanager.Sessions(nil))
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, s.repomanager.Sessions(tx))
	})
}

func (s *SessionService) conn() dbx.DBTX {
	if s.db == nil {
		return nil
	}
	return s.db
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

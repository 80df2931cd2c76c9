package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/passshare/internal/client/api"
	"github.com/dmitrijs2005/passshare/internal/client/identity"
	"github.com/dmitrijs2005/passshare/internal/client/models"
	"github.com/dmitrijs2005/passshare/internal/client/realtime"
	"github.com/dmitrijs2005/passshare/internal/client/repositories/files"
	"github.com/dmitrijs2005/passshare/internal/dbx"
	"github.com/dmitrijs2005/passshare/internal/logging"
	"github.com/dmitrijs2005/passshare/internal/passkey"
)

const DefaultCreateAttempts = 3

// Channel is the realtime subscription used by one session.
type Channel interface {
	Connect(ctx context.Context, passkey string, onNotify func()) error
	Disconnect()
	State() realtime.State
	OnStateChange(fn func(realtime.State))
}

// ChannelFactory returns a fresh, unconnected Channel.
type ChannelFactory func() Channel

// SessionDeps wires a SessionService. Client, Channels and Identity are
// required.
type SessionDeps struct {
	Client   api.Client
	Channels ChannelFactory
	Identity identity.Store

	// DB, when set, persists the last known file list of each session.
	DB *sql.DB

	Logger         logging.Logger
	Generate       passkey.Generator
	CreateAttempts int
}

// SessionService owns the lifecycle of the passkey session the client takes
// part in and the authoritative file list of that session.
//
// The file list is replaced wholesale on every refresh. Concurrent refreshes
// of one passkey share a single request; each request carries a sequence
// number taken when it is issued and a response is applied only if no newer
// one has been applied already.
type SessionService struct {
	client   api.Client
	channels ChannelFactory
	ids      identity.Store
	db       *sql.DB
	transfer *TransferService
	log      logging.Logger
	generate passkey.Generator
	attempts int

	flight  singleflight.Group
	seq     atomic.Uint64
	persist sync.Mutex

	mu         sync.Mutex
	session    models.Session
	files      []models.SharedFile
	applied    uint64
	persisted  uint64
	channel    Channel
	connectErr error
	stateWatch []func(realtime.State)
	filesWatch []func(passkey string, list []models.SharedFile)
}

func NewSessionService(d SessionDeps) *SessionService {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Generate == nil {
		d.Generate = passkey.Generate
	}
	if d.CreateAttempts <= 0 {
		d.CreateAttempts = DefaultCreateAttempts
	}
	return &SessionService{
		client:   d.Client,
		channels: d.Channels,
		ids:      d.Identity,
		db:       d.DB,
		transfer: NewTransferService(d.Client, d.Logger),
		log:      d.Logger,
		generate: d.Generate,
		attempts: d.CreateAttempts,
	}
}

// Login stores a new identity for username and returns it.
func (s *SessionService) Login(ctx context.Context, username string) (models.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Identity{}, invalid("username is required")
	}
	id := models.Identity{ID: uuid.NewString(), Username: username}
	if err := s.ids.Save(ctx, id); err != nil {
		return models.Identity{}, err
	}
	s.log.Info(ctx, "logged in", "username", username)
	return id, nil
}

func (s *SessionService) Identity(ctx context.Context) (models.Identity, error) {
	return s.ids.Load(ctx)
}

// Logout leaves the current session, forgets the identity and drops every
// cached file list.
func (s *SessionService) Logout(ctx context.Context) error {
	s.Leave(ctx)
	if err := s.ids.Clear(ctx); err != nil {
		return err
	}
	if s.db != nil {
		if err := files.NewSQLiteRepository(s.db).Clear(ctx); err != nil {
			return fmt.Errorf("clear file cache: %w", err)
		}
	}
	return nil
}

// Create opens a new session under a freshly generated passkey. A passkey
// the server reports as taken is regenerated, at most CreateAttempts times
// in total. On failure the passkey is cleared and the session stays
// inactive.
func (s *SessionService) Create(ctx context.Context, username string) (models.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Session{}, invalid("username is required")
	}
	if s.IsInSession() {
		return models.Session{}, ErrInSession
	}

	var (
		key string
		err error
	)
	for attempt := 1; attempt <= s.attempts; attempt++ {
		key, err = s.generate()
		if err != nil {
			err = fmt.Errorf("generate passkey: %w", err)
			break
		}
		s.setPending(key, username)

		err = s.client.CreateSession(ctx, key, username)
		if err == nil || !errors.Is(err, api.ErrDuplicatePasskey) {
			break
		}
		s.log.Warn(ctx, "passkey already taken", "passkey", key, "attempt", attempt)
	}
	if err != nil {
		s.setPending("", "")
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}

	s.log.Info(ctx, "session created", "passkey", key)
	return s.activate(ctx, key, username, true), nil
}

// Join enters the session named by key. The passkey is normalised and both
// inputs are validated before any request is made.
func (s *SessionService) Join(ctx context.Context, key, username string) (models.Session, error) {
	key = passkey.Normalize(key)
	username = strings.TrimSpace(username)
	switch {
	case key == "":
		return models.Session{}, invalid("passkey is required")
	case username == "":
		return models.Session{}, invalid("username is required")
	case passkey.Validate(key) != nil:
		return models.Session{}, invalid(fmt.Sprintf("passkey must be %d characters of A-Z and 0-9", passkey.Length))
	}
	if s.IsInSession() {
		return models.Session{}, ErrInSession
	}

	if err := s.client.JoinSession(ctx, key, username); err != nil {
		return models.Session{}, fmt.Errorf("join session: %w", err)
	}

	s.log.Info(ctx, "session joined", "passkey", key)
	return s.activate(ctx, key, username, false), nil
}

func (s *SessionService) setPending(key, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = models.Session{Passkey: key, Username: username}
}

// activate marks the session active, subscribes to its topic and fetches
// the initial file list. Neither a failed subscription nor a failed fetch
// undoes the server-side create/join; both are logged and surfaced through
// ChannelState and Files.
func (s *SessionService) activate(ctx context.Context, key, username string, owner bool) models.Session {
	ch := s.channels()
	cached := s.loadCached(ctx, key)

	s.mu.Lock()
	s.session = models.Session{Passkey: key, Username: username, Active: true, Owner: owner}
	s.files = cached
	s.applied = s.seq.Load()
	s.channel = ch
	s.connectErr = nil
	sess := s.session
	s.mu.Unlock()

	ch.OnStateChange(s.forwardState)
	if err := ch.Connect(ctx, key, func() { s.onNotify(key) }); err != nil {
		s.log.Warn(ctx, "realtime channel unavailable", "passkey", key, "err", err)
		s.mu.Lock()
		s.connectErr = err
		s.mu.Unlock()
		s.forwardState(realtime.StateDegraded)
	}

	if _, err := s.RefreshFiles(ctx, key); err != nil {
		s.log.Warn(ctx, "initial file list fetch failed", "passkey", key, "err", err)
	}
	return sess
}

// Leave disconnects from the session. Calling it without a session is a
// no-op. The identity is kept.
func (s *SessionService) Leave(ctx context.Context) {
	s.mu.Lock()
	ch := s.channel
	key := s.session.Passkey
	s.channel = nil
	s.connectErr = nil
	s.session = models.Session{}
	s.files = nil
	s.applied = s.seq.Load()
	s.mu.Unlock()

	if ch != nil {
		ch.Disconnect()
		s.log.Info(ctx, "session left", "passkey", key)
	}
}

type fetchResult struct {
	seq  uint64
	list []models.SharedFile
}

// RefreshFiles fetches the file list of key and, if key is the current
// session and the response is the newest one so far, makes it the cached
// list. It returns the list now cached for key (or, for another passkey,
// the fetched one). On failure the cache is left as it was.
func (s *SessionService) RefreshFiles(ctx context.Context, key string) ([]models.SharedFile, error) {
	if key == "" {
		return nil, ErrNoSession
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		seq := s.seq.Add(1)
		list, err := s.client.ListFiles(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		return fetchResult{seq: seq, list: list}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh files: %w", err)
	}
	res := v.(fetchResult)

	s.mu.Lock()
	if s.session.Passkey != key || !s.session.Active {
		s.mu.Unlock()
		return slices.Clone(res.list), nil
	}
	if res.seq <= s.applied {
		current := slices.Clone(s.files)
		s.mu.Unlock()
		s.log.Debug(ctx, "discarding stale file list", "passkey", key, "seq", res.seq)
		return current, nil
	}
	s.applied = res.seq
	s.files = slices.Clone(res.list)
	s.mu.Unlock()

	s.store(ctx, key, res)
	return slices.Clone(res.list), nil
}

// onNotify handles a change notification. A request already in flight may
// predate the change, so the notification always issues a new one.
func (s *SessionService) onNotify(key string) {
	ctx := context.Background()
	s.flight.Forget(key)

	list, err := s.RefreshFiles(ctx, key)
	if err != nil {
		s.log.Warn(ctx, "refresh after notification failed", "passkey", key, "err", err)
		return
	}

	s.mu.Lock()
	if !s.session.Active || s.session.Passkey != key {
		s.mu.Unlock()
		s.log.Debug(ctx, "session left, change not reported", "passkey", key)
		return
	}
	watchers := slices.Clone(s.filesWatch)
	s.mu.Unlock()
	for _, fn := range watchers {
		fn(key, list)
	}
}

func (s *SessionService) loadCached(ctx context.Context, key string) []models.SharedFile {
	if s.db == nil {
		return nil
	}
	list, err := files.NewSQLiteRepository(s.db).List(ctx, key)
	if err != nil {
		s.log.Warn(ctx, "read cached file list", "passkey", key, "err", err)
		return nil
	}
	return list
}

// store persists res unless a newer list was stored meanwhile.
func (s *SessionService) store(ctx context.Context, key string, res fetchResult) {
	if s.db == nil {
		return
	}
	s.persist.Lock()
	defer s.persist.Unlock()

	s.mu.Lock()
	stale := res.seq <= s.persisted
	s.mu.Unlock()
	if stale {
		return
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return files.NewSQLiteRepository(tx).ReplaceAll(ctx, key, res.list)
	})
	if err != nil {
		s.log.Warn(ctx, "persist file list", "passkey", key, "err", err)
		return
	}

	s.mu.Lock()
	s.persisted = res.seq
	s.mu.Unlock()
}

// Files returns a copy of the cached file list of the current session.
func (s *SessionService) Files() []models.SharedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.files)
}

func (s *SessionService) Session() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *SessionService) IsInSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Active
}

// ChannelState reports the realtime state of the current session. A session
// whose channel could not be connected at all reports Degraded.
func (s *SessionService) ChannelState() realtime.State {
	s.mu.Lock()
	ch, connectErr := s.channel, s.connectErr
	s.mu.Unlock()

	switch {
	case ch == nil:
		return realtime.StateIdle
	case connectErr != nil:
		return realtime.StateDegraded
	default:
		return ch.State()
	}
}

// WatchState registers fn for realtime state changes of any session.
func (s *SessionService) WatchState(fn func(realtime.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateWatch = append(s.stateWatch, fn)
}

// WatchFiles registers fn for file lists fetched because of a change
// notification.
func (s *SessionService) WatchFiles(fn func(passkey string, list []models.SharedFile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesWatch = append(s.filesWatch, fn)
}

func (s *SessionService) forwardState(st realtime.State) {
	s.mu.Lock()
	watchers := slices.Clone(s.stateWatch)
	s.mu.Unlock()
	for _, fn := range watchers {
		fn(st)
	}
}

// scope returns the passkey and identity a transfer acts for, checking both
// before anything touches the network.
func (s *SessionService) scope(ctx context.Context) (string, models.Identity, error) {
	sess := s.Session()
	if !sess.Active || sess.Passkey == "" {
		return "", models.Identity{}, ErrNoSession
	}
	id, err := s.ids.Load(ctx)
	if err != nil {
		return "", models.Identity{}, err
	}
	return sess.Passkey, id, nil
}

// Upload sends the file at path to the current session. The file list is
// not refreshed; the change notification that follows takes care of it.
func (s *SessionService) Upload(ctx context.Context, path string) (int64, error) {
	key, id, err := s.scope(ctx)
	if err != nil {
		return 0, err
	}
	return s.transfer.Upload(ctx, key, id.ID, path)
}

// Download saves file fileID of the current session into destDir under the
// name it has in the file list.
func (s *SessionService) Download(ctx context.Context, fileID, destDir string) (string, int64, error) {
	if _, _, err := s.scope(ctx); err != nil {
		return "", 0, err
	}

	var name string
	for _, f := range s.Files() {
		if f.ID.String() == fileID {
			name = f.FileName
			break
		}
	}
	if name == "" {
		return "", 0, fmt.Errorf("%w: %s", ErrUnknownFile, fileID)
	}
	return s.transfer.Download(ctx, fileID, name, destDir)
}

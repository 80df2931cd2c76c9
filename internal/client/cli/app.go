package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/passshare/internal/client/api"
	"github.com/dmitrijs2005/passshare/internal/client/config"
	"github.com/dmitrijs2005/passshare/internal/client/identity"
	"github.com/dmitrijs2005/passshare/internal/client/models"
	"github.com/dmitrijs2005/passshare/internal/client/realtime"
	"github.com/dmitrijs2005/passshare/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/passshare/internal/client/services"
	"github.com/dmitrijs2005/passshare/internal/client/storage"
	"github.com/dmitrijs2005/passshare/internal/logging"
	"github.com/dmitrijs2005/passshare/internal/netx"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// sessionManager is the part of services.SessionService the CLI drives.
type sessionManager interface {
	Login(ctx context.Context, username string) (models.Identity, error)
	Identity(ctx context.Context) (models.Identity, error)
	Logout(ctx context.Context) error
	Create(ctx context.Context, username string) (models.Session, error)
	Join(ctx context.Context, passkey, username string) (models.Session, error)
	RefreshFiles(ctx context.Context, passkey string) ([]models.SharedFile, error)
	Files() []models.SharedFile
	Session() models.Session
	Leave(ctx context.Context)
	ChannelState() realtime.State
	WatchState(fn func(realtime.State))
	WatchFiles(fn func(passkey string, list []models.SharedFile))
	Upload(ctx context.Context, path string) (int64, error)
	Download(ctx context.Context, fileID, destDir string) (string, int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config   *config.Config
	sessions sessionManager
	server   pinger
	db       *sql.DB
	log      logging.Logger
	in       io.Reader

	mu       sync.Mutex
	mode     Mode
	userName string
}

func NewApp(c *config.Config, log logging.Logger) (*App, error) {
	ctx := context.Background()

	db, err := storage.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient, err := api.NewHTTPClient(c.ServerURL, c.RequestTimeout, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	wsURL, err := netx.WebSocketURL(c.ServerURL, c.WebSocketPath)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	channels := func() services.Channel {
		return realtime.New(realtime.Options{
			URL:                wsURL,
			Logger:             log,
			ReconnectBaseDelay: c.ReconnectBaseDelay,
			ReconnectMaxDelay:  c.ReconnectMaxDelay,
			ReconnectAttempts:  uint64(max(c.ReconnectAttempts, 1)),
		})
	}

	svc := services.NewSessionService(services.SessionDeps{
		Client:         apiClient,
		Channels:       channels,
		Identity:       identity.NewMetadataStore(metadata.NewSQLiteRepository(db)),
		DB:             db,
		Logger:         log,
		CreateAttempts: c.CreateAttempts,
	})

	return newApp(c, svc, apiClient, db, log), nil
}

func newApp(c *config.Config, sessions sessionManager, server pinger, db *sql.DB, log logging.Logger) *App {
	a := &App{config: c, sessions: sessions, server: server, db: db, log: log, in: os.Stdin}
	sessions.WatchState(a.onChannelState)
	sessions.WatchFiles(a.onFilesChanged)
	return a
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		printlnFn(fmt.Sprintf("Switched to %s mode", mode))
	}
}

func (a *App) currentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userName = name
}

func (a *App) user() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userName
}

func (a *App) onChannelState(s realtime.State) {
	switch s {
	case realtime.StateReconnecting:
		printlnFn("Realtime connection lost, reconnecting...")
	case realtime.StateDegraded:
		printlnFn("Realtime updates unavailable; use 'refresh' to update the file list")
	case realtime.StateSubscribed:
		a.log.Debug(context.Background(), "realtime subscribed")
	}
}

func (a *App) onFilesChanged(passkey string, list []models.SharedFile) {
	printlnFn(fmt.Sprintf("File list of %s changed:", passkey))
	printlnFn(formatFiles(list))
}

// Run restores the stored identity, starts the online status watcher and
// runs the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer a.close()

	printlnFn("Welcome to PassShare CLI (type 'help' for commands)")
	if id, err := a.sessions.Identity(ctx); err == nil {
		a.setUser(id.Username)
		printlnFn("Logged in as " + id.Username)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartOnlineStatusWatcher(watchCtx, a.config.OnlineCheckInterval)

	scanner := bufio.NewScanner(a.in)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) close() {
	a.sessions.Leave(context.Background())
	if a.db != nil {
		_ = a.db.Close()
	}
}

// StartOnlineStatusWatcher pings the server every interval and switches
// between online and offline mode. It returns when ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.checkOnline(ctx, interval)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context, timeout time.Duration) {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := a.server.Ping(pingCtx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		a.log.Debug(ctx, "server ping failed", "err", err)
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

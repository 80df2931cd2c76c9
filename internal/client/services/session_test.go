package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/passshare/internal/client/api"
	"github.com/dmitrijs2005/passshare/internal/client/identity"
	"github.com/dmitrijs2005/passshare/internal/client/models"
	"github.com/dmitrijs2005/passshare/internal/client/realtime"
	"github.com/dmitrijs2005/passshare/internal/client/repositories/files"
	"github.com/dmitrijs2005/passshare/internal/client/storage"
	"github.com/dmitrijs2005/passshare/internal/passkey"
)

type harness struct {
	svc   *SessionService
	api   *fakeAPI
	chans *channelPool
	ids   *identity.MemoryStore
}

func newHarness(t *testing.T, keys ...string) *harness {
	t.Helper()
	if len(keys) == 0 {
		keys = []string{"AB12CD34"}
	}
	h := &harness{api: &fakeAPI{}, chans: &channelPool{}, ids: identity.NewMemoryStore()}
	h.svc = NewSessionService(SessionDeps{
		Client:   h.api,
		Channels: h.chans.factory,
		Identity: h.ids,
		Generate: passkey.Sequence(keys...),
	})
	return h
}

func (h *harness) login(t *testing.T, username string) {
	t.Helper()
	_, err := h.svc.Login(context.Background(), username)
	require.NoError(t, err)
}

func duplicate() error {
	return &api.APIError{Status: http.StatusConflict, Message: "DUPLICATE_PASSKEY"}
}

func TestCreate_Alice(t *testing.T) {
	h := newHarness(t, "AB12CD34")
	h.api.listFn = staticList(models.SharedFile{ID: "1", FileName: "a.txt"})

	sess, err := h.svc.Create(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "AB12CD34", sess.Passkey)
	assert.True(t, sess.Active)
	assert.True(t, sess.Owner)
	assert.True(t, h.svc.IsInSession())
	assert.Equal(t, []createCall{{"AB12CD34", "alice"}}, h.api.creates)

	require.Len(t, h.chans.made, 1)
	ch := h.chans.last()
	assert.Equal(t, 1, ch.connects)
	assert.Equal(t, "AB12CD34", ch.passkey)

	assert.GreaterOrEqual(t, h.api.lists(), 1)
	assert.Equal(t, []models.SharedFile{{ID: "1", FileName: "a.txt"}}, h.svc.Files())
}

func TestCreate_RegeneratesTakenPasskey(t *testing.T) {
	h := newHarness(t, "AAAAAAAA", "AB12CD34")
	h.api.createErrs = []error{duplicate(), nil}

	sess, err := h.svc.Create(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "AB12CD34", sess.Passkey)
	assert.Equal(t, []createCall{{"AAAAAAAA", "alice"}, {"AB12CD34", "alice"}}, h.api.creates)
}

func TestCreate_GivesUpAfterAttempts(t *testing.T) {
	h := newHarness(t, "AAAAAAAA", "BBBBBBBB", "CCCCCCCC", "DDDDDDDD")
	h.api.createErrs = []error{duplicate()}

	_, err := h.svc.Create(context.Background(), "alice")
	require.ErrorIs(t, err, api.ErrDuplicatePasskey)

	assert.Len(t, h.api.creates, DefaultCreateAttempts)
	assert.False(t, h.svc.IsInSession())
	assert.Empty(t, h.svc.Session().Passkey)
	assert.Empty(t, h.chans.made)
	assert.Equal(t, 0, h.api.lists())
}

func TestCreate_OtherFailuresAreNotRetried(t *testing.T) {
	h := newHarness(t, "AAAAAAAA", "BBBBBBBB")
	h.api.createErrs = []error{&api.APIError{Status: http.StatusInternalServerError, Message: "boom"}}

	_, err := h.svc.Create(context.Background(), "alice")
	require.Error(t, err)

	assert.Equal(t, "boom", api.UserMessage(err))
	assert.Len(t, h.api.creates, 1)
	assert.Empty(t, h.svc.Session().Passkey)
	assert.False(t, h.svc.IsInSession())
}

func TestCreate_RequiresUsername(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), "  ")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, h.api.networkCalls())
}

func TestCreate_WhileInSession(t *testing.T) {
	h := newHarness(t, "AB12CD34", "ZZZZ9999")
	_, err := h.svc.Create(context.Background(), "alice")
	require.NoError(t, err)

	_, err = h.svc.Create(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrInSession)
	assert.Len(t, h.api.creates, 1)
}

func TestJoin_ValidatesBeforeAnyRequest(t *testing.T) {
	cases := []struct {
		name, passkey, username string
	}{
		{"empty passkey", "", "bob"},
		{"empty username", "ZZZZ9999", ""},
		{"short passkey", "ZZZ", "bob"},
		{"bad symbol", "ZZZZ-999", "bob"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.Join(context.Background(), tc.passkey, tc.username)
			require.ErrorIs(t, err, ErrValidation)
			assert.NotEmpty(t, api.UserMessage(err))
			assert.Equal(t, 0, h.api.networkCalls())
			assert.Empty(t, h.chans.made)
		})
	}
}

func TestJoin_SessionNotFound(t *testing.T) {
	h := newHarness(t)
	h.api.joinErr = &api.APIError{Status: http.StatusBadRequest, Message: "Session not found"}

	_, err := h.svc.Join(context.Background(), "ZZZZ9999", "bob")
	require.Error(t, err)

	assert.Equal(t, "Session not found", api.UserMessage(err))
	assert.False(t, h.svc.IsInSession())
	assert.Empty(t, h.chans.made)
}

func TestJoin_UsesCallerPasskey(t *testing.T) {
	h := newHarness(t)

	sess, err := h.svc.Join(context.Background(), " zzzz9999 ", "bob")
	require.NoError(t, err)

	assert.Equal(t, models.Session{Passkey: "ZZZZ9999", Username: "bob", Active: true}, sess)
	assert.Equal(t, []createCall{{"ZZZZ9999", "bob"}}, h.api.joins)
	assert.Equal(t, "ZZZZ9999", h.chans.last().passkey)
	assert.GreaterOrEqual(t, h.api.lists(), 1)
}

func TestNotification_TriggersOneRefresh(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Join(context.Background(), "XYZXYZ12", "bob")
	require.NoError(t, err)

	var got []string
	h.api.setList(func(_ int, key string) ([]models.SharedFile, error) {
		got = append(got, key)
		return []models.SharedFile{{ID: "7", FileName: "new.txt"}}, nil
	})

	var notified []models.SharedFile
	h.svc.WatchFiles(func(_ string, list []models.SharedFile) { notified = list })

	h.chans.last().fire()

	assert.Equal(t, []string{"XYZXYZ12"}, got)
	assert.Equal(t, []models.SharedFile{{ID: "7", FileName: "new.txt"}}, h.svc.Files())
	assert.Equal(t, h.svc.Files(), notified)
}

func TestNotification_AfterLeaveIsNotReported(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Join(context.Background(), "XYZXYZ12", "bob")
	require.NoError(t, err)

	gate := make(chan struct{})
	h.api.setList(func(int, string) ([]models.SharedFile, error) {
		<-gate
		return []models.SharedFile{{ID: "7", FileName: "late.txt"}}, nil
	})

	var mu sync.Mutex
	reported := 0
	h.svc.WatchFiles(func(string, []models.SharedFile) {
		mu.Lock()
		reported++
		mu.Unlock()
	})

	ch := h.chans.last()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch.fire()
	}()
	require.Eventually(t, func() bool { return h.api.lists() == 1 }, time.Second, time.Millisecond)

	h.svc.Leave(context.Background())
	close(gate)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, reported)
	assert.Empty(t, h.svc.Files())
}

func TestRefresh_ReplacesWholesale(t *testing.T) {
	h := newHarness(t)
	h.api.listFn = staticList(
		models.SharedFile{ID: "1", FileName: "old.txt"},
		models.SharedFile{ID: "2", FileName: "keep.txt"},
	)
	_, err := h.svc.Join(context.Background(), "ZZZZ9999", "bob")
	require.NoError(t, err)
	require.Len(t, h.svc.Files(), 2)

	h.api.setList(staticList(models.SharedFile{ID: "2", FileName: "keep.txt"}))
	list, err := h.svc.RefreshFiles(context.Background(), "ZZZZ9999")
	require.NoError(t, err)

	assert.Equal(t, []models.SharedFile{{ID: "2", FileName: "keep.txt"}}, list)
	assert.Equal(t, list, h.svc.Files())
}

func TestRefresh_FailureKeepsCache(t *testing.T) {
	h := newHarness(t)
	h.api.listFn = staticList(models.SharedFile{ID: "1", FileName: "a.txt"})
	_, err := h.svc.Join(context.Background(), "ZZZZ9999", "bob")
	require.NoError(t, err)

	h.api.setList(func(int, string) ([]models.SharedFile, error) {
		return nil, errors.New("connection refused")
	})
	_, err = h.svc.RefreshFiles(context.Background(), "ZZZZ9999")
	require.Error(t, err)

	assert.Equal(t, []models.SharedFile{{ID: "1", FileName: "a.txt"}}, h.svc.Files())
}

func TestRefresh_CoalescesConcurrentCalls(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Join(context.Background(), "ZZZZ9999", "bob")
	require.NoError(t, err)

	gate := make(chan struct{})
	h.api.setList(func(int, string) ([]models.SharedFile, error) {
		<-gate
		return []models.SharedFile{{ID: "1", FileName: "a.txt"}}, nil
	})

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := h.svc.RefreshFiles(context.Background(), "ZZZZ9999")
			assert.NoError(t, err)
			assert.Len(t, list, 1)
		}()
	}

	require.Eventually(t, func() bool { return h.api.lists() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, h.api.lists())
}

func TestRefresh_DiscardsOlderResponse(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Join(context.Background(), "ZZZZ9999", "bob")
	require.NoError(t, err)

	gate := make(chan struct{})
	h.api.setList(func(n int, _ string) ([]models.SharedFile, error) {
		if n == 1 {
			<-gate
			return []models.SharedFile{{ID: "1", FileName: "stale.txt"}}, nil
		}
		return []models.SharedFile{{ID: "2", FileName: "fresh.txt"}}, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.svc.RefreshFiles(context.Background(), "ZZZZ9999")
	}()
	require.Eventually(t, func() bool { return h.api.lists() == 1 }, time.Second, time.Millisecond)

	// A notification issues a newer request that overtakes the blocked one.
	h.chans.last().fire()
	fresh := []models.SharedFile{{ID: "2", FileName: "fresh.txt"}}
	assert.Equal(t, fresh, h.svc.Files())

	close(gate)
	<-done
	assert.Equal(t, fresh, h.svc.Files())
}

func TestUploadDownload_RequireSessionAndIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "alice")

		_, err := h.svc.Upload(ctx, "whatever.txt")
		assert.ErrorIs(t, err, ErrNoSession)
		_, _, err = h.svc.Download(ctx, "1", t.TempDir())
		assert.ErrorIs(t, err, ErrNoSession)
		assert.Equal(t, 0, h.api.networkCalls())
	})

	t.Run("no identity", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Join(ctx, "ZZZZ9999", "bob")
		require.NoError(t, err)
		before := h.api.networkCalls()

		_, err = h.svc.Upload(ctx, "whatever.txt")
		assert.ErrorIs(t, err, ErrNoIdentity)
		_, _, err = h.svc.Download(ctx, "1", t.TempDir())
		assert.ErrorIs(t, err, ErrNoIdentity)
		assert.Equal(t, before, h.api.networkCalls())
	})
}

func TestUpload_DoesNotRefresh(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice")
	h.api.listFn = staticList(models.SharedFile{ID: "1", FileName: "a.txt"})
	_, err := h.svc.Create(context.Background(), "alice")
	require.NoError(t, err)

	filesBefore := h.svc.Files()
	h.api.setList(staticList(models.SharedFile{ID: "1", FileName: "a.txt"}, models.SharedFile{ID: "2", FileName: "b.txt"}))

	_, err = h.svc.Upload(context.Background(), writeTemp(t, "b.txt", "hello"))
	require.NoError(t, err)

	assert.Equal(t, filesBefore, h.svc.Files())
	assert.Equal(t, 0, h.api.lists())
	require.Len(t, h.api.uploads, 1)

	id, err := h.ids.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AB12CD34/"+id.ID+"/b.txt", h.api.uploads[0])
}

func TestDownload_UnknownFile(t *testing.T) {
	h := newHarness(t)
	h.login(t, "bob")
	_, err := h.svc.Join(context.Background(), "ZZZZ9999", "bob")
	require.NoError(t, err)

	_, _, err = h.svc.Download(context.Background(), "42", t.TempDir())
	assert.ErrorIs(t, err, ErrUnknownFile)
	assert.Equal(t, 0, h.api.downloads)
}

func TestLeave_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Join(context.Background(), "ZZZZ9999", "bob")
	require.NoError(t, err)

	h.svc.Leave(context.Background())
	h.svc.Leave(context.Background())

	assert.False(t, h.svc.IsInSession())
	assert.Empty(t, h.svc.Files())
	assert.Equal(t, 1, h.chans.last().disconnects)
	assert.Equal(t, realtime.StateIdle, h.svc.ChannelState())
}

func TestChannelState_IsForwarded(t *testing.T) {
	h := newHarness(t)

	var (
		mu     sync.Mutex
		states []realtime.State
	)
	h.svc.WatchState(func(s realtime.State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	_, err := h.svc.Join(context.Background(), "ZZZZ9999", "bob")
	require.NoError(t, err)
	h.chans.last().emit(realtime.StateReconnecting)

	assert.Equal(t, realtime.StateReconnecting, h.svc.ChannelState())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []realtime.State{realtime.StateSubscribed, realtime.StateReconnecting}, states)
}

func TestConnectFailure_KeepsSessionDegraded(t *testing.T) {
	h := newHarness(t)
	h.chans.template.connectErr = errors.New("dial refused")

	_, err := h.svc.Join(context.Background(), "ZZZZ9999", "bob")
	require.NoError(t, err)

	assert.True(t, h.svc.IsInSession())
	assert.Equal(t, realtime.StateDegraded, h.svc.ChannelState())
	assert.GreaterOrEqual(t, h.api.lists(), 1)
}

func TestFileList_PersistedToLocalDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := storage.InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fa := &fakeAPI{listFn: staticList(models.SharedFile{ID: "1", FileName: "a.txt"})}
	svc := NewSessionService(SessionDeps{
		Client:   fa,
		Channels: (&channelPool{}).factory,
		Identity: identity.NewMemoryStore(),
		DB:       db,
	})

	_, err = svc.Join(ctx, "ZZZZ9999", "bob")
	require.NoError(t, err)

	cached, err := files.NewSQLiteRepository(db).List(ctx, "ZZZZ9999")
	require.NoError(t, err)
	assert.Equal(t, []models.SharedFile{{ID: "1", FileName: "a.txt"}}, cached)

	// Rejoining while the server cannot list files shows the cached list.
	svc.Leave(ctx)
	fa.setList(func(int, string) ([]models.SharedFile, error) { return nil, api.ErrUnavailable })
	_, err = svc.Join(ctx, "ZZZZ9999", "bob")
	require.NoError(t, err)
	assert.Equal(t, cached, svc.Files())

	require.NoError(t, svc.Logout(ctx))
	cached, err = files.NewSQLiteRepository(db).List(ctx, "ZZZZ9999")
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Login(context.Background(), "")
	require.ErrorIs(t, err, ErrValidation)

	id, err := h.svc.Login(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.NotEmpty(t, id.ID)

	loaded, err := h.svc.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, loaded)

	require.NoError(t, h.svc.Logout(context.Background()))
	_, err = h.svc.Identity(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}

package services

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/dmitrijs2005/passshare/internal/client/models"
	"github.com/dmitrijs2005/passshare/internal/client/realtime"
)

type createCall struct{ passkey, username string }

// fakeAPI records calls and replays canned responses.
type fakeAPI struct {
	mu sync.Mutex

	createErrs []error
	creates    []createCall
	joinErr    error
	joins      []createCall

	// listFn serves ListFiles; n counts calls starting at 1.
	listFn    func(n int, passkey string) ([]models.SharedFile, error)
	listCalls int

	uploadErr error
	uploads   []string
	uploaded  []byte

	downloadBody io.Reader
	downloadErr  error
	downloads    int
}

func (f *fakeAPI) CreateSession(_ context.Context, passkey, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, createCall{passkey, username})
	if len(f.createErrs) == 0 {
		return nil
	}
	err := f.createErrs[0]
	if len(f.createErrs) > 1 {
		f.createErrs = f.createErrs[1:]
	}
	return err
}

func (f *fakeAPI) JoinSession(_ context.Context, passkey, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, createCall{passkey, username})
	return f.joinErr
}

func (f *fakeAPI) ListFiles(_ context.Context, passkey string) ([]models.SharedFile, error) {
	f.mu.Lock()
	f.listCalls++
	n, fn := f.listCalls, f.listFn
	f.mu.Unlock()

	if fn == nil {
		return []models.SharedFile{}, nil
	}
	return fn(n, passkey)
}

func (f *fakeAPI) Upload(_ context.Context, passkey, userID, fileName string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, strings.Join([]string{passkey, userID, fileName}, "/"))
	f.uploaded = data
	return f.uploadErr
}

func (f *fakeAPI) Download(context.Context, string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return io.NopCloser(f.downloadBody), nil
}

func (f *fakeAPI) Ping(context.Context) error { return nil }

func (f *fakeAPI) setList(fn func(n int, passkey string) ([]models.SharedFile, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFn = fn
	f.listCalls = 0
}

func (f *fakeAPI) lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeAPI) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.joins) + f.listCalls + len(f.uploads) + f.downloads
}

func staticList(list ...models.SharedFile) func(int, string) ([]models.SharedFile, error) {
	return func(int, string) ([]models.SharedFile, error) { return list, nil }
}

// fakeChannel stands in for the realtime channel; fire simulates a change
// notification.
type fakeChannel struct {
	mu          sync.Mutex
	connectErr  error
	passkey     string
	notify      func()
	connects    int
	disconnects int
	state       realtime.State
	listeners   []func(realtime.State)
}

func (c *fakeChannel) Connect(_ context.Context, passkey string, onNotify func()) error {
	c.mu.Lock()
	c.connects++
	if c.connectErr != nil {
		c.mu.Unlock()
		return c.connectErr
	}
	c.passkey = passkey
	c.notify = onNotify
	c.mu.Unlock()
	c.emit(realtime.StateSubscribed)
	return nil
}

func (c *fakeChannel) Disconnect() {
	c.mu.Lock()
	if c.state == realtime.StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.disconnects++
	c.mu.Unlock()
	c.emit(realtime.StateDisconnected)
}

func (c *fakeChannel) State() realtime.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) OnStateChange(fn func(realtime.State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *fakeChannel) emit(s realtime.State) {
	c.mu.Lock()
	c.state = s
	listeners := append([]func(realtime.State){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

func (c *fakeChannel) fire() {
	c.mu.Lock()
	fn := c.notify
	c.mu.Unlock()
	fn()
}

type channelPool struct {
	mu       sync.Mutex
	template fakeChannel
	made     []*fakeChannel
}

func (p *channelPool) factory() Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := &fakeChannel{connectErr: p.template.connectErr}
	p.made = append(p.made, ch)
	return ch
}

func (p *channelPool) last() *fakeChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.made) == 0 {
		return nil
	}
	return p.made[len(p.made)-1]
}

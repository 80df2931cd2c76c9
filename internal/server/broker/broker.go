// Package broker is a minimal STOMP 1.2 broker over websockets. Clients
// subscribe to session topics; every event from the notify hub becomes a
// MESSAGE on the matching topic. Nothing is ever published by clients.
package broker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/passshare/internal/common"
	"github.com/dmitrijs2005/passshare/internal/logging"
	"github.com/dmitrijs2005/passshare/internal/server/notify"
	"github.com/dmitrijs2005/passshare/internal/stompws"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait = 10 * time.Second
	defaultPongWait  = 60 * time.Second
	maxMessageSize   = 64 << 10
	sendBuffer       = 256
)

// ChangedBody is the payload of every MESSAGE the broker sends.
var ChangedBody = []byte(`{"type":"files-changed"}`)

type Options struct {
	Logger     logging.Logger
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration // defaults to 9/10 of PongWait
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(*http.Request) bool
}

type Broker struct {
	hub      notify.Hub
	log      logging.Logger
	upgrader websocket.Upgrader

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}

	ready     chan struct{} // closed once Run listens to the hub
	readyOnce sync.Once
}

func New(hub notify.Hub, opts Options) *Broker {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}

	return &Broker{
		hub: hub,
		log: opts.Logger.With("module", "broker"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		writeWait:  opts.WriteWait,
		pongWait:   opts.PongWait,
		pingPeriod: opts.PingPeriod,
		clients:    make(map[*client]struct{}),
		ready:      make(chan struct{}),
	}
}

// Run forwards hub events to subscribers until ctx ends, then closes every
// connection.
func (b *Broker) Run(ctx context.Context) {
	events, cancel := b.hub.Subscribe(ctx)
	defer cancel()
	defer b.closeAll()
	b.readyOnce.Do(func() { close(b.ready) })

	for {
		select {
		case <-ctx.Done():
			return
		case passkey, ok := <-events:
			if !ok {
				return
			}
			b.deliver(passkey)
		}
	}
}

// ServeHTTP upgrades the request and serves one STOMP connection.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := newClient(b, ws)
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	b.log.Debug(r.Context(), "client connected", "remote", ws.RemoteAddr().String())

	go c.writePump()
	go c.readPump()
}

// Subscribers counts live subscriptions to the topic of passkey.
func (b *Broker) Subscribers(passkey string) int {
	dest := common.Topic(passkey)
	n := 0
	for _, c := range b.snapshot() {
		n += len(c.subscriptionsTo(dest))
	}
	return n
}

func (b *Broker) deliver(passkey string) {
	dest := common.Topic(passkey)
	n := 0
	for _, c := range b.snapshot() {
		for _, id := range c.subscriptionsTo(dest) {
			f := frame.New(frame.MESSAGE,
				stompws.HdrDestination, dest,
				stompws.HdrSubscription, id,
				stompws.HdrMessageID, uuid.NewString(),
				stompws.HdrContentType, "application/json")
			f.Body = ChangedBody
			if c.enqueue(f) {
				n++
			}
		}
	}
	b.log.Debug(context.Background(), "event delivered", "passkey", passkey, "subscriptions", n)
}

func (b *Broker) snapshot() []*client {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		out = append(out, c)
	}
	return out
}

func (b *Broker) unregister(c *client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
}

func (b *Broker) closeAll() {
	for _, c := range b.snapshot() {
		c.close()
	}
}

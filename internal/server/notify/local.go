package notify

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/passshare/internal/logging"
)

// LocalHub delivers events within the process.
type LocalHub struct {
	mu     sync.Mutex
	subs   map[int]chan string
	nextID int
	log    logging.Logger
}

func NewLocalHub(log logging.Logger) *LocalHub {
	if log == nil {
		log = logging.Nop()
	}
	return &LocalHub{subs: make(map[int]chan string), log: log}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (h *LocalHub) Publish(ctx context.Context, passkey string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- passkey:
		default:
			h.log.Warn(ctx, "subscriber lagging, event dropped", "subscriber", id, "passkey", passkey)
		}
	}
	return nil
}

func (h *LocalHub) Subscribe(ctx context.Context) (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}

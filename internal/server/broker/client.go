package broker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/passshare/internal/common"
	"github.com/dmitrijs2005/passshare/internal/stompws"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

// client is one websocket connection and its STOMP subscriptions.
type client struct {
	b    *Broker
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mu        sync.Mutex
	connected bool
	subs      map[string]string // subscription id -> destination

	closeOnce sync.Once
}

func newClient(b *Broker, ws *websocket.Conn) *client {
	return &client{
		b:    b,
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		subs: make(map[string]string),
	}
}

// close ends the connection after queued frames are flushed.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.b.unregister(c)
	})
}

// enqueue reports false when the frame was not queued. A client whose buffer
// is full is disconnected.
func (c *client) enqueue(f *frame.Frame) bool {
	data, err := stompws.Encode(f)
	if err != nil {
		c.b.log.Error(context.Background(), "encode frame", "command", f.Command, "error", err)
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		c.b.log.Warn(context.Background(), "client lagging, disconnecting")
		c.close()
		return false
	}
}

func (c *client) subscriptionsTo(dest string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	for id, d := range c.subs {
		if d == dest {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *client) readPump() {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.b.pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.b.pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.b.log.Debug(context.Background(), "read failed", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.b.pongWait))

		f, err := stompws.Decode(data)
		if err != nil {
			c.fail("malformed frame", err.Error())
			return
		}
		if f == nil {
			continue
		}
		if !c.handle(f) {
			return
		}
	}
}

// handle applies one client frame; false ends the connection.
func (c *client) handle(f *frame.Frame) bool {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()

	switch f.Command {
	case frame.CONNECT, frame.STOMP:
		if connected {
			c.fail("already connected", "")
			return false
		}
		if v := f.Header.Get(stompws.HdrAcceptVersion); v != "" && !acceptsVersion(v) {
			c.fail("unsupported protocol version", "supported versions: "+stompws.Version)
			return false
		}
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		c.enqueue(frame.New(frame.CONNECTED,
			stompws.HdrVersion, stompws.Version,
			stompws.HdrHeartBeat, "0,0",
			"server", "passshare"))
		return true
	}

	if !connected {
		c.fail("not connected", "send CONNECT first")
		return false
	}

	switch f.Command {
	case frame.SUBSCRIBE:
		id, dest := f.Header.Get(stompws.HdrID), f.Header.Get(stompws.HdrDestination)
		if id == "" || dest == "" {
			c.fail("missing id or destination", "")
			return false
		}
		if _, ok := common.PasskeyFromTopic(dest); !ok {
			c.fail("unknown destination", dest)
			return false
		}
		c.mu.Lock()
		c.subs[id] = dest
		c.mu.Unlock()

	case frame.UNSUBSCRIBE:
		c.mu.Lock()
		delete(c.subs, f.Header.Get(stompws.HdrID))
		c.mu.Unlock()

	case frame.DISCONNECT:
		c.receipt(f)
		return false

	default:
		c.fail("unsupported command", f.Command)
		return false
	}

	c.receipt(f)
	return true
}

func (c *client) receipt(f *frame.Frame) {
	if id := f.Header.Get(stompws.HdrReceipt); id != "" {
		c.enqueue(frame.New(frame.RECEIPT, stompws.HdrReceiptID, id))
	}
}

func (c *client) fail(message, detail string) {
	f := frame.New(frame.ERROR, stompws.HdrMessage, message)
	if detail != "" {
		f.Body = []byte(detail)
	}
	c.enqueue(f)
}

func acceptsVersion(header string) bool {
	for _, v := range strings.Split(header, ",") {
		if strings.TrimSpace(v) == stompws.Version {
			return true
		}
	}
	return false
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.b.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.b.writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.b.writeWait))
			return
		}
	}
}

func (c *client) write(data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.b.writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *client) flush() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

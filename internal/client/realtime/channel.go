package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/passshare/internal/common"
	"github.com/dmitrijs2005/passshare/internal/logging"
	"github.com/dmitrijs2005/passshare/internal/stompws"
)

var (
	ErrClosed         = errors.New("channel is disconnected")
	ErrAlreadyStarted = errors.New("channel already connected")
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultHandshakeWait  = 10 * time.Second
	defaultReconnectBase  = 500 * time.Millisecond
	defaultReconnectMax   = 15 * time.Second
	defaultReconnectTries = 8

	maxFrameSize = 64 * 1024
)

// Options configure a Channel. Zero values fall back to sensible defaults;
// URL is required.
type Options struct {
	URL    string
	Header http.Header
	// Host is sent in the CONNECT frame.
	Host string

	Dialer *websocket.Dialer
	Logger logging.Logger

	WriteWait     time.Duration
	PongWait      time.Duration
	PingPeriod    time.Duration
	HandshakeWait time.Duration

	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	ReconnectAttempts  uint64
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = "/"
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.HandshakeWait <= 0 {
		o.HandshakeWait = defaultHandshakeWait
	}
	if o.ReconnectBaseDelay <= 0 {
		o.ReconnectBaseDelay = defaultReconnectBase
	}
	if o.ReconnectMaxDelay < o.ReconnectBaseDelay {
		o.ReconnectMaxDelay = max(defaultReconnectMax, o.ReconnectBaseDelay)
	}
	if o.ReconnectAttempts == 0 {
		o.ReconnectAttempts = defaultReconnectTries
	}
	return o
}

// Channel is the realtime subscription of one session. A Channel is used for
// a single session: once disconnected it cannot be reused.
type Channel struct {
	opts Options
	log  logging.Logger

	mu        sync.Mutex
	state     State
	topic     string
	onNotify  func()
	listeners []func(State)
	conn      *stompConn
	cancel    context.CancelFunc
	done      chan struct{}
	signals   chan struct{}
}

func New(opts Options) *Channel {
	opts = opts.withDefaults()
	return &Channel{
		opts:  opts,
		log:   opts.Logger.With("component", "realtime"),
		state: StateIdle,
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers fn to be called after every state transition.
// fn runs on the goroutine causing the transition and must not block.
func (c *Channel) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Connect subscribes to the topic of passkey and calls onNotify for every
// change notification received on it. A failed first attempt returns the
// error and leaves the channel Idle.
func (c *Channel) Connect(ctx context.Context, passkey string, onNotify func()) error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected:
		c.mu.Unlock()
		return ErrClosed
	case StateConnecting, StateSubscribed, StateReconnecting:
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	openCtx, cancelOpen := context.WithCancel(ctx)
	defer cancelOpen()
	c.topic = common.Topic(passkey)
	c.onNotify = onNotify
	c.cancel = cancelOpen
	c.mu.Unlock()

	if !c.setState(StateConnecting) {
		return ErrClosed
	}

	conn, err := c.open(openCtx)
	if err != nil {
		c.setState(StateIdle)
		return fmt.Errorf("connect realtime channel: %w", err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect won the race.
		c.mu.Unlock()
		conn.close()
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = cancel
	c.done = make(chan struct{})
	c.signals = make(chan struct{}, 1)
	done, signals := c.done, c.signals
	c.mu.Unlock()

	c.setState(StateSubscribed)
	c.log.Info(ctx, "subscribed", "topic", c.topic)

	go c.dispatch(runCtx, signals)
	go c.run(runCtx, cancel, conn, done)
	return nil
}

// Disconnect unsubscribes, closes the socket and stops reconnecting. It is
// safe to call more than once and from any goroutine.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	conn, cancel, done := c.conn, c.cancel, c.done
	c.conn = nil
	c.mu.Unlock()

	c.forceState(StateDisconnected)

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.shutdown()
	}
	if done != nil {
		<-done
	}
	c.log.Info(context.Background(), "disconnected", "topic", c.topic)
}

// setState moves to s unless the channel is already Disconnected.
func (c *Channel) setState(s State) bool {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return false
	}
	changed := c.state != s
	c.state = s
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(s)
		}
	}
	return true
}

func (c *Channel) forceState(s State) {
	c.mu.Lock()
	c.state = s
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// signal queues a notification. Notifications arriving while one is
// already queued collapse into it.
func (c *Channel) signal() {
	c.mu.Lock()
	signals := c.signals
	c.mu.Unlock()

	select {
	case signals <- struct{}{}:
	default:
	}
}

func (c *Channel) dispatch(ctx context.Context, signals <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			if fn := c.notifyFn(); fn != nil {
				fn()
			}
		}
	}
}

func (c *Channel) notifyFn() func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onNotify
}

func (c *Channel) run(ctx context.Context, cancel context.CancelFunc, conn *stompConn, done chan struct{}) {
	defer close(done)
	defer cancel()

	for {
		err := c.readLoop(ctx, conn)
		conn.close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn(ctx, "realtime connection lost", "topic", c.topic, "err", err)

		if !c.setState(StateReconnecting) {
			return
		}

		next, err := c.reconnect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.log.Error(ctx, "giving up on realtime channel", "topic", c.topic, "err", err)
				c.setState(StateDegraded)
			}
			return
		}

		c.mu.Lock()
		if c.state == StateDisconnected {
			c.mu.Unlock()
			next.close()
			return
		}
		c.conn = next
		c.mu.Unlock()
		conn = next

		c.setState(StateSubscribed)
		c.log.Info(ctx, "resubscribed", "topic", c.topic)
		// Anything published while offline was missed.
		c.signal()
	}
}

func (c *Channel) reconnect(ctx context.Context) (*stompConn, error) {
	b := retry.NewExponential(c.opts.ReconnectBaseDelay)
	b = retry.WithCappedDuration(c.opts.ReconnectMaxDelay, b)
	b = retry.WithMaxRetries(c.opts.ReconnectAttempts-1, b)

	var conn *stompConn
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		next, err := c.open(ctx)
		if err != nil {
			c.log.Debug(ctx, "reconnect attempt failed", "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		conn = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// open dials, performs the STOMP handshake and subscribes to the topic.
func (c *Channel) open(ctx context.Context) (*stompConn, error) {
	ws, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	conn := &stompConn{ws: ws, writeWait: c.opts.WriteWait}
	ok := false
	defer func() {
		if !ok {
			conn.close()
		}
	}()
	// Disconnect cancels ctx; closing the socket unblocks the handshake reads.
	stopWatch := context.AfterFunc(ctx, conn.close)
	defer stopWatch()

	if err := conn.write(connectFrame(c.opts.Host)); err != nil {
		return nil, fmt.Errorf("send CONNECT: %w", err)
	}

	if err := ws.SetReadDeadline(time.Now().Add(c.opts.HandshakeWait)); err != nil {
		return nil, err
	}
	f, err := conn.nextFrame()
	if err != nil {
		return nil, fmt.Errorf("await CONNECTED: %w", err)
	}
	switch f.Command {
	case frame.CONNECTED:
	case frame.ERROR:
		return nil, fmt.Errorf("broker rejected connection: %s", f.Header.Get(stompws.HdrMessage))
	default:
		return nil, fmt.Errorf("unexpected %s frame during handshake", f.Command)
	}

	conn.subID = uuid.NewString()
	c.mu.Lock()
	topic := c.topic
	c.mu.Unlock()
	receipt := "sub-" + conn.subID
	if err := conn.write(subscribeFrame(conn.subID, topic, receipt)); err != nil {
		return nil, fmt.Errorf("send SUBSCRIBE: %w", err)
	}
	if err := c.awaitReceipt(conn, receipt); err != nil {
		return nil, err
	}

	if !stopWatch() {
		return nil, ctx.Err()
	}
	ok = true
	return conn, nil
}

// awaitReceipt reads until the broker confirms the subscription. A MESSAGE
// racing the receipt is dropped; callers fetch the list once subscribed.
func (c *Channel) awaitReceipt(conn *stompConn, receipt string) error {
	for {
		f, err := conn.nextFrame()
		if err != nil {
			return fmt.Errorf("await RECEIPT: %w", err)
		}
		switch f.Command {
		case frame.RECEIPT:
			if f.Header.Get(stompws.HdrReceiptID) == receipt {
				return nil
			}
		case frame.ERROR:
			return fmt.Errorf("broker rejected subscription: %s", f.Header.Get(stompws.HdrMessage))
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *stompConn) error {
	ws := conn.ws
	ws.SetReadLimit(maxFrameSize)
	extend := func() error { return ws.SetReadDeadline(time.Now().Add(c.opts.PongWait)) }
	if err := extend(); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error { return extend() })

	stop := make(chan struct{})
	defer close(stop)
	go conn.pingLoop(c.opts.PingPeriod, stop, func(err error) {
		c.log.Debug(ctx, "ping failed", "err", err)
	})

	for {
		f, err := conn.readFrame()
		if err != nil {
			return err
		}
		_ = extend()
		if f == nil {
			continue
		}

		switch f.Command {
		case frame.MESSAGE:
			dest := f.Header.Get(stompws.HdrDestination)
			if dest != c.topic {
				c.log.Debug(ctx, "ignoring message for other destination", "destination", dest)
				continue
			}
			c.signal()
		case frame.ERROR:
			return fmt.Errorf("broker error: %s", f.Header.Get(stompws.HdrMessage))
		case frame.RECEIPT:
		default:
			c.log.Debug(ctx, "ignoring frame", "command", f.Command)
		}
	}
}

// stompConn is one websocket carrying STOMP frames. gorilla/websocket allows
// one concurrent writer, so writes go through mu.
type stompConn struct {
	ws        *websocket.Conn
	writeWait time.Duration
	subID     string

	mu        sync.Mutex
	closeOnce sync.Once
}

func (s *stompConn) write(f *frame.Frame) error {
	data, err := stompws.Encode(f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

// readFrame returns the next frame, or nil for a heart-beat.
func (s *stompConn) readFrame() (*frame.Frame, error) {
	for {
		typ, data, err := s.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		return stompws.Decode(data)
	}
}

// nextFrame skips heart-beats.
func (s *stompConn) nextFrame() (*frame.Frame, error) {
	for {
		f, err := s.readFrame()
		if err != nil || f != nil {
			return f, err
		}
	}
}

func (s *stompConn) pingLoop(period time.Duration, stop <-chan struct{}, onErr func(error)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait)); err != nil {
				onErr(err)
				return
			}
		}
	}
}

// shutdown politely leaves the broker before closing.
func (s *stompConn) shutdown() {
	if s.subID != "" {
		_ = s.write(unsubscribeFrame(s.subID))
	}
	_ = s.write(disconnectFrame())
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(s.writeWait))
	s.close()
}

func (s *stompConn) close() {
	s.closeOnce.Do(func() { _ = s.ws.Close() })
}

package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AbdoElsaed/ufd/internal/domain"
)

// ConnectionState is the channel lifecycle state. It is owned exclusively by
// the ConnectionManager; other code only observes it.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// MessageListener receives inbound channel messages.
type MessageListener func(msg domain.ChannelMessage)

// DisconnectListener is notified when the channel is lost. The error is
// ErrMaxReconnects once automatic reconnection has given up.
type DisconnectListener func(err error)

type connectAttempt struct {
	done chan struct{}
	err  error
}

// ConnectionManager maintains the channel between a transient UI context and
// the persistent background context. It opens a uniquely named WebSocket,
// performs the init/connected handshake, and reconnects with exponential
// backoff when the channel drops. After the retry cap is exhausted the state
// is terminal Disconnected and only an explicit Connect starts a new cycle.
type ConnectionManager struct {
	serverURL string
	cfg       domain.ConnectionConfig
	scheduler *RetryScheduler
	logger    *zap.Logger

	mu          sync.Mutex
	state       ConnectionState
	conn        *websocket.Conn
	pending     *connectAttempt
	attempts    int
	manualClose bool
	retryArmed  bool
	cancelRetry func()
	ackCh       chan domain.ConnectedStatus
	apiBaseURL  string

	listenerSeq   int
	listeners     map[domain.MessageKind]map[int]MessageListener
	wildcard      map[int]MessageListener
	onDisconnect  map[int]DisconnectListener

	writeMu sync.Mutex
}

// NewConnectionManager creates a connection manager targeting the background
// daemon's channel endpoint, e.g. "ws://localhost:8750/ws".
func NewConnectionManager(serverURL string, cfg domain.ConnectionConfig, logger *zap.Logger) *ConnectionManager {
	return &ConnectionManager{
		serverURL:    serverURL,
		cfg:          cfg,
		scheduler:    NewRetryScheduler(cfg.ReconnectDelay, cfg.MaxReconnectAttempts),
		logger:       logger,
		state:        StateDisconnected,
		listeners:    make(map[domain.MessageKind]map[int]MessageListener),
		wildcard:     make(map[int]MessageListener),
		onDisconnect: make(map[int]DisconnectListener),
	}
}

// State returns the current connection state.
func (c *ConnectionManager) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// APIBaseURL returns the backend base URL reported in the connected
// acknowledgment, or "" before the first successful handshake.
func (c *ConnectionManager) APIBaseURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiBaseURL
}

// Connect opens the channel. It is idempotent: when already connected it
// returns immediately, and when an attempt is in flight it joins that attempt
// instead of opening a second channel. A manual Connect from the terminal
// Disconnected state starts a fresh retry cycle.
func (c *ConnectionManager) Connect() error {
	c.mu.Lock()
	if c.state == StateConnected && c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	if c.pending != nil {
		p := c.pending
		c.mu.Unlock()
		<-p.done
		return p.err
	}
	if c.state == StateDisconnected {
		c.attempts = 0
		c.manualClose = false
	}
	p := &connectAttempt{done: make(chan struct{})}
	c.pending = p
	c.state = StateConnecting
	c.mu.Unlock()

	err := c.dial()

	c.mu.Lock()
	p.err = err
	c.pending = nil
	c.mu.Unlock()
	close(p.done)

	if err != nil {
		c.logger.Warn("Connection attempt failed", zap.Error(err))
		c.scheduleReconnect()
	}
	return err
}

// dial opens a uniquely named channel, sends init, and waits for the
// connected acknowledgment within the configured timeout.
func (c *ConnectionManager) dial() error {
	name := fmt.Sprintf("ufd_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	url := c.serverURL + "?name=" + name

	c.logger.Debug("Opening channel", zap.String("name", name))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	ack := make(chan domain.ConnectedStatus, 1)
	c.mu.Lock()
	c.conn = conn
	c.ackCh = ack
	c.mu.Unlock()

	go c.readPump(conn)

	init, _ := domain.NewMessage(domain.KindInit, nil)
	if err := c.write(conn, init); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send init: %w", err)
	}

	select {
	case status := <-ack:
		c.mu.Lock()
		if c.conn != conn {
			// the read pump already tore this connection down
			c.mu.Unlock()
			return fmt.Errorf("channel closed during handshake")
		}
		c.state = StateConnected
		c.attempts = 0
		c.apiBaseURL = status.APIBaseURL
		c.mu.Unlock()
		c.logger.Info("Channel connected",
			zap.String("name", name),
			zap.String("api_url", status.APIBaseURL),
			zap.Bool("cookie_api", status.CookieAPIAvailable))
		return nil
	case <-time.After(c.cfg.ConnectTimeout):
		conn.Close()
		return domain.ErrConnectTimeout
	}
}

// readPump dispatches inbound messages until the connection breaks. Messages
// on one channel are delivered to listeners in receive order.
func (c *ConnectionManager) readPump(conn *websocket.Conn) {
	for {
		var msg domain.ChannelMessage
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		if msg.Kind == domain.KindConnected {
			var status domain.ConnectedStatus
			if err := msg.Decode(&status); err == nil {
				c.mu.Lock()
				ack := c.ackCh
				c.mu.Unlock()
				if ack != nil {
					select {
					case ack <- status:
					default:
					}
				}
			}
		}

		c.dispatch(msg)
	}
}

func (c *ConnectionManager) dispatch(msg domain.ChannelMessage) {
	c.mu.Lock()
	targets := make([]MessageListener, 0, len(c.wildcard)+len(c.listeners[msg.Kind]))
	for _, l := range c.wildcard {
		targets = append(targets, l)
	}
	for _, l := range c.listeners[msg.Kind] {
		targets = append(targets, l)
	}
	c.mu.Unlock()

	for _, l := range targets {
		l(msg)
	}
}

// handleDisconnect reacts to a broken read loop. Stale pumps of an already
// replaced connection are ignored.
func (c *ConnectionManager) handleDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	manual := c.manualClose
	c.state = StateDisconnected
	c.mu.Unlock()

	if manual {
		return
	}

	c.logger.Warn("Channel lost", zap.Error(err))
	c.notifyDisconnect(err)
	c.scheduleReconnect()
}

// scheduleReconnect arms the retry scheduler for the next attempt, or
// transitions to terminal Disconnected when the cap is reached.
func (c *ConnectionManager) scheduleReconnect() {
	c.mu.Lock()
	// A connect failure and the broken read pump both land here; only one
	// retry cycle may be armed at a time.
	if c.retryArmed || c.manualClose || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.attempts++
	if c.scheduler.Exhausted(c.attempts) {
		c.state = StateDisconnected
		c.attempts = c.scheduler.MaxAttempts()
		c.mu.Unlock()
		c.logger.Error("Max reconnection attempts reached",
			zap.Int("max_attempts", c.scheduler.MaxAttempts()))
		c.notifyDisconnect(domain.ErrMaxReconnects)
		return
	}

	attempt := c.attempts
	c.state = StateReconnecting
	c.retryArmed = true
	wait, stop := c.scheduler.Schedule(attempt)
	abort := make(chan struct{})
	var once sync.Once
	c.cancelRetry = func() {
		stop()
		once.Do(func() { close(abort) })
	}
	c.mu.Unlock()

	c.logger.Debug("Scheduling reconnection",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", c.scheduler.MaxAttempts()),
		zap.Duration("delay", c.scheduler.Delay(attempt)))

	go func() {
		select {
		case <-wait:
			c.mu.Lock()
			c.retryArmed = false
			c.mu.Unlock()
			if c.State() != StateConnected {
				c.reconnect()
			}
		case <-abort:
			c.mu.Lock()
			c.retryArmed = false
			c.mu.Unlock()
		}
	}()
}

// reconnect is the timer-driven counterpart of Connect: it never resets the
// attempt counter, so the backoff cap applies across the whole cycle.
func (c *ConnectionManager) reconnect() {
	c.mu.Lock()
	if c.pending != nil || c.state == StateConnected || c.manualClose {
		c.mu.Unlock()
		return
	}
	p := &connectAttempt{done: make(chan struct{})}
	c.pending = p
	c.state = StateConnecting
	c.mu.Unlock()

	err := c.dial()

	c.mu.Lock()
	p.err = err
	c.pending = nil
	c.mu.Unlock()
	close(p.done)

	if err != nil {
		c.logger.Warn("Reconnection failed", zap.Error(err))
		c.scheduleReconnect()
	}
}

// Disconnect closes the channel on user request and suppresses automatic
// reconnection. A later Connect starts a fresh cycle.
func (c *ConnectionManager) Disconnect() {
	c.mu.Lock()
	c.manualClose = true
	c.attempts = c.scheduler.MaxAttempts()
	cancel := c.cancelRetry
	c.cancelRetry = nil
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
}

// Send delivers a message to the background context, connecting first if
// needed.
func (c *ConnectionManager) Send(msg domain.ChannelMessage) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		if err := c.Connect(); err != nil {
			return err
		}
		c.mu.Lock()
		conn = c.conn
		c.mu.Unlock()
		if conn == nil {
			return domain.ErrNotConnected
		}
	}

	return c.write(conn, msg)
}

func (c *ConnectionManager) write(conn *websocket.Conn, msg domain.ChannelMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// On registers a listener for one message kind and returns its removal
// function. Registration works whether or not the channel is open.
func (c *ConnectionManager) On(kind domain.MessageKind, l MessageListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listenerSeq++
	id := c.listenerSeq
	if c.listeners[kind] == nil {
		c.listeners[kind] = make(map[int]MessageListener)
	}
	c.listeners[kind][id] = l
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[kind], id)
	}
}

// OnAny registers a wildcard listener that receives every inbound message.
func (c *ConnectionManager) OnAny(l MessageListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listenerSeq++
	id := c.listenerSeq
	c.wildcard[id] = l
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.wildcard, id)
	}
}

// OnDisconnect registers a listener for channel loss.
func (c *ConnectionManager) OnDisconnect(l DisconnectListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listenerSeq++
	id := c.listenerSeq
	c.onDisconnect[id] = l
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.onDisconnect, id)
	}
}

func (c *ConnectionManager) notifyDisconnect(err error) {
	c.mu.Lock()
	targets := make([]DisconnectListener, 0, len(c.onDisconnect))
	for _, l := range c.onDisconnect {
		targets = append(targets, l)
	}
	c.mu.Unlock()

	for _, l := range targets {
		l(err)
	}
}

// Request sends a message and waits for the first reply of the given kind, an
// error message, or context cancellation.
func (c *ConnectionManager) Request(ctx context.Context, msg domain.ChannelMessage, replyKind domain.MessageKind) (domain.ChannelMessage, error) {
	reply := make(chan domain.ChannelMessage, 1)
	offer := func(m domain.ChannelMessage) {
		select {
		case reply <- m:
		default:
		}
	}
	removeReply := c.On(replyKind, offer)
	defer removeReply()
	removeErr := c.On(domain.KindError, offer)
	defer removeErr()

	if err := c.Send(msg); err != nil {
		return domain.ChannelMessage{}, err
	}

	select {
	case m := <-reply:
		if m.Kind == domain.KindError {
			var p domain.ErrorPayload
			if err := m.Decode(&p); err != nil {
				return domain.ChannelMessage{}, err
			}
			return domain.ChannelMessage{}, fmt.Errorf("%s", p.Error)
		}
		return m, nil
	case <-ctx.Done():
		return domain.ChannelMessage{}, ctx.Err()
	}
}

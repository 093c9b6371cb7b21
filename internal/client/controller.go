// Package client implements the session controller that a consuming
// frontend runs against the realtime endpoint: it owns one connection,
// re-registers after every reconnect, heartbeats while open, and backs
// off exponentially when the connection drops.
package client

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/rojikaru/article-ajax/internal/domain"
	"github.com/rojikaru/article-ajax/internal/realtime"
)

// State is the connection lifecycle state of the controller.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateConnected      State = "connected"
	StateConnectionLost State = "connection_lost" // retry budget exhausted, manual Retry required
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultBackoffBase       = 1 * time.Second
	defaultBackoffCap        = 30 * time.Second
	defaultMaxRetries        = 5
	sendDeadline             = 5 * time.Second
)

type Config struct {
	URL               string
	HeartbeatInterval time.Duration
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	MaxRetries        int
}

func (c *Config) withDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = defaultBackoffCap
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
}

// Handlers are the event callbacks invoked from the read loop. All are
// optional.
type Handlers struct {
	OnRegistered            func(clientID uuid.UUID)
	OnEditingStatus         func(realtime.EditingStatusPayload)
	OnArticleUpdate         func(realtime.ArticleUpdatePayload)
	OnModeratorNotification func(realtime.ModeratorNotificationPayload)
	OnStateChange           func(State)
}

// Controller owns one client-side realtime connection.
type Controller struct {
	cfg      Config
	handlers Handlers
	clock    clockwork.Clock
	dialer   *websocket.Dialer

	mu       sync.Mutex
	state    State
	identity *domain.Identity
	clientID uuid.UUID
	editing  int // article currently being edited, 0 for none
	conn     *websocket.Conn
	lastPong time.Time
	running  bool

	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

func New(cfg Config, handlers Handlers, clock clockwork.Clock) *Controller {
	cfg.withDefaults()
	return &Controller{
		cfg:      cfg,
		handlers: handlers,
		clock:    clock,
		dialer:   websocket.DefaultDialer,
		state:    StateDisconnected,
		closed:   make(chan struct{}),
	}
}

// SetIdentity records the authenticated identity. While connected, the
// connection is re-registered immediately so the server rebinds it.
func (c *Controller) SetIdentity(identity *domain.Identity) {
	c.mu.Lock()
	c.identity = identity
	connected := c.conn != nil
	c.mu.Unlock()

	if connected {
		c.sendRegister()
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ClientID returns the server-assigned identifier, zero until registered.
func (c *Controller) ClientID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// LastPong returns when the last heartbeat reply arrived.
func (c *Controller) LastPong() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPong
}

// Connect starts the connection loop. A second call while the loop runs
// is a no-op.
func (c *Controller) Connect() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.loop()
}

// Retry restarts the loop after the retry budget was exhausted.
func (c *Controller) Retry() {
	if c.State() != StateConnectionLost {
		return
	}
	c.Connect()
}

// Close stops the controller for good.
func (c *Controller) Close() {
	c.once.Do(func() { close(c.closed) })

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// StartEditing declares the local editing intent for an article. The
// controller holds at most one: starting on a new article first emits a
// stop for the previous one.
func (c *Controller) StartEditing(articleID int) {
	c.mu.Lock()
	previous := c.editing
	c.editing = articleID
	clientID := c.clientID
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected || clientID == uuid.Nil {
		return
	}
	if previous != 0 && previous != articleID {
		c.send(realtime.TypeStopEditing, realtime.EditingPayload{ClientID: clientID, ArticleID: previous})
	}
	c.send(realtime.TypeStartEditing, realtime.EditingPayload{ClientID: clientID, ArticleID: articleID})
}

// StopEditing withdraws the editing intent, if any. Callers invoke this
// when the user navigates away from the edit view.
func (c *Controller) StopEditing() {
	c.mu.Lock()
	articleID := c.editing
	c.editing = 0
	clientID := c.clientID
	connected := c.conn != nil
	c.mu.Unlock()

	if articleID == 0 || !connected || clientID == uuid.Nil {
		return
	}
	c.send(realtime.TypeStopEditing, realtime.EditingPayload{ClientID: clientID, ArticleID: articleID})
}

// VisibilityLost stops editing as a conservative presence policy when
// the view is backgrounded.
func (c *Controller) VisibilityLost() {
	c.StopEditing()
}

// --- Connection loop ---

func (c *Controller) loop() {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	attempt := 0
	backoff := c.cfg.BackoffBase

	for {
		select {
		case <-c.closed:
			c.setState(StateDisconnected)
			return
		default:
		}

		c.setState(StateConnecting)
		conn, resp, err := c.dialer.Dial(c.cfg.URL, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			attempt++
			if attempt >= c.cfg.MaxRetries {
				slog.Warn("Retry budget exhausted, giving up", "attempts", attempt)
				c.setState(StateConnectionLost)
				return
			}
			slog.Info("Dial failed, backing off", "attempt", attempt, "backoff", backoff, "error", err)
			timer := c.clock.NewTimer(backoff)
			select {
			case <-timer.Chan():
			case <-c.closed:
				timer.Stop()
				c.setState(StateDisconnected)
				return
			}
			backoff *= 2
			if backoff > c.cfg.BackoffCap {
				backoff = c.cfg.BackoffCap
			}
			continue
		}

		attempt = 0
		backoff = c.cfg.BackoffBase

		c.runSession(conn)

		select {
		case <-c.closed:
			c.setState(StateDisconnected)
			return
		default:
			// Session ended unexpectedly; loop around and reconnect.
		}
	}
}

// runSession drives one live connection until it drops.
func (c *Controller) runSession(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	// The server already dropped any presence session on the old
	// connection; the intent does not survive a reconnect.
	c.editing = 0
	c.clientID = uuid.Nil
	c.mu.Unlock()

	c.setState(StateConnected)
	c.sendRegister()

	heartbeatDone := make(chan struct{})
	go c.heartbeat(heartbeatDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		c.dispatch(raw)
	}

	close(heartbeatDone)

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close()
	c.setState(StateDisconnected)
}

func (c *Controller) heartbeat(done chan struct{}) {
	ticker := c.clock.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			c.send(realtime.TypePing, nil)
		case <-done:
			return
		case <-c.closed:
			return
		}
	}
}

func (c *Controller) dispatch(raw []byte) {
	var env realtime.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("Dropping malformed server message", "error", err)
		return
	}

	switch env.Type {
	case realtime.TypeRegistered:
		var payload realtime.RegisteredPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			slog.Warn("Dropping malformed registered payload", "error", err)
			return
		}
		c.mu.Lock()
		c.clientID = payload.ClientID
		pending := c.editing
		c.mu.Unlock()
		// An editing intent declared before the ack could not be sent yet;
		// transmit it now that the id is known.
		if pending != 0 {
			c.send(realtime.TypeStartEditing, realtime.EditingPayload{ClientID: payload.ClientID, ArticleID: pending})
		}
		if c.handlers.OnRegistered != nil {
			c.handlers.OnRegistered(payload.ClientID)
		}

	case realtime.TypeEditingStatus:
		var payload realtime.EditingStatusPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			slog.Warn("Dropping malformed editing_status payload", "error", err)
			return
		}
		if c.handlers.OnEditingStatus != nil {
			c.handlers.OnEditingStatus(payload)
		}

	case realtime.TypeArticleUpdate:
		var payload realtime.ArticleUpdatePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			slog.Warn("Dropping malformed article_update payload", "error", err)
			return
		}
		if c.handlers.OnArticleUpdate != nil {
			c.handlers.OnArticleUpdate(payload)
		}

	case realtime.TypeModeratorNotification:
		var payload realtime.ModeratorNotificationPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			slog.Warn("Dropping malformed moderator_notification payload", "error", err)
			return
		}
		if c.handlers.OnModeratorNotification != nil {
			c.handlers.OnModeratorNotification(payload)
		}

	case realtime.TypePong:
		c.mu.Lock()
		c.lastPong = c.clock.Now()
		c.mu.Unlock()

	default:
		slog.Warn("Dropping server message of unknown type", "type", env.Type)
	}
}

func (c *Controller) sendRegister() {
	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()
	c.send(realtime.TypeRegister, realtime.RegisterPayload{User: identity})
}

func (c *Controller) send(msgType string, payload any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	data, err := realtime.Encode(msgType, payload)
	if err != nil {
		slog.Error("Failed to encode client message", "type", msgType, "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(c.clock.Now().Add(sendDeadline))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Warn("Failed to send client message", "type", msgType, "error", err)
	}
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	if c.handlers.OnStateChange != nil {
		c.handlers.OnStateChange(state)
	}
}

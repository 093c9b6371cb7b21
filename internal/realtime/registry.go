package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/rojikaru/article-ajax/internal/domain"
	"github.com/rojikaru/article-ajax/internal/metrics"
)

// Client is one live registered connection. The identity is absent until
// the client registers post-login and is rebindable if a different login
// happens on the same connection.
type Client struct {
	id          uuid.UUID
	connectedAt time.Time
	writer      *clientWriter
	identity    atomic.Pointer[domain.Identity]
}

func (c *Client) ID() uuid.UUID { return c.id }

func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// Identity returns the bound identity, or nil before registration.
func (c *Client) Identity() *domain.Identity { return c.identity.Load() }

// Predicate selects the audience of a broadcast.
type Predicate func(*Client) bool

// All matches every live connection.
func All(*Client) bool { return true }

// IsModerator matches connections with a bound moderator identity.
func IsModerator(c *Client) bool {
	ident := c.Identity()
	return ident != nil && ident.IsModerator()
}

// Not matches every connection except the given client.
func Not(clientID uuid.UUID) Predicate {
	return func(c *Client) bool { return c.id != clientID }
}

// Registry maps opaque client identifiers to live connections. It owns
// the transport handle of each entry from accept to close.
type Registry struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	clients map[uuid.UUID]*Client
}

func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:   clock,
		clients: make(map[uuid.UUID]*Client),
	}
}

// Register adds a connection and returns its freshly generated client id.
// The id is a random UUIDv4, so collisions are negligible.
func (r *Registry) Register(conn *websocket.Conn) uuid.UUID {
	client := &Client{
		id:          uuid.New(),
		connectedAt: r.clock.Now(),
		writer:      newClientWriter(conn, r.clock),
	}

	r.mu.Lock()
	r.clients[client.id] = client
	total := len(r.clients)
	r.mu.Unlock()

	metrics.ConnectedClients.Set(float64(total))
	slog.Debug("Client registered", "client_id", client.id.String(), "total_clients", total)
	return client.id
}

// BindIdentity attaches or overwrites the identity on an existing entry.
// An unknown client id is logged and ignored: the message may simply have
// arrived after the disconnect cleanup.
func (r *Registry) BindIdentity(clientID uuid.UUID, identity domain.Identity) {
	r.mu.RLock()
	client, ok := r.clients[clientID]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("BindIdentity for unknown client", "client_id", clientID.String())
		return
	}
	client.identity.Store(&identity)
}

// Identity returns the identity bound to the client, if any.
func (r *Registry) Identity(clientID uuid.UUID) (domain.Identity, bool) {
	r.mu.RLock()
	client, ok := r.clients[clientID]
	r.mu.RUnlock()

	if !ok {
		return domain.Identity{}, false
	}
	ident := client.Identity()
	if ident == nil {
		return domain.Identity{}, false
	}
	return *ident, true
}

// Unregister removes the entry and stops its writer, returning the
// identity it had. The second return is false if the entry was already
// gone.
func (r *Registry) Unregister(clientID uuid.UUID) (*domain.Identity, bool) {
	r.mu.Lock()
	client, ok := r.clients[clientID]
	if ok {
		delete(r.clients, clientID)
	}
	total := len(r.clients)
	r.mu.Unlock()

	if !ok {
		return nil, false
	}

	client.writer.stop()
	metrics.ConnectedClients.Set(float64(total))
	slog.Debug("Client unregistered", "client_id", clientID.String(), "total_clients", total)
	return client.Identity(), true
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// ForEach visits every live entry matching pred. Iteration runs over a
// snapshot, so entries may come and go mid-broadcast without skipped or
// double-visited clients.
func (r *Registry) ForEach(pred Predicate, visit func(*Client)) {
	r.mu.RLock()
	snapshot := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		snapshot = append(snapshot, client)
	}
	r.mu.RUnlock()

	for _, client := range snapshot {
		if pred(client) {
			visit(client)
		}
	}
}

// Close stops every writer with a close frame, for shutdown.
func (r *Registry) Close(reason string) {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for id, client := range r.clients {
		clients = append(clients, client)
		delete(r.clients, id)
	}
	r.mu.Unlock()

	for _, client := range clients {
		client.writer.stopGraceful(reason)
	}
	metrics.ConnectedClients.Set(0)
}

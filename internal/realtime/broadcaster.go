package realtime

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rojikaru/article-ajax/internal/domain"
	"github.com/rojikaru/article-ajax/internal/metrics"
)

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type fanOutCmd struct {
	baseBroadcasterCmd
	event    string
	data     []byte
	audience Predicate
}

type directCmd struct {
	baseBroadcasterCmd
	event    string
	data     []byte
	clientID uuid.UUID
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster serializes and fans typed events out to registered
// connections. All events flow through a single actor goroutine, so
// events for one article are delivered in the order their underlying
// mutations were applied. Delivery is fire-and-forget: a full buffer or
// dead transport skips that recipient and never aborts the fan-out.
type Broadcaster struct {
	cmdCh    chan broadcasterCmd
	registry *Registry
	clock    clockwork.Clock
	done     chan struct{}
}

func NewBroadcaster(registry *Registry, clock clockwork.Clock) *Broadcaster {
	b := &Broadcaster{
		cmdCh:    make(chan broadcasterCmd, 256),
		registry: registry,
		clock:    clock,
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// ArticleUpdate announces a moderation event to all live connections.
func (b *Broadcaster) ArticleUpdate(action domain.ArticleAction, article domain.Article) {
	b.fanOut(TypeArticleUpdate, ArticleUpdatePayload{Action: action, Article: article}, All)
}

// EditingStatus announces an article's new editor set to all live
// connections.
func (b *Broadcaster) EditingStatus(update domain.PresenceUpdate) {
	b.fanOut(TypeEditingStatus, EditingStatusPayload{
		ArticleID: update.ArticleID,
		Editors:   update.Editors,
	}, All)
}

// NotifyModerators sends a notification to connections whose bound
// identity has the moderator role.
func (b *Broadcaster) NotifyModerators(message string, data any) {
	b.fanOut(TypeModeratorNotification, ModeratorNotificationPayload{
		Message:   message,
		Data:      data,
		Timestamp: b.clock.Now(),
	}, IsModerator)
}

// SendRegistered delivers the assigned client id to the registering
// connection only.
func (b *Broadcaster) SendRegistered(clientID uuid.UUID) {
	b.direct(TypeRegistered, RegisteredPayload{ClientID: clientID}, clientID)
}

// SendPong replies to a heartbeat ping from the requesting connection.
func (b *Broadcaster) SendPong(clientID uuid.UUID) {
	b.direct(TypePong, nil, clientID)
}

// Stop shuts the actor down after draining queued events.
func (b *Broadcaster) Stop() {
	b.cmdCh <- stopCmd{}
	<-b.done
}

func (b *Broadcaster) fanOut(event string, payload any, audience Predicate) {
	data, err := Encode(event, payload)
	if err != nil {
		slog.Error("Failed to encode broadcast message", "event", event, "error", err)
		return
	}
	b.cmdCh <- fanOutCmd{event: event, data: data, audience: audience}
}

func (b *Broadcaster) direct(event string, payload any, clientID uuid.UUID) {
	data, err := Encode(event, payload)
	if err != nil {
		slog.Error("Failed to encode direct message", "event", event, "error", err)
		return
	}
	b.cmdCh <- directCmd{event: event, data: data, clientID: clientID}
}

func (b *Broadcaster) run() {
	defer close(b.done)

	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case fanOutCmd:
			b.handleFanOut(c)
		case directCmd:
			b.handleDirect(c)
		case stopCmd:
			return
		default:
			slog.Warn("Broadcaster received unknown command type", "command", cmd)
		}
	}
}

func (b *Broadcaster) handleFanOut(c fanOutCmd) {
	metrics.BroadcastsTotal.WithLabelValues(c.event).Inc()

	b.registry.ForEach(c.audience, func(client *Client) {
		if !client.writer.enqueue(c.data) {
			metrics.BroadcastDropsTotal.Inc()
			slog.Warn("Skipping slow client during broadcast",
				"client_id", client.ID().String(), "event", c.event)
		}
	})
}

func (b *Broadcaster) handleDirect(c directCmd) {
	metrics.BroadcastsTotal.WithLabelValues(c.event).Inc()

	b.registry.ForEach(func(client *Client) bool { return client.ID() == c.clientID }, func(client *Client) {
		if !client.writer.enqueue(c.data) {
			metrics.BroadcastDropsTotal.Inc()
		}
	})
}

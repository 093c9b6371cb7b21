package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rojikaru/article-ajax/internal/metrics"
	"github.com/rojikaru/article-ajax/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		metrics.ConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("Connection rejected", "ip", ip, "reason", reason)
		return c.String(http.StatusServiceUnavailable, "too many connections")
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("Failed to upgrade WebSocket", "error", err)
		return nil
	}

	clientID := s.registry.Register(conn)
	log := slog.With("client_id", clientID.String())

	// The connection may already belong to a logged-in session; the
	// register message can still rebind it later.
	if ident, ok := s.sessionIdentity(c); ok {
		s.registry.BindIdentity(clientID, ident)
	}

	// currentArticle enforces the single-editing-session policy: starting
	// an edit on a new article first ends the previous one. Only the read
	// pump touches it.
	currentArticle := 0

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var env realtime.Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
			metrics.MalformedMessagesTotal.Inc()
			log.Warn("Dropping malformed realtime message", "error", err)
			continue
		}
		metrics.MessagesInTotal.WithLabelValues(env.Type).Inc()

		switch env.Type {
		case realtime.TypeRegister:
			var payload realtime.RegisterPayload
			if len(env.Payload) > 0 {
				if err := json.Unmarshal(env.Payload, &payload); err != nil {
					metrics.MalformedMessagesTotal.Inc()
					log.Warn("Dropping malformed register payload", "error", err)
					continue
				}
			}
			if payload.User != nil {
				s.registry.BindIdentity(clientID, *payload.User)
			}
			s.broadcaster.SendRegistered(clientID)

		case realtime.TypeStartEditing:
			var payload realtime.EditingPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				metrics.MalformedMessagesTotal.Inc()
				log.Warn("Dropping malformed start_editing payload", "error", err)
				continue
			}
			ident, ok := s.registry.Identity(clientID)
			if !ok {
				log.Warn("start_editing from unregistered connection", "article_id", payload.ArticleID)
				continue
			}

			s.editingMu.Lock()
			if currentArticle != 0 && currentArticle != payload.ArticleID {
				if update, changed := s.presence.StopEditing(clientID, currentArticle); changed {
					s.broadcaster.EditingStatus(update)
				}
			}
			currentArticle = payload.ArticleID
			s.broadcaster.EditingStatus(s.presence.StartEditing(clientID, payload.ArticleID, ident.Username))
			s.editingMu.Unlock()

		case realtime.TypeStopEditing:
			var payload realtime.EditingPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				metrics.MalformedMessagesTotal.Inc()
				log.Warn("Dropping malformed stop_editing payload", "error", err)
				continue
			}
			if currentArticle == payload.ArticleID {
				currentArticle = 0
			}
			s.editingMu.Lock()
			if update, changed := s.presence.StopEditing(clientID, payload.ArticleID); changed {
				s.broadcaster.EditingStatus(update)
			}
			s.editingMu.Unlock()

		case realtime.TypePing:
			s.broadcaster.SendPong(clientID)

		default:
			metrics.MalformedMessagesTotal.Inc()
			log.Warn("Dropping realtime message of unknown type", "type", env.Type)
		}
	}

	// Cleanup cascade: the connection is only considered closed once its
	// registry entry is gone, its presence sessions are dropped and the
	// resulting editing_status updates are queued.
	s.registry.Unregister(clientID)
	s.editingMu.Lock()
	for _, update := range s.presence.DropClient(clientID) {
		s.broadcaster.EditingStatus(update)
	}
	s.editingMu.Unlock()
	log.Debug("Connection closed")

	return nil
}

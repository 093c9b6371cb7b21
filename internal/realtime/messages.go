package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rojikaru/article-ajax/internal/domain"
)

// Message types, client to server.
const (
	TypeRegister     = "register"
	TypeStartEditing = "start_editing"
	TypeStopEditing  = "stop_editing"
	TypePing         = "ping"
)

// Message types, server to client.
const (
	TypeRegistered            = "registered"
	TypeEditingStatus         = "editing_status"
	TypeArticleUpdate         = "article_update"
	TypeModeratorNotification = "moderator_notification"
	TypePong                  = "pong"
)

// Envelope is the wire frame used in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode builds the wire bytes for a message with the given payload.
// A nil payload produces an envelope with the type only.
func Encode(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// --- Client to server payloads ---

// RegisterPayload carries the client's identity, absent when the client
// is not authenticated yet.
type RegisterPayload struct {
	User *domain.Identity `json:"user,omitempty"`
}

// EditingPayload is shared by start_editing and stop_editing.
type EditingPayload struct {
	ClientID  uuid.UUID `json:"clientId"`
	ArticleID int       `json:"articleId"`
}

// --- Server to client payloads ---

type RegisteredPayload struct {
	ClientID uuid.UUID `json:"clientId"`
}

type EditingStatusPayload struct {
	ArticleID int             `json:"articleId"`
	Editors   []domain.Editor `json:"editors"`
}

type ArticleUpdatePayload struct {
	Action  domain.ArticleAction `json:"action"`
	Article domain.Article       `json:"article"`
}

type ModeratorNotificationPayload struct {
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

// ArticleStatus is the moderation state of an article.
type ArticleStatus string

const (
	StatusPending   ArticleStatus = "pending"
	StatusPublished ArticleStatus = "published"
	StatusRejected  ArticleStatus = "rejected"
)

// PendingEdit is a proposed revision to a published article, held back
// until a moderator approves or rejects it. Either all three fields are
// set or the edit is absent entirely.
type PendingEdit struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	EditorName string `json:"editorName"`
}

type Article struct {
	ID          int           `json:"id"`
	Title       string        `json:"title"`
	Body        string        `json:"body"`
	AuthorName  string        `json:"authorName"`
	Status      ArticleStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	PendingEdit *PendingEdit  `json:"pendingEdit,omitempty"`
}

// ArticleView is the public projection of an article, as returned by the
// published listing. Moderation state stays internal.
type ArticleView struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// View returns the public projection of the article.
func (a Article) View() ArticleView {
	return ArticleView{
		ID:         a.ID,
		Title:      a.Title,
		Body:       a.Body,
		AuthorName: a.AuthorName,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// ArticleAction labels a moderation event for broadcast.
type ArticleAction string

const (
	ActionCreated  ArticleAction = "created"
	ActionUpdated  ArticleAction = "updated"
	ActionApproved ArticleAction = "approved"
	ActionRejected ArticleAction = "rejected"
)

// --- Identity ---

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
)

// Identity is the authenticated user attached to a request or connection.
// It is always carried per-request (cookie session) or per-connection
// (registry entry), never in process-wide state.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (i Identity) IsModerator() bool { return i.Role == RoleModerator }

// --- Presence ---

// Editor is one active editor of an article, as shown to clients.
type Editor struct {
	Username  string    `json:"username"`
	StartedAt time.Time `json:"startedAt"`
}

// EditorSession is one (client, article) editing pair tracked server-side.
type EditorSession struct {
	ClientID  uuid.UUID
	ArticleID int
	Username  string
	StartedAt time.Time
}

// PresenceUpdate is the new editor set of an article after a presence
// mutation, ready for an editing_status broadcast. Editors keeps
// insertion order, oldest first.
type PresenceUpdate struct {
	ArticleID int
	Editors   []Editor
}

// --- Interfaces ---

// ArticleStore exposes the moderation state machine to the HTTP layer.
type ArticleStore interface {
	Create(title, body, authorName string) (Article, error)
	Get(id int) (Article, error)
	ListPublished() []ArticleView
	ListForModeration() []Article
	SubmitEdit(id int, title, body, editorName string) (Article, error)
	Approve(id int) (Article, error)
	Reject(id int) (Article, error)
}

// PresenceTracker maps articles to their active editor sets. It is pure
// set algebra: each mutation touches one article, except DropClient which
// sweeps every article the client was editing.
type PresenceTracker interface {
	StartEditing(clientID uuid.UUID, articleID int, username string) PresenceUpdate
	StopEditing(clientID uuid.UUID, articleID int) (PresenceUpdate, bool)
	DropClient(clientID uuid.UUID) []PresenceUpdate
}

// EventBroadcaster fans typed events out to live connections. All methods
// are fire-and-forget; delivery is best-effort at-most-once.
type EventBroadcaster interface {
	ArticleUpdate(action ArticleAction, article Article)
	EditingStatus(update PresenceUpdate)
	NotifyModerators(message string, data any)
}

// Authenticator is the opaque auth provider boundary: credentials in,
// identity out. The credential store itself is external to the core.
type Authenticator interface {
	Authenticate(username, password string) (Identity, bool)
}

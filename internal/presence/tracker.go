// Package presence tracks which clients are actively editing which
// articles. It is pure in-memory set algebra: no I/O, no references into
// the article store or the connection registry, only ids by value.
package presence

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rojikaru/article-ajax/internal/domain"
	"github.com/rojikaru/article-ajax/internal/metrics"
)

// Tracker maps article ids to their active editor sessions. Sessions per
// article keep insertion order, oldest editor first, for deterministic
// display. Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	sessions map[int][]domain.EditorSession
}

func NewTracker(clock clockwork.Clock) *Tracker {
	return &Tracker{
		clock:    clock,
		sessions: make(map[int][]domain.EditorSession),
	}
}

// StartEditing records that the client is editing the article and returns
// the article's updated editor set for broadcast. Re-invoking with the
// same (client, article) pair is a no-op returning the unchanged set.
func (t *Tracker) StartEditing(clientID uuid.UUID, articleID int, username string) domain.PresenceUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.sessions[articleID] {
		if s.ClientID == clientID {
			return t.updateLocked(articleID)
		}
	}

	t.sessions[articleID] = append(t.sessions[articleID], domain.EditorSession{
		ClientID:  clientID,
		ArticleID: articleID,
		Username:  username,
		StartedAt: t.clock.Now(),
	})
	metrics.ActiveEditorSessions.Inc()

	return t.updateLocked(articleID)
}

// StopEditing removes the (client, article) session. The second return is
// false when the pair did not exist, meaning nothing changed and nothing
// needs broadcasting.
func (t *Tracker) StopEditing(clientID uuid.UUID, articleID int) (domain.PresenceUpdate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.removeLocked(clientID, articleID) {
		return domain.PresenceUpdate{}, false
	}
	return t.updateLocked(articleID), true
}

// DropClient removes every session held by the client, across all
// articles, and returns one update per affected article so the caller can
// broadcast each new editor set. Called on disconnect.
func (t *Tracker) DropClient(clientID uuid.UUID) []domain.PresenceUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()

	var updates []domain.PresenceUpdate
	for articleID := range t.sessions {
		if t.removeLocked(clientID, articleID) {
			updates = append(updates, t.updateLocked(articleID))
		}
	}
	return updates
}

// Editors returns the current editor set of an article.
func (t *Tracker) Editors(articleID int) []domain.Editor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updateLocked(articleID).Editors
}

// removeLocked deletes the (client, article) session, preserving the
// order of the remaining sessions. Reports whether a session was removed.
func (t *Tracker) removeLocked(clientID uuid.UUID, articleID int) bool {
	sessions := t.sessions[articleID]
	for i, s := range sessions {
		if s.ClientID == clientID {
			sessions = append(sessions[:i], sessions[i+1:]...)
			if len(sessions) == 0 {
				delete(t.sessions, articleID)
			} else {
				t.sessions[articleID] = sessions
			}
			metrics.ActiveEditorSessions.Dec()
			return true
		}
	}
	return false
}

func (t *Tracker) updateLocked(articleID int) domain.PresenceUpdate {
	sessions := t.sessions[articleID]
	editors := make([]domain.Editor, 0, len(sessions))
	for _, s := range sessions {
		editors = append(editors, domain.Editor{Username: s.Username, StartedAt: s.StartedAt})
	}
	return domain.PresenceUpdate{ArticleID: articleID, Editors: editors}
}

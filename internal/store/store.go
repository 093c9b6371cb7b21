// Package store holds article records and their moderation state machine.
// State lives in memory for the process lifetime.
package store

import (
	"sync"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/rojikaru/article-ajax/internal/domain"
	"github.com/rojikaru/article-ajax/internal/metrics"
)

const maxBodyLength = 2000

// Store is the in-memory article store. All operations are safe for
// concurrent use; each one is atomic behind a single mutex.
type Store struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	articles []domain.Article
	index    map[int]int // article id -> position in articles
	nextID   int
}

func New(clock clockwork.Clock) *Store {
	return &Store{
		clock:  clock,
		index:  make(map[int]int),
		nextID: 1,
	}
}

// Seed inserts pre-existing articles, typically the sample catalogue at
// startup. The id sequence continues above the highest seeded id.
func (s *Store) Seed(articles []domain.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range articles {
		s.index[a.ID] = len(s.articles)
		s.articles = append(s.articles, a)
		if a.ID >= s.nextID {
			s.nextID = a.ID + 1
		}
	}
}

func validate(title, body string) error {
	if title == "" || body == "" || utf8.RuneCountInString(body) > maxBodyLength {
		return domain.ErrInvalidArticle
	}
	return nil
}

// Create adds a new article in pending state.
func (s *Store) Create(title, body, authorName string) (domain.Article, error) {
	if err := validate(title, body); err != nil {
		return domain.Article{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	article := domain.Article{
		ID:         s.nextID,
		Title:      title,
		Body:       body,
		AuthorName: authorName,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.nextID++

	s.index[article.ID] = len(s.articles)
	s.articles = append(s.articles, article)

	metrics.ArticleTransitionsTotal.WithLabelValues("create").Inc()
	return article, nil
}

// Get returns the article with the given id.
func (s *Store) Get(id int) (domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return domain.Article{}, domain.ErrArticleNotFound
	}
	return s.articles[pos], nil
}

// ListPublished returns the public projection of published articles in
// insertion order.
func (s *Store) ListPublished() []domain.ArticleView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]domain.ArticleView, 0, len(s.articles))
	for _, a := range s.articles {
		if a.Status == domain.StatusPublished {
			views = append(views, a.View())
		}
	}
	return views
}

// ListForModeration returns articles awaiting a moderator decision:
// pending articles and published articles carrying a pending edit.
func (s *Store) ListForModeration() []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var queue []domain.Article
	for _, a := range s.articles {
		if a.Status == domain.StatusPending || (a.Status == domain.StatusPublished && a.PendingEdit != nil) {
			queue = append(queue, a)
		}
	}
	return queue
}

// SubmitEdit records a revision. On a published article the revision is
// held back as a pending edit; the live title and body stay untouched.
// On a pending article the revision is applied in place, no moderation
// round needed for an unpublished draft.
func (s *Store) SubmitEdit(id int, title, body, editorName string) (domain.Article, error) {
	if err := validate(title, body); err != nil {
		return domain.Article{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return domain.Article{}, domain.ErrArticleNotFound
	}
	a := &s.articles[pos]

	if a.Status == domain.StatusRejected {
		return domain.Article{}, domain.ErrArticleRejected
	}

	if a.Status == domain.StatusPublished {
		a.PendingEdit = &domain.PendingEdit{Title: title, Body: body, EditorName: editorName}
	} else {
		a.Title = title
		a.Body = body
	}
	a.UpdatedAt = s.clock.Now()

	metrics.ArticleTransitionsTotal.WithLabelValues("submit_edit").Inc()
	return *a, nil
}

// Approve publishes the article. A pending edit, if present, replaces the
// live content and is cleared. Approving an already published article
// without a pending edit changes nothing but the timestamp.
func (s *Store) Approve(id int) (domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return domain.Article{}, domain.ErrArticleNotFound
	}
	a := &s.articles[pos]

	if a.Status == domain.StatusRejected {
		return domain.Article{}, domain.ErrArticleRejected
	}

	if a.PendingEdit != nil {
		a.Title = a.PendingEdit.Title
		a.Body = a.PendingEdit.Body
		a.PendingEdit = nil
	}
	a.Status = domain.StatusPublished
	a.UpdatedAt = s.clock.Now()

	metrics.ArticleTransitionsTotal.WithLabelValues("approve").Inc()
	return *a, nil
}

// Reject discards a pending edit if one exists, leaving the article's
// status untouched. Without a pending edit the article itself is
// rejected, which is terminal.
func (s *Store) Reject(id int) (domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return domain.Article{}, domain.ErrArticleNotFound
	}
	a := &s.articles[pos]

	if a.Status == domain.StatusRejected {
		return domain.Article{}, domain.ErrArticleRejected
	}

	if a.PendingEdit != nil {
		a.PendingEdit = nil
	} else {
		a.Status = domain.StatusRejected
	}
	a.UpdatedAt = s.clock.Now()

	metrics.ArticleTransitionsTotal.WithLabelValues("reject").Inc()
	return *a, nil
}

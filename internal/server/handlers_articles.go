package server

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rojikaru/article-ajax/internal/domain"
	apperrors "github.com/rojikaru/article-ajax/internal/errors"
)

type articleRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// mapStoreError converts store sentinels into structured HTTP errors.
func mapStoreError(err error, articleID int) error {
	switch {
	case errors.Is(err, domain.ErrArticleNotFound):
		return apperrors.NotFoundError("Article not found").WithField("article_id", articleID)
	case errors.Is(err, domain.ErrInvalidArticle), errors.Is(err, domain.ErrArticleRejected):
		return apperrors.ValidationError(err.Error()).WithField("article_id", articleID)
	default:
		return apperrors.InternalError("article store failure", err).WithField("article_id", articleID)
	}
}

func articleID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, apperrors.ValidationError("invalid article id").WithField("id", c.Param("id"))
	}
	return id, nil
}

func (s *Server) handleListArticles(c echo.Context) error {
	return respondData(c, 200, s.articles.ListPublished())
}

func (s *Server) handleListPending(c echo.Context) error {
	queue := s.articles.ListForModeration()
	if queue == nil {
		queue = []domain.Article{}
	}
	return respondData(c, 200, queue)
}

func (s *Server) handleCreateArticle(c echo.Context) error {
	ident := c.Get("identity").(domain.Identity)

	var req articleRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	article, err := s.articles.Create(req.Title, req.Body, ident.Username)
	if err != nil {
		return mapStoreError(err, 0)
	}

	s.broadcaster.ArticleUpdate(domain.ActionCreated, article)
	s.broadcaster.NotifyModerators("New article awaiting review", map[string]any{
		"articleId": article.ID,
		"title":     article.Title,
		"author":    article.AuthorName,
	})

	return respondData(c, 201, article)
}

func (s *Server) handleSubmitEdit(c echo.Context) error {
	ident := c.Get("identity").(domain.Identity)

	id, err := articleID(c)
	if err != nil {
		return err
	}

	var req articleRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	article, err := s.articles.SubmitEdit(id, req.Title, req.Body, ident.Username)
	if err != nil {
		return mapStoreError(err, id)
	}

	s.broadcaster.ArticleUpdate(domain.ActionUpdated, article)

	message := "Article updated"
	if article.PendingEdit != nil {
		message = "Edit submitted for moderation"
		s.broadcaster.NotifyModerators("Edit submitted for moderation", map[string]any{
			"articleId": article.ID,
			"title":     article.PendingEdit.Title,
			"editor":    article.PendingEdit.EditorName,
		})
	}

	return respond(c, 200, message, article)
}

func (s *Server) handleApprove(c echo.Context) error {
	id, err := articleID(c)
	if err != nil {
		return err
	}

	article, err := s.articles.Approve(id)
	if err != nil {
		return mapStoreError(err, id)
	}

	s.broadcaster.ArticleUpdate(domain.ActionApproved, article)

	return respond(c, 200, "Article approved", article)
}

func (s *Server) handleReject(c echo.Context) error {
	id, err := articleID(c)
	if err != nil {
		return err
	}

	article, err := s.articles.Reject(id)
	if err != nil {
		return mapStoreError(err, id)
	}

	s.broadcaster.ArticleUpdate(domain.ActionRejected, article)

	return respond(c, 200, "Article rejected", article)
}

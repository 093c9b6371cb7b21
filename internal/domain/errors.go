package domain

import "errors"

var (
	// ErrArticleNotFound is returned for an unknown article id.
	ErrArticleNotFound = errors.New("article not found")

	// ErrInvalidArticle is returned when a title or body is empty or the
	// body exceeds the length limit. The store mutates nothing.
	ErrInvalidArticle = errors.New("title is required and body must not exceed 2000 characters")

	// ErrArticleRejected is returned when an operation targets a rejected
	// article. Rejection is terminal.
	ErrArticleRejected = errors.New("article has been rejected and can no longer be changed")
)

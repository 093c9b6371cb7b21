package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rojikaru/article-ajax/internal/domain"
)

func TestDirectoryAuthenticate(t *testing.T) {
	dir := NewDirectory()

	ident, ok := dir.Authenticate("admin", "admin123")
	require.True(t, ok)
	assert.Equal(t, "admin", ident.Username)
	assert.Equal(t, domain.RoleModerator, ident.Role)
	assert.True(t, ident.IsModerator())

	ident, ok = dir.Authenticate("writer", "writer123")
	require.True(t, ok)
	assert.Equal(t, domain.RoleUser, ident.Role)
	assert.False(t, ident.IsModerator())
}

func TestDirectoryRejectsBadCredentials(t *testing.T) {
	dir := NewDirectory()

	_, ok := dir.Authenticate("admin", "wrong")
	assert.False(t, ok)

	_, ok = dir.Authenticate("nobody", "admin123")
	assert.False(t, ok)

	_, ok = dir.Authenticate("", "")
	assert.False(t, ok)
}

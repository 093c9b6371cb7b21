// Package auth is the opaque authentication provider boundary: it turns
// credentials into an identity with a role. The directory here is a
// static in-memory stand-in for an external credential store.
package auth

import (
	"crypto/subtle"

	"github.com/rojikaru/article-ajax/internal/domain"
)

type account struct {
	password string
	identity domain.Identity
}

// Directory authenticates against a fixed set of accounts.
type Directory struct {
	accounts map[string]account
}

// NewDirectory creates a directory with the default demo accounts.
func NewDirectory() *Directory {
	return &Directory{
		accounts: map[string]account{
			"admin":  {password: "admin123", identity: domain.Identity{Username: "admin", Role: domain.RoleModerator}},
			"editor": {password: "editor123", identity: domain.Identity{Username: "editor", Role: domain.RoleUser}},
			"writer": {password: "writer123", identity: domain.Identity{Username: "writer", Role: domain.RoleUser}},
		},
	}
}

// Authenticate returns the identity for valid credentials.
func (d *Directory) Authenticate(username, password string) (domain.Identity, bool) {
	acc, ok := d.accounts[username]
	if !ok {
		return domain.Identity{}, false
	}
	if subtle.ConstantTimeCompare([]byte(acc.password), []byte(password)) != 1 {
		return domain.Identity{}, false
	}
	return acc.identity, true
}

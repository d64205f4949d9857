// Package model defines the records stored by the application and the
// constructors that validate them.
package model

import (
	"strings"
	"time"

	"github.com/sakif/ecosphere/internal/apperror"
)

// User is a registered account.
//
// ExternalID binds the account to an identity at the provider. It holds a
// keyed hash of the provider's subject id (see auth.IdentityHasher), never
// the raw id, and it is never rendered to clients.
type User struct {
	ID          int64     `json:"id"          db:"id"`
	Username    string    `json:"username"    db:"username"`
	ExternalID  string    `json:"-"           db:"hashedGoogleId"`
	AvatarURL   string    `json:"avatarUrl"   db:"avatar_url"`
	MemberSince time.Time `json:"memberSince" db:"memberSince"`
}

// NewUser builds a User ready to be inserted. The store assigns ID.
func NewUser(username, externalID string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if externalID == "" {
		return nil, apperror.ValidationFailed("externalId", "external identity is required")
	}
	return &User{
		Username:    username,
		ExternalID:  externalID,
		MemberSince: time.Now().UTC(),
	}, nil
}

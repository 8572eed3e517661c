// Package models holds the gorm models of the auth database.
package models

import (
	"time"
)

// AuthSource represents the authentication source for a user account.
type AuthSource string

const (
	// AuthSourceLocal indicates the user authenticates with a password hash stored in the database.
	AuthSourceLocal AuthSource = "local"
	// AuthSourceOAuth2 indicates the user was provisioned from an external OAuth2/OIDC provider.
	AuthSourceOAuth2 AuthSource = "oauth2"
	// AuthSourceLDAP indicates the user authenticates via LDAP or Active Directory.
	AuthSourceLDAP AuthSource = "ldap"
)

// User is a user directory record consulted by the credential store.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// Active indicates whether the user account may log in.
	Active bool
	// Username is the unique username for login.
	Username string `gorm:"unique;size:100;not null"`
	// Email is the user's email address.
	Email string `gorm:"size:255"`
	// Password is an argon2id or bcrypt hash.
	Password string `gorm:"size:255"`
	// Name is the display name.
	Name string `gorm:"size:200"`
	// Scope is the granted scope, capabilities separated by spaces.
	Scope string `gorm:"size:1024;not null;default:''"`
	// TOTPSecret enables a second factor when set.
	TOTPSecret string `gorm:"column:totp_secret;size:128"`
	// AuthSource indicates how this user authenticates.
	AuthSource AuthSource `gorm:"type:varchar(20);not null;default:'local'"`
	// ExternalID is the external identifier for OAuth2 (sub claim) or LDAP (DN) users.
	ExternalID string `gorm:"size:255"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time `gorm:"index"`
}

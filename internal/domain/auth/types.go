package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"time"
)

// Sentinel errors shared by session stores and credential verifiers.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and JSON payloads.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleMarketing Role = "marketing"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMarketing, RoleUser:
		return true
	default:
		return false
	}
}

// Identity is the authenticated principal returned by GET /api/auth/user.
// It is replaced wholesale on every refetch and never patched in place.
type Identity struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PseudoName      string    `json:"pseudoName,omitempty"`
	FirstName       string    `json:"firstName,omitempty"`
	LastName        string    `json:"lastName,omitempty"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	Role            Role      `json:"role"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// DisplayName returns the best human-readable name for the identity.
func (i Identity) DisplayName() string {
	switch {
	case i.PseudoName != "":
		return i.PseudoName
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	default:
		return i.Email
	}
}

// Principal is a verified login before its groups are mapped to a Role.
type Principal struct {
	Identity Identity
	Groups   []string
}

// Session is the server-side record the dev server persists for a logged-in user.
// ID is an opaque session identifier carried in the session cookie.
type Session struct {
	ID        string    `json:"id"`
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

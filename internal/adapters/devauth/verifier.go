package devauth

// Package devauth provides a simple, config-driven CredentialVerifier for local development.

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	"github.com/nreinfusion/onehub-session/internal/ports"
)

var _ ports.CredentialVerifier = (*Verifier)(nil)

// Config controls the dev verifier. ID and Email are required, as is one of
// Password or PasswordHash.
type Config struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PseudoName   string
	Groups       []string
	Password     string
	PasswordHash string
	// Cost is the bcrypt cost used when hashing Password (default bcrypt.DefaultCost).
	Cost int
}

// Verifier accepts the single configured account.
type Verifier struct {
	principal domainauth.Principal
	email     string
	hash      []byte
}

// NewVerifier constructs a dev verifier from Config. A plain Password is
// hashed once here so it is never held in memory afterwards.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.ID == "" {
		return nil, errors.New("dev auth: ID is required")
	}
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" {
		return nil, errors.New("dev auth: Email is required")
	}

	var hash []byte
	switch {
	case cfg.PasswordHash != "":
		hash = []byte(cfg.PasswordHash)
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("dev auth: invalid password hash: %w", err)
		}
	case cfg.Password != "":
		cost := cfg.Cost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		h, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("dev auth: hash password: %w", err)
		}
		hash = h
	default:
		return nil, errors.New("dev auth: Password or PasswordHash is required")
	}

	return &Verifier{
		principal: domainauth.Principal{
			Identity: domainauth.Identity{
				ID:         cfg.ID,
				Email:      email,
				FirstName:  cfg.FirstName,
				LastName:   cfg.LastName,
				PseudoName: cfg.PseudoName,
			},
			Groups: append([]string(nil), cfg.Groups...),
		},
		email: email,
		hash:  hash,
	}, nil
}

// Verify checks email case-insensitively and the password against the bcrypt hash.
func (v *Verifier) Verify(_ context.Context, email, password string) (domainauth.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(v.email)) == 1
	// Always run bcrypt so unknown emails cost the same as wrong passwords.
	pwErr := bcrypt.CompareHashAndPassword(v.hash, []byte(password))
	if !emailOK || pwErr != nil {
		return domainauth.Principal{}, domainauth.ErrInvalidCredentials
	}

	p := v.principal
	p.Groups = append([]string(nil), v.principal.Groups...)
	return p, nil
}

package ports

import (
	"context"
	"time"

	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
)

// FlagBackend is shared key/value storage with a lifetime independent of any
// single controller. Writers in other processes may race; last write wins.
type FlagBackend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// FlagWatcher is implemented by backends that can observe writes made by other
// processes. fn receives the changed key; stop releases the subscription.
type FlagWatcher interface {
	Watch(fn func(key string)) (stop func(), err error)
}

// IdentityAPI is the network contract the session controller consumes.
type IdentityAPI interface {
	// FetchIdentity calls GET /api/auth/user and classifies the outcome.
	FetchIdentity(ctx context.Context) (domainauth.Identity, error)
	// Logout calls POST /api/auth/logout with the CSRF header.
	Logout(ctx context.Context) error
	// ClearCookies drops every cookie the client holds.
	ClearCookies()
}

// Navigator exposes the current location and performs navigation.
type Navigator interface {
	CurrentPath() string
	Navigate(path string)
}

// NotificationVariant selects how a notification is presented.
type NotificationVariant string

const (
	NotificationDefault     NotificationVariant = "default"
	NotificationDestructive NotificationVariant = "destructive"
)

// Notification is a short user-visible message.
type Notification struct {
	Title       string
	Description string
	Variant     NotificationVariant
	Duration    time.Duration
}

// Notifier displays notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// ActivitySource delivers user-interaction signals such as key presses.
type ActivitySource interface {
	Subscribe(kinds []string, fn func(kind string)) (unsubscribe func())
}

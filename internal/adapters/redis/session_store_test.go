package redis

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	"github.com/nreinfusion/onehub-session/internal/testutil"
)

func testSession(id string, expires time.Time) domainauth.Session {
	return domainauth.Session{
		ID: id,
		Identity: domainauth.Identity{
			ID:    "user-123",
			Email: "user@example.com",
			Role:  domainauth.RoleUser,
		},
		ExpiresAt: expires,
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	client := testutil.SetupRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	session := testSession("test-session-1", time.Now().Add(30*time.Minute))
	require.NoError(t, store.Save(ctx, session))

	retrieved, err := store.Get(ctx, "test-session-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, retrieved.ID)
	assert.Equal(t, session.Identity.ID, retrieved.Identity.ID)
	assert.Equal(t, session.Identity.Email, retrieved.Identity.Email)
	assert.Equal(t, session.Identity.Role, retrieved.Identity.Role)
	assert.WithinDuration(t, session.ExpiresAt, retrieved.ExpiresAt, time.Second)
}

func TestSessionStore_GetNonExistent(t *testing.T) {
	client := testutil.SetupRedis(t)
	store := NewSessionStore(client)

	_, err := store.Get(context.Background(), "non-existent")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)

	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestSessionStore_TTLFollowsExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewSessionStoreWithPrefix(client, "test:session:")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("ttl", time.Now().Add(10*time.Minute))))
	assert.True(t, mr.Exists("test:session:ttl"))
	ttl := mr.TTL("test:session:ttl")
	assert.InDelta(t, (10 * time.Minute).Seconds(), ttl.Seconds(), 5)

	mr.FastForward(11 * time.Minute)
	_, err := store.Get(ctx, "ttl")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestSessionStore_SaveExpired(t *testing.T) {
	client := testutil.SetupRedis(t)
	store := NewSessionStore(client)

	err := store.Save(context.Background(), testSession("old", time.Now().Add(-time.Minute)))
	require.Error(t, err)

	err = store.Save(context.Background(), testSession("", time.Now().Add(time.Minute)))
	require.Error(t, err)
}

func TestSessionStore_ExpiredRecordCleanedUp(t *testing.T) {
	client, mr := setupTestRedis(t)
	clock := clockwork.NewFakeClockAt(time.Now())
	store := NewSessionStore(client).WithClock(clock)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("skew", clock.Now().Add(time.Minute))))

	// The store's clock runs ahead of Redis.
	clock.Advance(2 * time.Minute)
	_, err := store.Get(ctx, "skew")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
	assert.False(t, mr.Exists("session:skew"))
}

func TestSessionStore_Delete(t *testing.T) {
	client := testutil.SetupRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("gone", time.Now().Add(time.Hour))))
	require.NoError(t, store.Delete(ctx, "gone"))
	require.NoError(t, store.Delete(ctx, ""))

	_, err := store.Get(ctx, "gone")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

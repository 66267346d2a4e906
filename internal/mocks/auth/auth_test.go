package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
)

func TestStubVerifier_Defaults(t *testing.T) {
	v := NewStubVerifier()
	ctx := context.Background()

	p, err := v.Verify(ctx, "MOCK.USER@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", p.Identity.ID)
	assert.Equal(t, []string{"users"}, p.Groups)

	_, err = v.Verify(ctx, "mock.user@example.com", "wrong")
	assert.ErrorIs(t, err, domainauth.ErrInvalidCredentials)
	assert.Equal(t, 2, v.Calls())
}

func TestStubVerifier_CustomFunc(t *testing.T) {
	v := &StubVerifier{VerifyFunc: func(context.Context, string, string) (domainauth.Principal, error) {
		return domainauth.Principal{Identity: domainauth.Identity{ID: "custom"}}, nil
	}}

	p, err := v.Verify(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Identity.ID)
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.Error(t, store.Save(ctx, domainauth.Session{}))

	sess := domainauth.Session{ID: "s-1", Identity: domainauth.Identity{ID: "u-1"}}
	require.NoError(t, store.Save(ctx, sess))
	assert.Equal(t, 1, store.Len())

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.Identity.ID)

	require.NoError(t, store.Delete(ctx, "s-1"))
	_, err = store.Get(ctx, "s-1")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestFixedRole(t *testing.T) {
	assert.Equal(t, domainauth.RoleAdmin, FixedRole(domainauth.RoleAdmin).Map(nil))
}

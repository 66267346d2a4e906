package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nreinfusion/onehub-session/config"
	domainauth "github.com/nreinfusion/onehub-session/internal/domain/auth"
	"github.com/nreinfusion/onehub-session/internal/testutil"
)

func testAuthConfig() config.AuthConfig {
	cfg := config.AuthConfig{
		SessionStore:      config.SessionStoreMemory,
		SessionTTL:        time.Hour,
		SessionCookieName: "session_id",
		SessionKeyPrefix:  "test:session:",
		AdminGroup:        "admins",
		MarketingGroup:    "marketing",
		DevUser: config.DevUserConfig{
			ID:       "dev",
			Email:    "dev@example.com",
			Groups:   []string{"marketing"},
			Password: "devpassword",
		},
	}
	cfg.Sanitize()
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildAuthService_MemoryStore(t *testing.T) {
	svc, err := BuildAuthService(AuthConfig{Auth: testAuthConfig(), Logger: discardLogger()})
	require.NoError(t, err)

	sess, err := svc.Login(context.Background(), "dev@example.com", "devpassword")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleMarketing, sess.Identity.Role)

	got, err := svc.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "dev", got.Identity.ID)
}

func TestBuildAuthService_RedisStore(t *testing.T) {
	client := testutil.SetupRedis(t)

	clock := clockwork.NewFakeClockAt(time.Now())
	auth := testAuthConfig()
	auth.SessionStore = config.SessionStoreRedis
	svc, err := BuildAuthService(AuthConfig{Auth: auth, RedisClient: client, Clock: clock})
	require.NoError(t, err)

	sess, err := svc.Login(context.Background(), "dev@example.com", "devpassword")
	require.NoError(t, err)
	n, err := client.Exists(context.Background(), "test:session:"+sess.ID).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBuildAuthService_Errors(t *testing.T) {
	t.Run("redis store without client", func(t *testing.T) {
		auth := testAuthConfig()
		auth.SessionStore = config.SessionStoreRedis
		_, err := BuildAuthService(AuthConfig{Auth: auth})
		require.Error(t, err)
	})

	t.Run("invalid password hash", func(t *testing.T) {
		auth := testAuthConfig()
		auth.DevUser.PasswordHash = "not-a-bcrypt-hash"
		_, err := BuildAuthService(AuthConfig{Auth: auth})
		require.Error(t, err)
	})

	t.Run("missing dev user email", func(t *testing.T) {
		auth := testAuthConfig()
		auth.DevUser.Email = ""
		_, err := BuildAuthService(AuthConfig{Auth: auth})
		require.Error(t, err)
	})
}

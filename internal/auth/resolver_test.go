package auth

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/mediaportal/internal/auth/domain"
	apperrors "github.com/allisson/mediaportal/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func headerTrustConfig() domain.Config {
	return domain.Config{
		Mode:              domain.ModeHeaderTrust,
		UsernameHeader:    "x-portal-username",
		DisplayNameHeader: "x-portal-user-display-name",
		RolesHeader:       "x-portal-user-roles",
	}
}

func statefulConfig() domain.Config {
	return domain.Config{
		Mode:            domain.ModeStatefulSession,
		CookieName:      "portal-session",
		SessionDuration: 30 * 24 * time.Hour,
	}
}

func b64(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// fakeSessionLookup is an in-memory SessionLookup for resolver tests.
type fakeSessionLookup struct {
	sessions map[string]*domain.Session
	err      error
	calls    int
}

func (f *fakeSessionLookup) GetValid(_ context.Context, id string, _ time.Duration) (*domain.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func TestResolverDisabledMode(t *testing.T) {
	lookup := &fakeSessionLookup{}
	resolver := NewResolver(domain.Config{Mode: domain.ModeDisabled}, lookup, testLogger())

	headers := http.Header{}
	headers.Set("x-portal-username", b64("jose"))

	identity, err := resolver.Resolve(context.Background(), headers)
	require.NoError(t, err)
	assert.Nil(t, identity)
	assert.Zero(t, lookup.calls, "disabled mode must not query the session store")
}

func TestResolverHeaderTrustMode(t *testing.T) {
	resolver := NewResolver(headerTrustConfig(), nil, testLogger())
	ctx := context.Background()

	t.Run("full identity", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("x-portal-username", b64("jose"))
		headers.Set("x-portal-user-display-name", b64("José Silva"))
		headers.Set("x-portal-user-roles", b64("ROLE_PORTAL_UPLOAD,ROLE_PORTAL_EDITOR"))

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, "jose", identity.Username)
		assert.Equal(t, "José Silva", identity.DisplayName)
		assert.Equal(t, []string{"ROLE_PORTAL_UPLOAD", "ROLE_PORTAL_EDITOR"}, identity.Roles)
	})

	t.Run("missing username means anonymous", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("x-portal-user-display-name", b64("José Silva"))

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("display name falls back to username", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("x-portal-username", b64("jose"))

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, "jose", identity.DisplayName)
	})

	t.Run("malformed base64 degrades to anonymous without error", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("x-portal-username", "!!!not-base64!!!")

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("invalid utf8 degrades to anonymous without error", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("x-portal-username", base64.RawURLEncoding.EncodeToString([]byte{0xff, 0xfe}))

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("roles header is one blob of comma-joined roles", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("x-portal-username", b64("jose"))
		headers.Set("x-portal-user-roles", b64("ROLE_PORTAL_UPLOAD, ROLE_STUDENT"))

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, []string{"ROLE_PORTAL_UPLOAD", "ROLE_STUDENT"}, identity.Roles)
		assert.True(t, identity.HasRole("ROLE_PORTAL_UPLOAD"))
	})

	t.Run("malformed roles header keeps the identity without roles", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("x-portal-username", b64("jose"))
		headers.Set("x-portal-user-roles", "!!!not-base64!!!")

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, "jose", identity.Username)
		assert.Empty(t, identity.Roles)
	})

	t.Run("padded base64 is accepted", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("x-portal-username", base64.URLEncoding.EncodeToString([]byte("jose")))

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, "jose", identity.Username)
	})
}

func TestResolverStatefulSessionMode(t *testing.T) {
	ctx := context.Background()

	validID := "AAAAAAAAAAAAAAAAAAAAAAAA"
	session := &domain.Session{
		ID:          validID,
		Username:    "jose",
		DisplayName: "José Silva",
		Roles:       []string{"ROLE_PORTAL_UPLOAD"},
		CreatedAt:   time.Now(),
	}

	t.Run("valid session cookie", func(t *testing.T) {
		lookup := &fakeSessionLookup{sessions: map[string]*domain.Session{validID: session}}
		resolver := NewResolver(statefulConfig(), lookup, testLogger())

		headers := http.Header{}
		headers.Set("Cookie", "portal-session="+validID)

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, "jose", identity.Username)
		assert.Equal(t, []string{"ROLE_PORTAL_UPLOAD"}, identity.Roles)
	})

	t.Run("no cookie means anonymous", func(t *testing.T) {
		lookup := &fakeSessionLookup{}
		resolver := NewResolver(statefulConfig(), lookup, testLogger())

		identity, err := resolver.Resolve(ctx, http.Header{})
		require.NoError(t, err)
		assert.Nil(t, identity)
		assert.Zero(t, lookup.calls)
	})

	t.Run("unknown session means anonymous", func(t *testing.T) {
		lookup := &fakeSessionLookup{}
		resolver := NewResolver(statefulConfig(), lookup, testLogger())

		headers := http.Header{}
		headers.Set("Cookie", "portal-session=BBBBBBBBBBBBBBBBBBBBBBBB")

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		assert.Nil(t, identity)
		assert.Equal(t, 1, lookup.calls)
	})

	t.Run("cookie with wrong length skips the lookup", func(t *testing.T) {
		lookup := &fakeSessionLookup{}
		resolver := NewResolver(statefulConfig(), lookup, testLogger())

		headers := http.Header{}
		headers.Set("Cookie", "portal-session=short")

		identity, err := resolver.Resolve(ctx, headers)
		require.NoError(t, err)
		assert.Nil(t, identity)
		assert.Zero(t, lookup.calls)
	})

	t.Run("lookup failure propagates", func(t *testing.T) {
		lookup := &fakeSessionLookup{err: apperrors.ErrPoolTimeout}
		resolver := NewResolver(statefulConfig(), lookup, testLogger())

		headers := http.Header{}
		headers.Set("Cookie", "portal-session="+validID)

		_, err := resolver.Resolve(ctx, headers)
		assert.ErrorIs(t, err, apperrors.ErrPoolTimeout)
	})
}

func TestResolverUnknownMode(t *testing.T) {
	resolver := NewResolver(domain.Config{Mode: "oauth"}, nil, testLogger())

	_, err := resolver.Resolve(context.Background(), http.Header{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

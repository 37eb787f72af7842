package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/mediaportal/internal/api"
	"github.com/allisson/mediaportal/internal/auth"
	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	authhttp "github.com/allisson/mediaportal/internal/auth/http"
	"github.com/allisson/mediaportal/internal/config"
	"github.com/allisson/mediaportal/internal/database"
	eventDomain "github.com/allisson/mediaportal/internal/event/domain"
	"github.com/allisson/mediaportal/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubEventUseCase returns empty results for every catalog operation.
type stubEventUseCase struct{}

func (s *stubEventUseCase) Get(context.Context, uuid.UUID, *authDomain.Identity) (*eventDomain.Event, error) {
	return nil, eventDomain.ErrEventNotFound
}

func (s *stubEventUseCase) ListBySeries(context.Context, uuid.UUID, *authDomain.Identity) ([]*eventDomain.Event, error) {
	return nil, nil
}

func (s *stubEventUseCase) ListWritable(context.Context, *authDomain.Identity, authDomain.CapabilityProof) ([]*eventDomain.Event, error) {
	return nil, nil
}

// stubSessionUseCase satisfies the session use case without a database.
type stubSessionUseCase struct{}

func (s *stubSessionUseCase) Login(_ context.Context, identity *authDomain.Identity) (*authDomain.Session, error) {
	return authDomain.NewSession(identity)
}

func (s *stubSessionUseCase) Logout(context.Context, string) error { return nil }

func (s *stubSessionUseCase) CleanupExpired(context.Context, bool) (int64, error) { return 0, nil }

func (s *stubSessionUseCase) RunMaintenance(context.Context, time.Duration) {}

func testServerConfig() *config.Config {
	return &config.Config{
		ServerHost:                 "127.0.0.1",
		ServerPort:                 0,
		DBPoolAcquireTimeout:       time.Second,
		DBPoolAcquireWarnThreshold: time.Second,
		RateLimitLoginEnabled:      false,
	}
}

func newTestServer(t *testing.T, authCfg authDomain.Config) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := testServerConfig()
	logger := testLogger()
	pool := database.NewPool(db, cfg.DBPoolAcquireTimeout, cfg.DBPoolAcquireWarnThreshold, logger)
	resolver := auth.NewResolver(authCfg, nil, logger)
	scope := api.NewScope(pool, resolver, authCfg, logger)
	dispatcher := api.NewDispatcher(&stubEventUseCase{})
	requestMetrics := metrics.NewNoOpRequestMetrics()
	queryHandler := api.NewQueryHandler(scope, dispatcher, requestMetrics, logger)

	var sessionHandler *authhttp.SessionHandler
	if authCfg.SessionsEnabled() {
		sessionHandler = authhttp.NewSessionHandler(authCfg, resolver, &stubSessionUseCase{}, requestMetrics, logger)
	}

	server := NewServer(cfg, authCfg, db, queryHandler, sessionHandler, nil, logger)
	return server, mock
}

func TestServerHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t, authDomain.Config{Mode: authDomain.ModeDisabled})

	t.Run("healthz", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{"status":"healthy"}`, recorder.Body.String())
	})

	t.Run("readyz", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `{"status":"ready"}`, recorder.Body.String())
	})
}

func TestServerQueryRoute(t *testing.T) {
	server, mock := newTestServer(t, authDomain.Config{Mode: authDomain.ModeDisabled})
	mock.ExpectBegin()
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"op":"currentUser"}`))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.GetHandler().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"data":null}`, recorder.Body.String())
	assert.NotEmpty(t, recorder.Header().Get("X-Request-Id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServerRouting(t *testing.T) {
	server, _ := newTestServer(t, authDomain.Config{Mode: authDomain.ModeDisabled})

	t.Run("unknown route is 404", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/nope", nil))

		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "not_found")
	})

	t.Run("wrong method is 405", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/query", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "method_not_allowed")
	})
}

func TestServerSessionRoutes(t *testing.T) {
	t.Run("absent outside stateful-session mode", func(t *testing.T) {
		server, _ := newTestServer(t, authDomain.Config{Mode: authDomain.ModeHeaderTrust})

		recorder := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/~session", nil))

		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("mounted in stateful-session mode", func(t *testing.T) {
		authCfg := authDomain.Config{
			Mode:            authDomain.ModeStatefulSession,
			UsernameHeader:  "x-portal-username",
			RolesHeader:     "x-portal-user-roles",
			SessionDuration: time.Hour,
			CookieName:      "portal-session",
		}
		server, _ := newTestServer(t, authCfg)

		// Without identity headers the handler itself answers 401, which
		// proves the route is wired.
		recorder := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/~session", nil))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(testLogger()))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "internal_error")
	assert.NotContains(t, recorder.Body.String(), "boom")
}

// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/allisson/mediaportal/internal/api"
	"github.com/allisson/mediaportal/internal/auth"
	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	authhttp "github.com/allisson/mediaportal/internal/auth/http"
	authRepository "github.com/allisson/mediaportal/internal/auth/repository"
	authUsecase "github.com/allisson/mediaportal/internal/auth/usecase"
	"github.com/allisson/mediaportal/internal/config"
	"github.com/allisson/mediaportal/internal/database"
	eventRepository "github.com/allisson/mediaportal/internal/event/repository"
	eventUsecase "github.com/allisson/mediaportal/internal/event/usecase"
	"github.com/allisson/mediaportal/internal/http"
	"github.com/allisson/mediaportal/internal/metrics"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	authConfig      authDomain.Config
	db              *sql.DB
	pool            *database.Pool
	metricsProvider *metrics.Provider
	requestMetrics  metrics.RequestMetrics

	// Repositories
	sessionRepo authUsecase.SessionRepository
	eventRepo   eventUsecase.EventRepository

	// Use Cases and request plumbing
	sessionUseCase authUsecase.SessionUseCase
	eventUseCase   eventUsecase.EventUseCase
	resolver       *auth.Resolver
	dispatcher     *api.Dispatcher
	scope          *api.Scope

	// Handlers and servers
	queryHandler   *api.QueryHandler
	sessionHandler *authhttp.SessionHandler
	httpServer     *http.Server
	metricsServer  *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	authConfigInit      sync.Once
	dbInit              sync.Once
	poolInit            sync.Once
	metricsProviderInit sync.Once
	requestMetricsInit  sync.Once
	sessionRepoInit     sync.Once
	eventRepoInit       sync.Once
	sessionUseCaseInit  sync.Once
	eventUseCaseInit    sync.Once
	resolverInit        sync.Once
	dispatcherInit      sync.Once
	scopeInit           sync.Once
	queryHandlerInit    sync.Once
	sessionHandlerInit  sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// AuthConfig returns the identity resolution settings derived from the
// application configuration.
func (c *Container) AuthConfig() (authDomain.Config, error) {
	c.authConfigInit.Do(func() {
		authConfig, err := c.initAuthConfig()
		if err != nil {
			c.initErrors["authConfig"] = err
			return
		}
		c.authConfig = authConfig
	})
	if storedErr, exists := c.initErrors["authConfig"]; exists {
		return authDomain.Config{}, storedErr
	}
	return c.authConfig, nil
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := c.initDB()
		if err != nil {
			c.initErrors["db"] = err
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// Pool returns the connection pool gateway used by request scopes.
func (c *Container) Pool() (*database.Pool, error) {
	c.poolInit.Do(func() {
		pool, err := c.initPool()
		if err != nil {
			c.initErrors["pool"] = err
			return
		}
		c.pool = pool
	})
	if storedErr, exists := c.initErrors["pool"]; exists {
		return nil, storedErr
	}
	return c.pool, nil
}

// MetricsProvider returns the metrics provider instance.
// Returns nil if metrics are disabled in configuration.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// RequestMetrics returns the request metrics recorder.
// Returns a no-op recorder if metrics are disabled in configuration.
func (c *Container) RequestMetrics() (metrics.RequestMetrics, error) {
	c.requestMetricsInit.Do(func() {
		requestMetrics, err := c.initRequestMetrics()
		if err != nil {
			c.initErrors["requestMetrics"] = err
			return
		}
		c.requestMetrics = requestMetrics
	})
	if storedErr, exists := c.initErrors["requestMetrics"]; exists {
		return nil, storedErr
	}
	return c.requestMetrics, nil
}

// SessionRepository returns the session repository instance.
func (c *Container) SessionRepository() (authUsecase.SessionRepository, error) {
	c.sessionRepoInit.Do(func() {
		repo, err := c.initSessionRepository()
		if err != nil {
			c.initErrors["sessionRepo"] = err
			return
		}
		c.sessionRepo = repo
	})
	if storedErr, exists := c.initErrors["sessionRepo"]; exists {
		return nil, storedErr
	}
	return c.sessionRepo, nil
}

// EventRepository returns the event repository instance.
func (c *Container) EventRepository() (eventUsecase.EventRepository, error) {
	c.eventRepoInit.Do(func() {
		repo, err := c.initEventRepository()
		if err != nil {
			c.initErrors["eventRepo"] = err
			return
		}
		c.eventRepo = repo
	})
	if storedErr, exists := c.initErrors["eventRepo"]; exists {
		return nil, storedErr
	}
	return c.eventRepo, nil
}

// SessionUseCase returns the session use case instance.
func (c *Container) SessionUseCase() (authUsecase.SessionUseCase, error) {
	c.sessionUseCaseInit.Do(func() {
		useCase, err := c.initSessionUseCase()
		if err != nil {
			c.initErrors["sessionUseCase"] = err
			return
		}
		c.sessionUseCase = useCase
	})
	if storedErr, exists := c.initErrors["sessionUseCase"]; exists {
		return nil, storedErr
	}
	return c.sessionUseCase, nil
}

// EventUseCase returns the event use case instance.
func (c *Container) EventUseCase() (eventUsecase.EventUseCase, error) {
	c.eventUseCaseInit.Do(func() {
		useCase, err := c.initEventUseCase()
		if err != nil {
			c.initErrors["eventUseCase"] = err
			return
		}
		c.eventUseCase = useCase
	})
	if storedErr, exists := c.initErrors["eventUseCase"]; exists {
		return nil, storedErr
	}
	return c.eventUseCase, nil
}

// Resolver returns the identity resolver instance.
func (c *Container) Resolver() (*auth.Resolver, error) {
	c.resolverInit.Do(func() {
		resolver, err := c.initResolver()
		if err != nil {
			c.initErrors["resolver"] = err
			return
		}
		c.resolver = resolver
	})
	if storedErr, exists := c.initErrors["resolver"]; exists {
		return nil, storedErr
	}
	return c.resolver, nil
}

// Dispatcher returns the query dispatcher instance.
func (c *Container) Dispatcher() (*api.Dispatcher, error) {
	c.dispatcherInit.Do(func() {
		dispatcher, err := c.initDispatcher()
		if err != nil {
			c.initErrors["dispatcher"] = err
			return
		}
		c.dispatcher = dispatcher
	})
	if storedErr, exists := c.initErrors["dispatcher"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// Scope returns the transactional request scope runner.
func (c *Container) Scope() (*api.Scope, error) {
	c.scopeInit.Do(func() {
		scope, err := c.initScope()
		if err != nil {
			c.initErrors["scope"] = err
			return
		}
		c.scope = scope
	})
	if storedErr, exists := c.initErrors["scope"]; exists {
		return nil, storedErr
	}
	return c.scope, nil
}

// QueryHandler returns the query HTTP handler instance.
func (c *Container) QueryHandler() (*api.QueryHandler, error) {
	c.queryHandlerInit.Do(func() {
		handler, err := c.initQueryHandler()
		if err != nil {
			c.initErrors["queryHandler"] = err
			return
		}
		c.queryHandler = handler
	})
	if storedErr, exists := c.initErrors["queryHandler"]; exists {
		return nil, storedErr
	}
	return c.queryHandler, nil
}

// SessionHandler returns the session HTTP handler instance.
// Returns nil if the auth mode does not persist sessions.
func (c *Container) SessionHandler() (*authhttp.SessionHandler, error) {
	c.sessionHandlerInit.Do(func() {
		handler, err := c.initSessionHandler()
		if err != nil {
			c.initErrors["sessionHandler"] = err
			return
		}
		c.sessionHandler = handler
	})
	if storedErr, exists := c.initErrors["sessionHandler"]; exists {
		return nil, storedErr
	}
	return c.sessionHandler, nil
}

// HTTPServer returns the API HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics HTTP server instance.
// Returns nil if metrics are disabled in configuration.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		server, err := c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		c.metricsServer = server
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initAuthConfig maps the flat application configuration to the auth domain
// settings and validates the configured mode.
func (c *Container) initAuthConfig() (authDomain.Config, error) {
	authConfig := authDomain.Config{
		Mode:              c.config.AuthMode,
		UsernameHeader:    c.config.AuthUsernameHeader,
		DisplayNameHeader: c.config.AuthDisplayNameHeader,
		RolesHeader:       c.config.AuthRolesHeader,
		ModeratorRole:     c.config.AuthModeratorRole,
		UploadRole:        c.config.AuthUploadRole,
		RecorderRole:      c.config.AuthRecorderRole,
		EditorRole:        c.config.AuthEditorRole,
		SessionDuration:   c.config.AuthSessionDuration,
		CookieName:        c.config.SessionCookieName,
		CookieSecure:      c.config.SessionCookieSecure,
	}
	if err := authConfig.Validate(); err != nil {
		return authDomain.Config{}, fmt.Errorf("invalid auth configuration: %w", err)
	}
	return authConfig, nil
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initPool creates the connection pool gateway over the database connection.
func (c *Container) initPool() (*database.Pool, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for pool: %w", err)
	}
	return database.NewPool(
		db,
		c.config.DBPoolAcquireTimeout,
		c.config.DBPoolAcquireWarnThreshold,
		c.Logger(),
	), nil
}

// initRequestMetrics creates the request metrics recorder.
func (c *Container) initRequestMetrics() (metrics.RequestMetrics, error) {
	if !c.config.MetricsEnabled {
		return metrics.NewNoOpRequestMetrics(), nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for request metrics: %w", err)
	}

	requestMetrics, err := metrics.NewRequestMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create request metrics: %w", err)
	}
	return requestMetrics, nil
}

// initSessionRepository creates the session repository instance.
func (c *Container) initSessionRepository() (authUsecase.SessionRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for session repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return authRepository.NewMySQLSessionRepository(db), nil
	case "postgres":
		return authRepository.NewPostgreSQLSessionRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initEventRepository creates the event repository instance.
func (c *Container) initEventRepository() (eventUsecase.EventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for event repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return eventRepository.NewMySQLEventRepository(db), nil
	case "postgres":
		return eventRepository.NewPostgreSQLEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initSessionUseCase creates the session use case with all its dependencies.
func (c *Container) initSessionUseCase() (authUsecase.SessionUseCase, error) {
	authConfig, err := c.AuthConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth config for session use case: %w", err)
	}

	sessionRepo, err := c.SessionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get session repository for session use case: %w", err)
	}

	return authUsecase.NewSessionUseCase(authConfig, sessionRepo, c.Logger()), nil
}

// initEventUseCase creates the event use case with all its dependencies.
func (c *Container) initEventUseCase() (eventUsecase.EventUseCase, error) {
	eventRepo, err := c.EventRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get event repository for event use case: %w", err)
	}
	return eventUsecase.NewEventUseCase(eventRepo), nil
}

// initResolver creates the identity resolver. The session repository is only
// wired in when the auth mode persists sessions.
func (c *Container) initResolver() (*auth.Resolver, error) {
	authConfig, err := c.AuthConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth config for resolver: %w", err)
	}

	var sessions auth.SessionLookup
	if authConfig.SessionsEnabled() {
		sessionRepo, err := c.SessionRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get session repository for resolver: %w", err)
		}
		sessions = sessionRepo
	}

	return auth.NewResolver(authConfig, sessions, c.Logger()), nil
}

// initDispatcher creates the query dispatcher over the catalog use case.
func (c *Container) initDispatcher() (*api.Dispatcher, error) {
	eventUseCase, err := c.EventUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get event use case for dispatcher: %w", err)
	}
	return api.NewDispatcher(eventUseCase), nil
}

// initScope creates the transactional request scope runner.
func (c *Container) initScope() (*api.Scope, error) {
	authConfig, err := c.AuthConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth config for scope: %w", err)
	}

	pool, err := c.Pool()
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for scope: %w", err)
	}

	resolver, err := c.Resolver()
	if err != nil {
		return nil, fmt.Errorf("failed to get resolver for scope: %w", err)
	}

	return api.NewScope(pool, resolver, authConfig, c.Logger()), nil
}

// initQueryHandler creates the query HTTP handler.
func (c *Container) initQueryHandler() (*api.QueryHandler, error) {
	scope, err := c.Scope()
	if err != nil {
		return nil, fmt.Errorf("failed to get scope for query handler: %w", err)
	}

	dispatcher, err := c.Dispatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatcher for query handler: %w", err)
	}

	requestMetrics, err := c.RequestMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get request metrics for query handler: %w", err)
	}

	return api.NewQueryHandler(scope, dispatcher, requestMetrics, c.Logger()), nil
}

// initSessionHandler creates the session HTTP handler when sessions are enabled.
func (c *Container) initSessionHandler() (*authhttp.SessionHandler, error) {
	authConfig, err := c.AuthConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth config for session handler: %w", err)
	}
	if !authConfig.SessionsEnabled() {
		return nil, nil
	}

	resolver, err := c.Resolver()
	if err != nil {
		return nil, fmt.Errorf("failed to get resolver for session handler: %w", err)
	}

	sessionUseCase, err := c.SessionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get session use case for session handler: %w", err)
	}

	requestMetrics, err := c.RequestMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get request metrics for session handler: %w", err)
	}

	return authhttp.NewSessionHandler(authConfig, resolver, sessionUseCase, requestMetrics, c.Logger()), nil
}

// initHTTPServer creates the API HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	authConfig, err := c.AuthConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth config for http server: %w", err)
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	queryHandler, err := c.QueryHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get query handler for http server: %w", err)
	}

	sessionHandler, err := c.SessionHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get session handler for http server: %w", err)
	}

	var httpMetrics gin.HandlerFunc
	if c.config.MetricsEnabled {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
		}
		httpMetrics = metrics.HTTPMetricsMiddleware(provider.MeterProvider(), c.config.MetricsNamespace)
	}

	return http.NewServer(
		c.config,
		authConfig,
		db,
		queryHandler,
		sessionHandler,
		httpMetrics,
		c.Logger(),
	), nil
}

// initMetricsServer creates the metrics HTTP server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(
		c.config.ServerHost,
		c.config.MetricsPort,
		c.Logger(),
		provider,
	), nil
}

package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/shaiksadikjanu/REACT-EDITOR/internal/api/http"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/api/middleware"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/api/ws"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/identity"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/preview"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/sandbox"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/scheduler"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/templates"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/workspace"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/config"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/logging"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/monitoring"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/tracing"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/providers/cdn"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	workspaces *workspace.Manager
	store      *store.Store
	host       *sandbox.Host
	runtime    *sandbox.Runtime
	tracer     *tracing.Tracer
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing preview server",
		zap.String("port", cfg.Server.Port),
		zap.String("mode", cfg.Preview.Mode),
		zap.Duration("debounce", cfg.Preview.Debounce.Std()),
		zap.String("cdn_host", cfg.Preview.CDNHost),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("react-editor", logger.Component("tracing"))

	db, err := store.OpenDB(cfg.Storage.Path,
		store.WithMkdirAll(),
		store.WithBusyTimeout(int(cfg.Storage.BusyTimeout.Std().Milliseconds())),
		store.WithSynchronous(cfg.Storage.Synchronous),
	)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}
	st := store.New(db, store.WithLogger(logger.Component("store")))
	logger.Info("Opened project store",
		zap.String("path", cfg.Storage.Path),
		zap.Duration("busy_timeout", cfg.Storage.BusyTimeout.Std()),
		zap.String("synchronous", cfg.Storage.Synchronous),
	)

	ids, err := newIdentity(cfg.Auth, logger)
	if err != nil {
		st.Close()
		tracer.Close()
		return nil, err
	}

	mode, err := scheduler.ParseMode(cfg.Preview.Mode)
	if err != nil {
		st.Close()
		tracer.Close()
		return nil, err
	}

	compiler := preview.NewCompiler(cfg.Preview.CDNHost, logger.Component("preview"))
	host := sandbox.NewHost(cfg.Preview.BaseURL, logger.Component("host"))

	// The runtime reports into the manager, which does not exist yet.
	var manager *workspace.Manager
	runtimeConfig := sandbox.DefaultConfig()
	if cfg.Preview.CheckTimeout > 0 {
		runtimeConfig.Timeout = cfg.Preview.CheckTimeout.Std()
	}
	runtime := sandbox.NewRuntime(runtimeConfig, func(r sandbox.Report) {
		manager.DispatchReport(r)
	}, logger.Component("runtime"))

	var sb sandbox.Sandbox = host
	if cfg.Preview.Headless {
		sb = sandbox.NewMirror(host, runtime)
		logger.Info("Headless replay enabled")
	}

	manager = workspace.NewManager(compiler, sb, st, workspace.Config{
		Delay:       cfg.Preview.Debounce.Std(),
		Mode:        mode,
		MaxPerOwner: cfg.Preview.MaxWorkspaces,
	}, logger.Component("workspace")).
		WithMetrics(metrics).
		WithPreviewURL(host.URL)

	catalog := templates.NewCatalog()
	stats, err := templates.NewSeeder(catalog, cfg.Templates.Dir, logger.Component("templates")).Seed(context.Background())
	if err != nil {
		logger.Warn("Failed to seed templates", zap.Error(err))
	} else {
		logger.Info("Loaded templates", zap.Int("loaded", stats.Loaded), zap.Int("failed", stats.Failed))
	}

	probeConfig := cdn.DefaultConfig()
	probeConfig.Timeout = cfg.CDN.ProbeTimeout.Std()
	probeConfig.Retries = cfg.CDN.ProbeRetries
	probeConfig.RatePerSecond = cfg.CDN.ProbeRPS
	prober := cdn.NewProber(probeConfig, logger.Component("cdn"), cdn.WithMetrics(metrics))

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(apihttp.Deps{
		Workspaces: manager,
		Store:      st,
		Identity:   ids,
		Templates:  catalog,
		Host:       host,
		Runner:     runtime,
		Prober:     prober,
		Metrics:    metrics,
		Logger:     logger.Component("api"),
	})
	auth := middleware.Auth(ids)
	handlers.Register(router, auth)

	// WebSocket
	wsHandler := ws.NewHandler(manager, st, metrics, logger.Component("stream"))
	router.GET("/stream", auth, wsHandler.HandleConnection)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		workspaces: manager,
		store:      st,
		host:       host,
		runtime:    runtime,
		tracer:     tracer,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
	}, nil
}

// newIdentity builds the token service. Without a configured secret a
// random one is generated, so sessions do not survive a restart.
func newIdentity(cfg config.AuthConfig, logger *logging.Logger) (*identity.Service, error) {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate auth secret: %w", err)
		}
		secret = []byte(hex.EncodeToString(buf))
		logger.Warn("AUTH_SECRET not set, using an ephemeral secret")
	}
	ids, err := identity.NewService(secret, cfg.TokenTTL.Std())
	if err != nil {
		return nil, fmt.Errorf("failed to create identity service: %w", err)
	}
	return ids, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops. A server stopped
// by Close returns nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown failed", zap.Error(err))
		errs = append(errs, err)
	}

	s.workspaces.Shutdown()
	s.runtime.Close()
	s.host.Close()
	s.tracer.Close()

	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close project store", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to close project store: %w", err))
	}

	// Sync logger before exit
	s.logger.Sync()

	return errors.Join(errs...)
}

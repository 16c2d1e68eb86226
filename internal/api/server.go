package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/appaccess/internal/audit"
	"github.com/nerrad567/appaccess/internal/auth"
	"github.com/nerrad567/appaccess/internal/directory"
	"github.com/nerrad567/appaccess/internal/events"
	"github.com/nerrad567/appaccess/internal/infrastructure/config"
	"github.com/nerrad567/appaccess/internal/infrastructure/influxdb"
	"github.com/nerrad567/appaccess/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by infrastructure the health endpoint reports on.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Auth         *auth.Service
	Users        auth.UserRepository
	Applications directory.ApplicationRepository
	Permissions  directory.PermissionRepository
	Audit        audit.Repository

	// Events receives access-change events. The server adds its WebSocket
	// hub as a sink. Optional.
	Events *events.Fanout

	// Influx records auth outcomes. Optional.
	Influx *influxdb.Client

	// Health lists named components reported by GET /health, e.g. the
	// database and the MQTT client. Optional.
	Health map[string]HealthChecker

	// Registry receives the Prometheus collectors. A private registry is
	// used when nil.
	Registry *prometheus.Registry

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	version  string
	started  time.Time
	authSvc  *auth.Service
	users    auth.UserRepository
	apps     directory.ApplicationRepository
	perms    directory.PermissionRepository
	auditLog audit.Repository
	recorder *audit.Recorder
	events   *events.Fanout
	influx   *influxdb.Client
	health   map[string]HealthChecker
	metrics  *metrics
	limiter  *ipLimiter
	tickets  *ticketStore
	hub      *Hub
	server   *http.Server
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("auth service is required")
	}
	if deps.Users == nil || deps.Applications == nil || deps.Permissions == nil {
		return nil, errors.New("user, application and permission repositories are required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		version:  deps.Version,
		started:  time.Now(),
		authSvc:  deps.Auth,
		users:    deps.Users,
		apps:     deps.Applications,
		perms:    deps.Permissions,
		auditLog: deps.Audit,
		events:   deps.Events,
		influx:   deps.Influx,
		health:   deps.Health,
		tickets:  newTicketStore(),
	}

	if deps.Audit != nil {
		s.recorder = audit.NewRecorder(deps.Audit, deps.Logger.Component("audit").Logger)
	}

	s.hub = NewHub(s.wsCfg, s.logger)
	if s.events == nil {
		s.events = events.NewFanout(nil)
	}
	s.events.Add(s.hub)

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := newMetrics(reg, s.hub)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	s.metrics = m

	if s.secCfg.RateLimit.Enabled {
		s.limiter = newIPLimiter(s.secCfg.RateLimit.RequestsPerMinute, s.secCfg.RateLimit.Burst)
	}

	return s, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and the ticket and rate-limit janitors, then
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.janitor(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// janitor periodically drops expired WebSocket tickets, idle rate-limit
// buckets and expired refresh tokens.
func (s *Server) janitor(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tickets.purge(now)
			if s.limiter != nil {
				s.limiter.purge(now)
			}
			if n, err := s.authSvc.PurgeExpired(ctx); err != nil {
				s.logger.Warn("purging expired refresh tokens failed", "error", err)
			} else if n > 0 {
				s.logger.Debug("purged expired refresh tokens", "count", n)
			}
		}
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}

	return nil
}

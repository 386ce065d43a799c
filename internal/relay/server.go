package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/scrubmark/scrubmark/internal/cache"
	"github.com/scrubmark/scrubmark/internal/config"
	"github.com/scrubmark/scrubmark/internal/logger"
	"github.com/scrubmark/scrubmark/internal/store"
	"github.com/scrubmark/scrubmark/internal/web"
	"github.com/scrubmark/scrubmark/internal/websocket"
)

// Version is the service version reported by /info
const Version = "0.1.0"

// Server represents the annotation relay server
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	router  *mux.Router
	server  *http.Server
	wsHub   *websocket.Hub
	cache   *cache.ResultCache
	store   *store.Store
	limiter *rateLimiter
	started time.Time
}

// New creates a new relay server instance
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	hubConfig := &websocket.HubConfig{
		BroadcastAnnotations: cfg.WebSocket.Events.BroadcastAnnotations,
		BroadcastRequests:    cfg.WebSocket.Events.BroadcastRequests,
		BroadcastSystem:      cfg.WebSocket.Events.BroadcastSystem,
		BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
		Username:             cfg.WebSocket.Username,
		Password:             cfg.WebSocket.Password,
	}
	wsHub := websocket.NewHub(hubConfig, log.WithComponent("websocket").Logger)

	server := &Server{
		config:  cfg,
		logger:  log.WithComponent("relay"),
		router:  mux.NewRouter(),
		wsHub:   wsHub,
		limiter: newRateLimiter(&cfg.RateLimit),
		started: time.Now(),
	}

	if cfg.Cache.Enabled {
		resultCache, err := cache.New(&cfg.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		server.cache = resultCache
	}

	if cfg.Store.Enabled {
		auditStore, err := store.New(&cfg.Store, log.WithComponent("store").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit store: %w", err)
		}
		server.store = auditStore
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Dashboard endpoint - static HTML
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	// WebSocket endpoint for dashboard
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	// Annotation API endpoints
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/annotate", s.handleAnnotate).Methods("POST")
	api.HandleFunc("/chunks", s.handleChunks).Methods("POST")
	api.HandleFunc("/glob", s.handleGlob).Methods("POST")
	api.HandleFunc("/platforms", s.handlePlatforms).Methods("GET")
	api.HandleFunc("/audit/recent", s.handleAuditRecent).Methods("GET")
	api.HandleFunc("/audit/stats", s.handleAuditStats).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting scrubmark relay server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("cache_enabled", s.config.Cache.Enabled),
		zap.Bool("store_enabled", s.config.Store.Enabled),
		zap.Bool("rate_limit_enabled", s.config.RateLimit.Enabled),
	)

	go s.wsHub.Run()
	s.limiter.startCleanupRoutine()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scrubmark relay server")

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("Failed to close result cache", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("Failed to close audit store", zap.Error(err))
		}
	}

	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"scrubmark",
		"version":"%s",
		"uptime":"%s",
		"cache_enabled":%t,
		"store_enabled":%t,
		"max_depth":%d
	}`, Version, time.Since(s.started).Round(time.Second), s.config.Cache.Enabled, s.config.Store.Enabled, s.config.Annotate.MaxDepth)
}

// handleWebSocket handles WebSocket connections for the dashboard
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-it600/internal/bridges/salus"
	"github.com/nerrad567/gray-logic-it600/internal/catalog"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-it600/internal/it600"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ChannelDeviceUpdated is the WebSocket channel carrying changed snapshots.
const ChannelDeviceUpdated = "device.updated"

// Bridge is the part of *salus.Bridge the API drives.
type Bridge interface {
	Execute(ctx context.Context, cmd salus.CommandMessage) error
	Health() salus.HealthMessage
	AddListener(fn salus.Listener)
}

// DeviceReader exposes the gateway session's device registries.
type DeviceReader interface {
	Device(kind it600.Kind, id string) (it600.Device, bool)
	Devices(kind it600.Kind) map[string]it600.Device
}

// CatalogReader lists persisted catalog entries.
type CatalogReader interface {
	List(ctx context.Context) ([]catalog.Entry, error)
	ListByKind(ctx context.Context, kind string) ([]catalog.Entry, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Devices DeviceReader
	Bridge  Bridge
	Catalog CatalogReader
	Version string
}

// Server is the HTTP API server for the iT600 bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	devices DeviceReader
	bridge  Bridge
	catalog CatalogReader
	version string
	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger and device reader are required; the rest are optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device reader is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		devices: deps.Devices,
		bridge:  deps.Bridge,
		catalog: deps.Catalog,
		version: deps.Version,
		hub:     NewHub(deps.WS, deps.Logger),
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, registers a bridge listener that relays
// changed snapshots to WebSocket clients, and launches the HTTP listener in
// a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub; cancelling it disconnects clients
//
// Returns:
//   - error: Always nil; listener errors are logged
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	if s.bridge != nil {
		s.bridge.AddListener(s.relayUpdate)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// relayUpdate forwards a bridge update to WebSocket subscribers.
func (s *Server) relayUpdate(u salus.Update) {
	s.hub.Broadcast(ChannelDeviceUpdated, deviceView{
		Kind:  u.Kind,
		ID:    u.DeviceID,
		State: u.Device,
	})
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

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// it600bridge connects a Salus iT600 gateway to the Gray Logic bus.
//
// It polls the gateway over its encrypted local API, publishes each device
// snapshot on MQTT, writes telemetry to InfluxDB, keeps a device catalog in
// SQLite, emits NATS events, and serves a REST/WebSocket API.
//
// Configuration comes from configs/config.yaml (override with IT600_CONFIG),
// a .env file, and IT600_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-it600/internal/api"
	"github.com/nerrad567/gray-logic-it600/internal/bridges/salus"
	"github.com/nerrad567/gray-logic-it600/internal/catalog"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/events"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-it600/internal/it600"
	"github.com/nerrad567/gray-logic-it600/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envFile           = ".env"
	healthCheckWait   = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting it600bridge", "version", version, "commit", commit, "build_date", date)

	if err := config.LoadEnvFiles(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"gateway", cfg.Gateway.Host,
		"euid", logging.Redact(cfg.Gateway.EUID),
		"level", cfg.Logging.Level,
	)

	// Gateway session
	gateway, err := it600.NewGateway(it600.Options{
		Host:    cfg.Gateway.Host,
		EUID:    cfg.Gateway.EUID,
		Port:    cfg.Gateway.Port,
		Timeout: cfg.GetRequestTimeout(),
		Profile: it600.Profile(cfg.Gateway.Profile),
		Logger:  log.With("component", "gateway"),
		Debug:   cfg.Gateway.Debug,
	})
	if err != nil {
		return fmt.Errorf("creating gateway session: %w", err)
	}
	defer func() {
		if closeErr := gateway.Close(); closeErr != nil {
			log.Error("error closing gateway session", "error", closeErr)
		}
	}()

	// Device catalog
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	catalogRepo := catalog.NewSQLiteRepository(db.DB)
	log.Info("database ready", "path", db.Path())

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	opts := salus.BridgeOptions{
		Config:  cfg,
		Session: gateway,
		MQTT:    mqttClient,
		Version: version,
		Catalog: catalogRepo,
		Logger:  log.With("component", "bridge"),
	}

	// InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB, cfg.Gateway.Host)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			stats := influxClient.Stats()
			log.Info("closing InfluxDB connection", "points", stats.Points, "write_failures", stats.WriteFailures)
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })
		opts.Telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// NATS (optional)
	publisher, err := events.Connect(cfg.NATS, log.With("component", "events"))
	switch {
	case errors.Is(err, events.ErrDisabled):
		log.Info("NATS events disabled")
	case err != nil:
		return fmt.Errorf("connecting to NATS: %w", err)
	default:
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				log.Error("error closing NATS", "error", closeErr)
			}
		}()
		opts.Events = publisher
		log.Info("NATS connected", "url", cfg.NATS.URL, "subject_prefix", cfg.NATS.SubjectPrefix)
	}

	bridge, err := salus.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	// The API registers its WebSocket listener before the first poll so
	// clients see the initial snapshots.
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.With("component", "api"),
			Devices: gateway,
			Bridge:  bridge,
			Catalog: catalogRepo,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer bridge.Stop()

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckWait)
	if err := healthCheck(checkCtx, db, mqttClient, influxClient, publisher); err != nil {
		log.Warn("startup health check failed", "error", err)
	}
	cancel()

	log.Info("it600bridge running", "devices", gateway.DeviceCount(), "mac", gateway.MAC())

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// getConfigPath returns the configuration file path.
// IT600_CONFIG overrides the default.
func getConfigPath() string {
	if path := os.Getenv("IT600_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck probes each infrastructure dependency once. Optional clients
// that are nil are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, publisher *events.Publisher) error {
	var errs []error
	if err := db.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("mqtt: %w", err))
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	if publisher != nil {
		if err := publisher.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	return errors.Join(errs...)
}

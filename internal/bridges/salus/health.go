package salus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-it600/internal/it600"
)

const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the MQTT side of the reporter.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// healthSource supplies the facts a health message is built from.
type healthSource interface {
	healthInputs() healthInputs
}

type healthInputs struct {
	mqttConnected bool
	sessionState  it600.State
	address       string
	mac           string
	lastPoll      time.Time
	lastPollErr   error
	devices       int
	stats         BridgeStatistics
}

// HealthReporterConfig configures a HealthReporter.
type HealthReporterConfig struct {
	BridgeID  string
	Version   string
	Interval  time.Duration
	Publisher HealthPublisher
	Source    healthSource
	Logger    Logger
}

// HealthReporter publishes retained health on graylogic/health/it600 at a
// fixed interval.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	source    healthSource
	logger    Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter returns a reporter ready to Start.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	var logger Logger = noopLogger{}
	if cfg.Logger != nil {
		logger = cfg.Logger
	}
	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start publishes immediately and then every interval until ctx ends or
// Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		h.publishOrLog()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case <-ticker.C:
				h.publishOrLog()
			}
		}
	}()
}

// Stop ends reporting and publishes a final "stopping" status.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		_ = h.publish(h.build(HealthStopping, "bridge stopping")) //nolint:errcheck // best effort at shutdown
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(h.build(HealthStarting, "bridge starting"))
}

// PublishNow publishes the current status.
func (h *HealthReporter) PublishNow() error {
	return h.publish(h.Snapshot())
}

// Snapshot evaluates the current status without publishing it.
func (h *HealthReporter) Snapshot() HealthMessage {
	status, reason := h.determineStatus()
	return h.build(status, reason)
}

func (h *HealthReporter) publishOrLog() {
	if err := h.PublishNow(); err != nil {
		h.logger.Warn("failed to publish health", "error", err)
	}
}

// determineStatus ranks problems: no gateway session is unhealthy; a lost
// broker or failed last poll is degraded.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.source == nil {
		return HealthHealthy, ""
	}
	in := h.source.healthInputs()
	switch {
	case in.sessionState == it600.StateDisconnected:
		return HealthUnhealthy, "gateway not connected"
	case !in.mqttConnected:
		return HealthDegraded, "MQTT disconnected"
	case in.lastPollErr != nil:
		return HealthDegraded, "last poll failed: " + in.lastPollErr.Error()
	default:
		return HealthHealthy, ""
	}
}

func (h *HealthReporter) build(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        h.bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.source == nil {
		return msg
	}

	in := h.source.healthInputs()
	msg.DevicesManaged = in.devices
	stats := in.stats
	msg.Statistics = &stats
	msg.Gateway = &GatewayStatus{
		State:   in.sessionState.String(),
		Address: in.address,
		MAC:     in.mac,
	}
	if !in.lastPoll.IsZero() {
		t := in.lastPoll.UTC()
		msg.Gateway.LastPoll = &t
	}
	if in.lastPollErr != nil {
		msg.Gateway.LastPollError = in.lastPollErr.Error()
	}
	return msg
}

func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(mqtt.Topics{}.BridgeHealth(Protocol), payload, 1, true)
}

package salus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-it600/internal/catalog"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-it600/internal/it600"
)

const (
	// commandTimeout bounds one MQTT-initiated command including gate wait.
	commandTimeout = 15 * time.Second

	// pollTimeout bounds one full PollStatus run.
	pollTimeout = 60 * time.Second

	// catalogTimeout bounds one catalog upsert.
	catalogTimeout = 2 * time.Second

	defaultPollInterval = 30 * time.Second

	stateQoS = 1
)

// Session is the part of *it600.Gateway the bridge drives.
type Session interface {
	Connect(ctx context.Context) (string, error)
	PollStatus(ctx context.Context, notify bool) error
	AddUpdateCallback(kind it600.Kind, cb it600.UpdateCallback)
	Device(kind it600.Kind, id string) (it600.Device, bool)
	Devices(kind it600.Kind) map[string]it600.Device
	DeviceCount() int
	State() it600.State
	MAC() string

	SetClimateTemperature(ctx context.Context, id string, celsius float64) error
	SetClimateMode(ctx context.Context, id string, mode it600.HVACMode) error
	SetClimatePreset(ctx context.Context, id string, preset it600.Preset) error
	SetClimateFanMode(ctx context.Context, id string, mode it600.FanMode) error
	SetClimateLocked(ctx context.Context, id string, locked bool) error
	TurnOnSwitch(ctx context.Context, id string) error
	TurnOffSwitch(ctx context.Context, id string) error
	SetCoverPosition(ctx context.Context, id string, position int) error
	OpenCover(ctx context.Context, id string) error
	CloseCover(ctx context.Context, id string) error
}

// MQTTClient is satisfied by *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Telemetry is satisfied by *influxdb.Client.
type Telemetry interface {
	WriteReading(r influxdb.Reading)
	WriteAvailability(kind, deviceID string, available bool)
}

// Catalog is satisfied by *catalog.SQLiteRepository.
type Catalog interface {
	Upsert(ctx context.Context, e catalog.Entry) error
}

// EventPublisher is satisfied by *events.Publisher.
type EventPublisher interface {
	PublishDeviceUpdated(kind, deviceID string, snapshot any) error
}

// Logger is satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Update is passed to listeners when a device's snapshot changes.
type Update struct {
	Kind      it600.Kind   `json:"kind"`
	DeviceID  string       `json:"device_id"`
	Device    it600.Device `json:"device"`
	Timestamp time.Time    `json:"timestamp"`
}

// Listener receives changed snapshots. It runs on the poll goroutine and
// must not block.
type Listener func(Update)

// BridgeOptions configures a Bridge. Config, Session and MQTT are required.
type BridgeOptions struct {
	Config  *config.Config
	Session Session
	MQTT    MQTTClient
	Version string

	Telemetry Telemetry
	Catalog   Catalog
	Events    EventPublisher
	Logger    Logger
}

type bridgeStats struct {
	polls          atomic.Uint64
	pollErrors     atomic.Uint64
	statesSent     atomic.Uint64
	commandsOK     atomic.Uint64
	commandsFailed atomic.Uint64
}

// Bridge polls the gateway and connects it to the bus.
type Bridge struct {
	cfg     *config.Config
	session Session
	mqtt    MQTTClient
	health  *HealthReporter

	telemetry Telemetry
	catalog   Catalog
	events    EventPublisher
	logger    Logger

	listeners   []Listener
	listenersMu sync.RWMutex

	cache   stateCache
	cacheMu sync.Mutex

	stats bridgeStats

	pollMu      sync.RWMutex
	lastPoll    time.Time
	lastPollErr error

	pollNow   chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	stopped   atomic.Bool
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewBridge validates opts. Call Start to begin polling.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("gateway session is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		cfg:       opts.Config,
		session:   opts.Session,
		mqtt:      opts.MQTT,
		telemetry: opts.Telemetry,
		catalog:   opts.Catalog,
		events:    opts.Events,
		logger:    logger,
		cache:     make(stateCache),
		pollNow:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: cancel,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTT,
		Source:    b,
		Logger:    logger,
	})

	return b, nil
}

// AddListener registers fn for changed snapshots.
func (b *Bridge) AddListener(fn Listener) {
	b.listenersMu.Lock()
	b.listeners = append(b.listeners, fn)
	b.listenersMu.Unlock()
}

// Start connects the session, subscribes to commands, runs a first poll,
// and starts the poll loop and health reporter.
//
// A gateway that cannot be reached does not fail Start: the poll loop keeps
// retrying Connect and health reports the bridge unhealthy meanwhile.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Warn("failed to publish starting status", "error", err)
	}

	for _, kind := range it600.Kinds() {
		b.session.AddUpdateCallback(kind, b.onDeviceUpdate)
	}

	topic := mqtt.Topics{}.BridgeCommands(Protocol)
	if err := b.mqtt.Subscribe(topic, 1, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", topic)

	b.poll(ctx)

	b.wg.Add(1)
	go b.pollLoop()
	b.health.Start(b.ctx)

	b.logger.Info("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"devices", b.session.DeviceCount(),
		"poll_interval", b.cfg.GetPollInterval())
	return nil
}

// Stop ends polling and health reporting. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()
		b.logger.Info("bridge stopped")
	})
}

func (b *Bridge) isStopped() bool {
	return b.stopped.Load()
}

// RequestPoll asks the poll loop to refresh now. Requests made while one is
// pending are coalesced.
func (b *Bridge) RequestPoll() {
	b.requestPoll()
}

func (b *Bridge) requestPoll() {
	select {
	case b.pollNow <- struct{}{}:
	default:
	}
}

func (b *Bridge) pollLoop() {
	defer b.wg.Done()

	interval := b.cfg.GetPollInterval()
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.poll(b.ctx)
		case <-b.pollNow:
			b.poll(b.ctx)
		}
	}
}

// poll reconnects if needed and refreshes every kind.
func (b *Bridge) poll(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	var err error
	if b.session.State() == it600.StateDisconnected {
		var mac string
		mac, err = b.session.Connect(pctx)
		switch {
		case err == nil:
			b.logger.Info("gateway connected", "mac", mac)
		case ctx.Err() != nil:
			b.logger.Debug("gateway connect abandoned", "error", err)
		case errors.Is(err, it600.ErrAuthentication):
			b.logger.Error("gateway rejected encrypted request, check the EUID", "error", err)
		case errors.Is(err, it600.ErrConnectivity):
			b.logger.Error("gateway unreachable, check the host address", "error", err)
		}
	}
	if err == nil {
		err = b.session.PollStatus(pctx, true)
	}

	b.stats.polls.Add(1)
	if err != nil {
		b.stats.pollErrors.Add(1)
		b.logger.Error("gateway poll failed", "error", err)
	}

	b.pollMu.Lock()
	b.lastPoll = time.Now()
	b.lastPollErr = err
	b.pollMu.Unlock()
}

// onDeviceUpdate is registered for every kind and fans one device out to
// the sinks.
func (b *Bridge) onDeviceUpdate(ctx context.Context, kind it600.Kind, deviceID string) {
	dev, ok := b.session.Device(kind, deviceID)
	if !ok {
		return
	}
	now := time.Now().UTC()

	if b.telemetry != nil {
		if r, ok := readingFor(dev, now); ok {
			b.telemetry.WriteReading(r)
		}
		b.telemetry.WriteAvailability(string(kind), deviceID, dev.Info().Available)
	}

	if b.catalog != nil {
		cctx, cancel := context.WithTimeout(ctx, catalogTimeout)
		if err := b.catalog.Upsert(cctx, catalog.EntryFromDevice(dev, now)); err != nil {
			b.logger.Warn("catalog upsert failed", "kind", kind, "device_id", deviceID, "error", err)
		}
		cancel()
	}

	b.cacheMu.Lock()
	changed := b.cache.changed(dev)
	b.cacheMu.Unlock()
	if !changed {
		return
	}

	b.publishState(dev)

	if b.events != nil {
		if err := b.events.PublishDeviceUpdated(string(kind), deviceID, dev); err != nil {
			b.logger.Warn("event publish failed", "kind", kind, "device_id", deviceID, "error", err)
		}
	}

	update := Update{Kind: kind, DeviceID: deviceID, Device: dev, Timestamp: now}
	b.listenersMu.RLock()
	listeners := b.listeners
	b.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(update)
	}
}

func (b *Bridge) publishState(dev it600.Device) {
	msg := NewStateMessage(dev)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("encoding state failed", "device_id", msg.DeviceID, "error", err)
		return
	}
	topic := mqtt.Topics{}.BridgeState(Protocol, msg.Kind, msg.DeviceID)
	if err := b.mqtt.Publish(topic, payload, stateQoS, true); err != nil {
		b.logger.Warn("state publish failed", "topic", topic, "error", err)
		return
	}
	b.stats.statesSent.Add(1)
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("encoding ack failed", "command_id", ack.CommandID, "error", err)
		return
	}
	if ack.Kind == "" {
		b.logger.Warn("dropping ack without a device kind", "command_id", ack.CommandID, "device_id", ack.DeviceID)
		return
	}
	topic := mqtt.Topics{}.BridgeAck(Protocol, ack.Kind, ack.DeviceID)
	if err := b.mqtt.Publish(topic, payload, 1, false); err != nil {
		b.logger.Warn("ack publish failed", "topic", topic, "error", err)
	}
}

// handleCommand decodes an MQTT command. The kind and device id in the
// topic win over any in the payload.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parsing command on %s: %w", topic, err)
	}
	kind, id := mqtt.DeviceFromTopic(topic)
	if kind != "" {
		cmd.Kind = kind
	}
	if id != "" {
		cmd.DeviceID = id
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Source == "" {
		cmd.Source = "mqtt"
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	// The ack carries the outcome.
	_ = b.Execute(ctx, cmd) //nolint:errcheck // reported via ack
	return nil
}

// Health returns the current health snapshot.
func (b *Bridge) Health() HealthMessage {
	return b.health.Snapshot()
}

// healthInputs implements healthSource.
func (b *Bridge) healthInputs() healthInputs {
	b.pollMu.RLock()
	lastPoll, lastErr := b.lastPoll, b.lastPollErr
	b.pollMu.RUnlock()

	return healthInputs{
		mqttConnected: b.mqtt.IsConnected(),
		sessionState:  b.session.State(),
		address:       fmt.Sprintf("%s:%d", b.cfg.Gateway.Host, b.cfg.Gateway.Port),
		mac:           b.session.MAC(),
		lastPoll:      lastPoll,
		lastPollErr:   lastErr,
		devices:       b.session.DeviceCount(),
		stats: BridgeStatistics{
			Polls:          b.stats.polls.Load(),
			PollErrors:     b.stats.pollErrors.Load(),
			StatesSent:     b.stats.statesSent.Load(),
			CommandsOK:     b.stats.commandsOK.Load(),
			CommandsFailed: b.stats.commandsFailed.Load(),
		},
	}
}

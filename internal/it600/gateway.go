package it600

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults for Options.
const (
	DefaultPort    = 80
	DefaultTimeout = 5 * time.Second
)

// Request attributes understood by the gateway.
const (
	requestReadAll  = "readall"
	requestDeviceID = "deviceid"
	requestWrite    = "write"
)

// State is the session lifecycle state.
type State int32

const (
	// StateDisconnected is the state before Connect succeeds and after Close.
	StateDisconnected State = iota
	// StateConnected is an idle, connected session.
	StateConnected
	// StateRefreshing is set while PollStatus runs.
	StateRefreshing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateRefreshing:
		return "refreshing"
	default:
		return "disconnected"
	}
}

// Options configures a Gateway session.
type Options struct {
	// Host is the gateway's IP address or hostname. Required.
	Host string

	// EUID is the 16-hex-digit identifier printed on the gateway. Required.
	EUID string

	// Port defaults to 80.
	Port int

	// Timeout bounds each request attempt. Defaults to 5 seconds.
	Timeout time.Duration

	// Profile selects setpoint precision. Defaults to ProfileExtended.
	Profile Profile

	// HTTPClient is used for all requests. When nil the session creates
	// its own client and releases it on Close.
	HTTPClient HTTPDoer

	// Logger receives diagnostics. Optional.
	Logger Logger

	// Debug logs decrypted request and response bodies.
	Debug bool
}

// Gateway is a session with one iT600 gateway. It holds the device
// registries populated by PollStatus and issues write commands.
//
// All public methods are thread-safe.
type Gateway struct {
	host      string
	port      int
	profile   Profile
	transport *transport
	owned     *http.Client
	logger    Logger
	callbacks *callbackRegistry

	state atomic.Int32
	mac   atomic.Value // string

	registryMu sync.RWMutex
	registries map[Kind]map[string]Device // published maps are never mutated
}

// NewGateway validates opts and prepares a session. No network traffic
// happens until Connect.
func NewGateway(opts Options) (*Gateway, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if opts.EUID == "" {
		return nil, fmt.Errorf("%w: euid is required", ErrInvalidConfig)
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, opts.Port)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Profile == "" {
		opts.Profile = ProfileExtended
	}
	if opts.Profile != ProfileBasic && opts.Profile != ProfileExtended {
		return nil, fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, opts.Profile)
	}

	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	c, err := NewCipher(opts.EUID)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		host:       opts.Host,
		port:       opts.Port,
		profile:    opts.Profile,
		logger:     logger,
		callbacks:  newCallbackRegistry(logger),
		registries: make(map[Kind]map[string]Device),
	}

	client := opts.HTTPClient
	if client == nil {
		g.owned = &http.Client{}
		client = g.owned
	}
	g.transport = newTransport(opts.Host, opts.Port, c, client, opts.Timeout, logger, opts.Debug)

	return g, nil
}

// Connect probes the gateway with a readall request and returns its LAN
// MAC address.
//
// When the gateway cannot be reached, a plain HTTP GET decides between a
// wrong host (ErrConnectivity) and a wrong EUID (ErrAuthentication).
func (g *Gateway) Connect(ctx context.Context) (string, error) {
	env, err := g.transport.request(ctx, commandRead, readAllRequest())
	if err != nil {
		if !errors.Is(err, ErrConnectivity) || ctx.Err() != nil {
			return "", err
		}
		if perr := g.transport.probe(ctx); perr != nil {
			return "", fmt.Errorf("gateway %s unreachable, check the host address: %w", g.address(), perr)
		}
		return "", fmt.Errorf("%w: gateway %s answers HTTP but not the encrypted protocol, check the EUID: %w",
			ErrAuthentication, g.address(), err)
	}

	for _, rec := range decodeRecords(env.ID, g.skipRecord("connect")) {
		if rec.Gateway != nil && rec.Gateway.NetworkLANMAC != "" {
			mac := string(rec.Gateway.NetworkLANMAC)
			g.mac.Store(mac)
			g.state.Store(int32(StateConnected))
			g.logger.Info("connected to gateway", "address", g.address(), "mac", mac)
			return mac, nil
		}
	}

	return "", fmt.Errorf("%w: readall response from %s has no gateway record", ErrCommand, g.address())
}

// MAC returns the gateway MAC address found by Connect.
func (g *Gateway) MAC() string {
	mac, _ := g.mac.Load().(string)
	return mac
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// Close releases the session's HTTP connections. The registries stay
// readable.
func (g *Gateway) Close() error {
	g.state.Store(int32(StateDisconnected))
	if g.owned != nil {
		g.owned.CloseIdleConnections()
	}
	return nil
}

// AddUpdateCallback subscribes cb to updates of one kind.
func (g *Gateway) AddUpdateCallback(kind Kind, cb UpdateCallback) {
	g.callbacks.add(kind, cb)
}

// PollStatus refreshes every device kind from the gateway.
//
// It reads the inventory once, then refreshes each kind with one batched
// deviceid request. A kind that fails is logged and keeps its previous
// snapshots. When notify is true, each decoded device is published and its
// callbacks run before the kind's registry is replaced.
//
// The returned error covers only the inventory read.
func (g *Gateway) PollStatus(ctx context.Context, notify bool) error {
	if g.State() == StateDisconnected {
		return ErrNotConnected
	}
	g.state.Store(int32(StateRefreshing))
	defer g.state.CompareAndSwap(int32(StateRefreshing), int32(StateConnected))

	env, err := g.transport.request(ctx, commandRead, readAllRequest())
	if err != nil {
		return fmt.Errorf("reading device inventory: %w", err)
	}
	inventory := decodeRecords(env.ID, g.skipRecord("readall"))

	for _, kind := range Kinds() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.refreshKind(ctx, kind, inventory, notify); err != nil {
			g.logger.Error("refreshing devices failed", "kind", kind, "error", err)
		}
	}

	return nil
}

// refreshKind replaces the registry of one kind. A failed request keeps the
// previous registry; a device that fails to decode or notify is logged and
// the rest of the kind is still refreshed.
func (g *Gateway) refreshKind(ctx context.Context, kind Kind, inventory []*RawDeviceRecord, notify bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: refreshing %s panicked: %v", ErrCommand, kind, r)
		}
	}()

	var handles []DataHandle
	for _, rec := range inventory {
		if rec.UniqueID() != "" && selects(kind, rec) {
			handles = append(handles, *rec.Data)
		}
	}

	fresh := make(map[string]Device, len(handles))
	if len(handles) == 0 {
		g.swap(kind, fresh)
		return nil
	}

	env, err := g.transport.request(ctx, commandRead, deviceIDRequest(handles))
	if err != nil {
		return fmt.Errorf("reading %s devices: %w", kind, err)
	}

	for _, rec := range decodeRecords(env.ID, g.skipRecord(string(kind))) {
		dev := g.decodeRecord(kind, rec)
		if dev == nil {
			continue
		}

		id := dev.Info().UniqueID
		fresh[id] = dev
		if notify {
			g.inject(kind, dev)
			g.notifyDevice(ctx, kind, id)
		}
	}

	g.swap(kind, fresh)
	g.logger.Debug("refreshed devices", "kind", kind, "count", len(fresh))
	return nil
}

// decodeRecord decodes one record, returning nil for records that are
// skipped or fail.
func (g *Gateway) decodeRecord(kind Kind, rec *RawDeviceRecord) (dev Device) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("decoding device panicked", "kind", kind, "uniid", rec.UniqueID(), "panic", r)
			dev = nil
		}
	}()

	dev, err := DecodeDevice(kind, rec, g.profile)
	if err != nil {
		g.logger.Error("decoding device failed", "kind", kind, "uniid", rec.UniqueID(), "error", err)
		return nil
	}
	return dev
}

// notifyDevice runs the callbacks for one device. A panicking callback
// stops that device's remaining callbacks only.
func (g *Gateway) notifyDevice(ctx context.Context, kind Kind, id string) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("device update callback panicked", "kind", kind, "device_id", id, "panic", r)
		}
	}()
	g.callbacks.notify(ctx, kind, id)
}

// swap publishes a freshly built registry for kind.
func (g *Gateway) swap(kind Kind, fresh map[string]Device) {
	g.registryMu.Lock()
	g.registries[kind] = fresh
	g.registryMu.Unlock()
}

// inject publishes one device into the live registry by copying it.
func (g *Gateway) inject(kind Kind, dev Device) {
	g.registryMu.Lock()
	defer g.registryMu.Unlock()

	live := g.registries[kind]
	next := make(map[string]Device, len(live)+1)
	for id, d := range live {
		next[id] = d
	}
	next[dev.Info().UniqueID] = dev
	g.registries[kind] = next
}

func (g *Gateway) skipRecord(stage string) func(int, error) {
	return func(i int, err error) {
		g.logger.Error("skipping malformed device record", "stage", stage, "index", i, "error", err)
	}
}

func (g *Gateway) address() string {
	return fmt.Sprintf("%s:%d", g.host, g.port)
}

// Devices returns a copy of the registry for kind.
func (g *Gateway) Devices(kind Kind) map[string]Device {
	g.registryMu.RLock()
	defer g.registryMu.RUnlock()

	out := make(map[string]Device, len(g.registries[kind]))
	for id, d := range g.registries[kind] {
		out[id] = d
	}
	return out
}

// Device looks up one device of kind.
func (g *Gateway) Device(kind Kind, id string) (Device, bool) {
	g.registryMu.RLock()
	defer g.registryMu.RUnlock()

	d, ok := g.registries[kind][id]
	return d, ok
}

// DeviceCount returns the number of devices across all kinds.
func (g *Gateway) DeviceCount() int {
	g.registryMu.RLock()
	defer g.registryMu.RUnlock()

	n := 0
	for _, reg := range g.registries {
		n += len(reg)
	}
	return n
}

// GatewayDevice returns the gateway's own snapshot.
func (g *Gateway) GatewayDevice() (GatewayDevice, bool) {
	devs := g.Devices(KindGateway)
	if len(devs) == 0 {
		return GatewayDevice{}, false
	}
	ids := make([]string, 0, len(devs))
	for id := range devs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	gd, ok := devs[ids[0]].(GatewayDevice)
	return gd, ok
}

// ClimateDevices returns all single-setpoint thermostats.
func (g *Gateway) ClimateDevices() map[string]ClimateDevice {
	return typed[ClimateDevice](g.Devices(KindClimate))
}

// ClimateDevice returns one thermostat.
func (g *Gateway) ClimateDevice(id string) (ClimateDevice, bool) {
	return lookup[ClimateDevice](g, KindClimate, id)
}

// FanCoilDevices returns all fan-coil controllers.
func (g *Gateway) FanCoilDevices() map[string]FanCoilDevice {
	return typed[FanCoilDevice](g.Devices(KindFanCoil))
}

// FanCoilDevice returns one fan-coil controller.
func (g *Gateway) FanCoilDevice(id string) (FanCoilDevice, bool) {
	return lookup[FanCoilDevice](g, KindFanCoil, id)
}

// BinarySensorDevices returns all binary sensors.
func (g *Gateway) BinarySensorDevices() map[string]BinarySensorDevice {
	return typed[BinarySensorDevice](g.Devices(KindBinarySensor))
}

// BinarySensorDevice returns one binary sensor.
func (g *Gateway) BinarySensorDevice(id string) (BinarySensorDevice, bool) {
	return lookup[BinarySensorDevice](g, KindBinarySensor, id)
}

// SwitchDevices returns all switch endpoints.
func (g *Gateway) SwitchDevices() map[string]SwitchDevice {
	return typed[SwitchDevice](g.Devices(KindSwitch))
}

// SwitchDevice returns one switch endpoint.
func (g *Gateway) SwitchDevice(id string) (SwitchDevice, bool) {
	return lookup[SwitchDevice](g, KindSwitch, id)
}

// CoverDevices returns all covers.
func (g *Gateway) CoverDevices() map[string]CoverDevice {
	return typed[CoverDevice](g.Devices(KindCover))
}

// CoverDevice returns one cover.
func (g *Gateway) CoverDevice(id string) (CoverDevice, bool) {
	return lookup[CoverDevice](g, KindCover, id)
}

// SensorDevices returns all temperature sensors.
func (g *Gateway) SensorDevices() map[string]SensorDevice {
	return typed[SensorDevice](g.Devices(KindSensor))
}

// SensorDevice returns one temperature sensor.
func (g *Gateway) SensorDevice(id string) (SensorDevice, bool) {
	return lookup[SensorDevice](g, KindSensor, id)
}

func typed[T Device](devs map[string]Device) map[string]T {
	out := make(map[string]T, len(devs))
	for id, d := range devs {
		if t, ok := d.(T); ok {
			out[id] = t
		}
	}
	return out
}

func lookup[T Device](g *Gateway, kind Kind, id string) (T, bool) {
	var zero T
	d, ok := g.Device(kind, id)
	if !ok {
		return zero, false
	}
	t, ok := d.(T)
	return t, ok
}

type gatewayRequest struct {
	RequestAttr string           `json:"requestAttr"`
	ID          []map[string]any `json:"id,omitempty"`
}

func readAllRequest() gatewayRequest {
	return gatewayRequest{RequestAttr: requestReadAll}
}

func deviceIDRequest(handles []DataHandle) gatewayRequest {
	ids := make([]map[string]any, len(handles))
	for i, h := range handles {
		ids[i] = map[string]any{"data": h}
	}
	return gatewayRequest{RequestAttr: requestDeviceID, ID: ids}
}

func writeRequest(h DataHandle, cluster string, attrs map[string]any) gatewayRequest {
	return gatewayRequest{
		RequestAttr: requestWrite,
		ID:          []map[string]any{{"data": h, cluster: attrs}},
	}
}

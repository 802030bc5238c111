package salus

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/gray-logic-it600/internal/catalog"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-it600/internal/it600"
)

// MockMQTTClient records publishes and keeps subscription handlers.
type MockMQTTClient struct {
	mu        sync.Mutex
	published []mockPublish
	handlers  map[string]mqtt.MessageHandler
	connected bool
	failSub   error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{connected: true, handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSub != nil {
		return m.failSub
	}
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

// Published returns messages sent to topic.
func (m *MockMQTTClient) Published(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	m.published = nil
	m.mu.Unlock()
}

// SimulateMessage delivers payload on topic through the handler registered
// for pattern.
func (m *MockMQTTClient) SimulateMessage(pattern, topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if !ok {
		return errors.New("no handler for " + pattern)
	}
	return handler(topic, payload)
}

// write is one session write call.
type write struct {
	Method string
	ID     string
	Value  any
}

// fakeSession is an in-memory Session.
type fakeSession struct {
	mu         sync.Mutex
	state      it600.State
	mac        string
	devices    map[it600.Kind]map[string]it600.Device
	callbacks  map[it600.Kind][]it600.UpdateCallback
	writes     []write
	connectErr error
	pollErr    error
	writeErr   error
	polls      int
	connects   int
	polled     chan struct{}
}

func newFakeSession(devs ...it600.Device) *fakeSession {
	s := &fakeSession{
		state:     it600.StateConnected,
		mac:       "001E5E0D3290",
		devices:   make(map[it600.Kind]map[string]it600.Device),
		callbacks: make(map[it600.Kind][]it600.UpdateCallback),
		polled:    make(chan struct{}, 16),
	}
	for _, d := range devs {
		s.put(d)
	}
	return s
}

func (s *fakeSession) put(d it600.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.devices[d.Kind()] == nil {
		s.devices[d.Kind()] = make(map[string]it600.Device)
	}
	s.devices[d.Kind()][d.Info().UniqueID] = d
}

func (s *fakeSession) Connect(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	if s.connectErr != nil {
		return "", s.connectErr
	}
	s.state = it600.StateConnected
	return s.mac, nil
}

func (s *fakeSession) PollStatus(ctx context.Context, notify bool) error {
	s.mu.Lock()
	s.polls++
	err := s.pollErr
	type target struct {
		kind it600.Kind
		id   string
		cbs  []it600.UpdateCallback
	}
	var targets []target
	if err == nil && notify {
		for _, kind := range it600.Kinds() {
			for id := range s.devices[kind] {
				targets = append(targets, target{kind, id, s.callbacks[kind]})
			}
		}
	}
	s.mu.Unlock()

	for _, t := range targets {
		for _, cb := range t.cbs {
			cb(ctx, t.kind, t.id)
		}
	}
	select {
	case s.polled <- struct{}{}:
	default:
	}
	return err
}

func (s *fakeSession) AddUpdateCallback(kind it600.Kind, cb it600.UpdateCallback) {
	s.mu.Lock()
	s.callbacks[kind] = append(s.callbacks[kind], cb)
	s.mu.Unlock()
}

func (s *fakeSession) Device(kind it600.Kind, id string) (it600.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[kind][id]
	return d, ok
}

func (s *fakeSession) Devices(kind it600.Kind) map[string]it600.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]it600.Device, len(s.devices[kind]))
	for id, d := range s.devices[kind] {
		out[id] = d
	}
	return out
}

func (s *fakeSession) DeviceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.devices {
		n += len(m)
	}
	return n
}

func (s *fakeSession) State() it600.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) MAC() string { return s.mac }

func (s *fakeSession) record(method, id string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, write{method, id, value})
	return s.writeErr
}

func (s *fakeSession) Writes() []write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]write(nil), s.writes...)
}

func (s *fakeSession) SetClimateTemperature(_ context.Context, id string, c float64) error {
	return s.record("SetClimateTemperature", id, c)
}

func (s *fakeSession) SetClimateMode(_ context.Context, id string, m it600.HVACMode) error {
	if _, fc := s.Device(it600.KindFanCoil, id); fc && m == it600.HVACModeOff {
		return it600.ErrInvalidArgument
	}
	return s.record("SetClimateMode", id, m)
}

func (s *fakeSession) SetClimatePreset(_ context.Context, id string, p it600.Preset) error {
	return s.record("SetClimatePreset", id, p)
}

func (s *fakeSession) SetClimateFanMode(_ context.Context, id string, m it600.FanMode) error {
	return s.record("SetClimateFanMode", id, m)
}

func (s *fakeSession) SetClimateLocked(_ context.Context, id string, l bool) error {
	return s.record("SetClimateLocked", id, l)
}

func (s *fakeSession) TurnOnSwitch(_ context.Context, id string) error {
	return s.record("TurnOnSwitch", id, nil)
}

func (s *fakeSession) TurnOffSwitch(_ context.Context, id string) error {
	return s.record("TurnOffSwitch", id, nil)
}

func (s *fakeSession) SetCoverPosition(_ context.Context, id string, p int) error {
	if p < 0 || p > 100 {
		return it600.ErrInvalidArgument
	}
	return s.record("SetCoverPosition", id, p)
}

func (s *fakeSession) OpenCover(_ context.Context, id string) error {
	return s.record("OpenCover", id, nil)
}

func (s *fakeSession) CloseCover(_ context.Context, id string) error {
	return s.record("CloseCover", id, nil)
}

type recordingTelemetry struct {
	mu           sync.Mutex
	readings     []influxdb.Reading
	availability map[string]bool
}

func (t *recordingTelemetry) WriteReading(r influxdb.Reading) {
	t.mu.Lock()
	t.readings = append(t.readings, r)
	t.mu.Unlock()
}

func (t *recordingTelemetry) WriteAvailability(kind, id string, available bool) {
	t.mu.Lock()
	if t.availability == nil {
		t.availability = make(map[string]bool)
	}
	t.availability[kind+"/"+id] = available
	t.mu.Unlock()
}

type recordingCatalog struct {
	mu      sync.Mutex
	entries map[string]catalog.Entry
	err     error
}

func (c *recordingCatalog) Upsert(_ context.Context, e catalog.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.entries == nil {
		c.entries = make(map[string]catalog.Entry)
	}
	c.entries[e.Kind+"/"+e.ID] = e
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEvents) PublishDeviceUpdated(kind, id string, _ any) error {
	e.mu.Lock()
	e.events = append(e.events, kind+"/"+id)
	e.mu.Unlock()
	return nil
}

func (e *recordingEvents) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{Host: "192.168.1.50", Port: 80},
		Bridge:  config.BridgeConfig{ID: "it600", PollInterval: 3600, HealthInterval: 3600},
	}
}

// Fixtures.
var (
	thermostat = it600.ClimateDevice{
		DeviceInfo:         it600.DeviceInfo{UniqueID: "th1", Name: "Lounge", Available: true, Manufacturer: "SALUS", Model: "SQ610RF"},
		CurrentTemperature: 20.5,
		TargetTemperature:  21,
		HVACMode:           it600.HVACModeHeat,
		HVACAction:         it600.HVACActionHeating,
	}
	fanCoil = it600.FanCoilDevice{
		DeviceInfo:         it600.DeviceInfo{UniqueID: "fc1", Name: "Office", Available: true, Manufacturer: "SALUS", Model: "FC600"},
		CurrentTemperature: 23,
		TargetTemperature:  22,
		HVACMode:           it600.HVACModeCool,
		HVACAction:         it600.HVACActionCooling,
		FanMode:            it600.FanModeAuto,
	}
	relay = it600.SwitchDevice{
		DeviceInfo: it600.DeviceInfo{UniqueID: "sp1_9", Name: "Boiler", Available: true, Manufacturer: "SALUS", Model: "SR600"},
		IsOn:       true,
	}
	shutter = it600.CoverDevice{
		DeviceInfo:      it600.DeviceInfo{UniqueID: "rs1", Name: "Blind", Available: true, Manufacturer: "SALUS", Model: "RS600"},
		CurrentPosition: 40,
	}
	probe = it600.SensorDevice{
		DeviceInfo: it600.DeviceInfo{UniqueID: "ts1", Name: "Probe", Available: false, Manufacturer: "SALUS", Model: "TS600"},
		State:      18.5,
		Unit:       "°C",
	}
	hub = it600.GatewayDevice{
		DeviceInfo: it600.DeviceInfo{UniqueID: "001E5E0D3290", Name: "Gateway", Available: true, Manufacturer: "SALUS", Model: "UGE600"},
	}
)

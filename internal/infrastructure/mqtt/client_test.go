package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "it600-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", topics.BridgeState("it600", "climate", "th1"), "graylogic/state/it600/climate/th1"},
		{"command", topics.BridgeCommand("it600", "switch", "sp1_9"), "graylogic/command/it600/switch/sp1_9"},
		{"ack", topics.BridgeAck("it600", "switch", "sp1_9"), "graylogic/ack/it600/switch/sp1_9"},
		{"health", topics.BridgeHealth("it600"), "graylogic/health/it600"},
		{"status", topics.ClientStatus("it600-bridge"), "graylogic/status/it600-bridge"},
		{"commands", topics.BridgeCommands("it600"), "graylogic/command/it600/+/+"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s topic = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestDeviceFromTopic(t *testing.T) {
	tests := []struct {
		topic    string
		wantKind string
		wantID   string
	}{
		{"graylogic/command/it600/switch/sp1_9", "switch", "sp1_9"},
		{"graylogic/state/it600/binary_sensor/trv1", "binary_sensor", "trv1"},
		{"graylogic/command/it600/cover/", "cover", ""},
		{"graylogic/command/it600/sp1_9", "", ""},
		{"noslash", "", ""},
	}
	for _, tt := range tests {
		kind, id := DeviceFromTopic(tt.topic)
		if kind != tt.wantKind || id != tt.wantID {
			t.Errorf("DeviceFromTopic(%q) = (%q, %q), want (%q, %q)", tt.topic, kind, id, tt.wantKind, tt.wantID)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "pw"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "it600-test" {
		t.Errorf("ClientID = %q, want it600-test", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "pw" {
		t.Error("credentials not applied")
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil with TLS enabled")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "it600-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("last will not enabled and retained")
	}
	if opts.WillTopic != "graylogic/status/it600-test" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var status statusPayload
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if status.Status != "offline" || status.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", status)
	}
}

func TestDisconnectedClientRejectsOperations(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if c.IsConnected() {
		t.Error("IsConnected() = true for a new client")
	}
	if err := c.Publish("graylogic/x", []byte("{}"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.Publish("", nil, 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("graylogic/x", nil, 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("graylogic/x", make([]byte, maxPayloadSize+1), 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(large) error = %v, want ErrPublishFailed", err)
	}
	if err := c.Subscribe("graylogic/x", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("graylogic/x", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// TestPublishSubscribeRoundtrip needs a broker; set MQTT_TEST_BROKER=1 to run it.
func TestPublishSubscribeRoundtrip(t *testing.T) {
	if os.Getenv("MQTT_TEST_BROKER") == "" {
		t.Skip("MQTT_TEST_BROKER not set")
	}

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	topic := Topics{}.BridgeCommand("it600", "switch", "roundtrip")
	err = client.Subscribe(Topics{}.BridgeCommands("it600"), 1, func(topic string, _ []byte) error {
		_, id := DeviceFromTopic(topic)
		received <- id
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := client.PublishJSON(topic, map[string]string{"command": "turn_on"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case id := <-received:
		if id != "roundtrip" {
			t.Errorf("device = %q, want roundtrip", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the bridge publishes or consumes.
//
// Device topics use graylogic/{category}/{protocol}/{kind}/{id}. The kind
// level keeps devices that share an id across registries apart, e.g. a
// TRV reporting both a thermostat and a window contact.
const TopicPrefix = "graylogic"

// Topics provides builders for the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.BridgeState("it600", "climate", "th1")
//	// Returns: "graylogic/state/it600/climate/th1"
type Topics struct{}

// BridgeState returns the retained state topic of one device.
//
// Example: graylogic/state/it600/climate/th1
func (Topics) BridgeState(protocol, kind, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s/%s", TopicPrefix, protocol, kind, deviceID)
}

// BridgeCommand returns the command topic of one device.
//
// Example: graylogic/command/it600/switch/sp1_9
func (Topics) BridgeCommand(protocol, kind, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s/%s", TopicPrefix, protocol, kind, deviceID)
}

// BridgeAck returns the command acknowledgement topic of one device.
//
// Example: graylogic/ack/it600/switch/sp1_9
func (Topics) BridgeAck(protocol, kind, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s/%s", TopicPrefix, protocol, kind, deviceID)
}

// BridgeHealth returns the bridge health topic.
//
// Example: graylogic/health/it600
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// ClientStatus returns the online/offline topic of an MQTT client. The
// broker publishes the client's last will here.
//
// Example: graylogic/status/it600-bridge
func (Topics) ClientStatus(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, clientID)
}

// BridgeCommands returns a pattern matching commands for every device of
// one bridge.
//
// Pattern: graylogic/command/it600/+/+
func (Topics) BridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+/+", TopicPrefix, protocol)
}

// DeviceFromTopic returns the kind and id levels of a device topic, the
// last two levels. Either is empty when the topic is too short.
func DeviceFromTopic(topic string) (kind, deviceID string) {
	levels := strings.Split(topic, "/")
	if len(levels) < 5 {
		return "", ""
	}
	n := len(levels)
	return levels[n-2], levels[n-1]
}

package salus

import (
	"time"

	"github.com/nerrad567/gray-logic-it600/internal/it600"
)

// Protocol is the protocol segment of every bridge topic.
const Protocol = "it600"

// CommandMessage asks the bridge to change a device.
// Topic: graylogic/command/it600/{kind}/{device_id}
type CommandMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`

	// Kind picks the registry holding DeviceID. Empty means the first
	// registry the command applies to that knows the id.
	Kind string `json:"kind,omitempty"`

	// Command is one of the Cmd* names.
	Command string `json:"command"`

	// Parameters by command:
	//   set_temperature {"temperature": 21.5}
	//   set_mode        {"mode": "heat"}
	//   set_preset      {"preset": "Permanent Hold"}
	//   set_fan_mode    {"fan_mode": "Auto"}
	//   set_locked      {"locked": true}
	//   set_position    {"position": 40}
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source is where the command came from: "mqtt", "api".
	Source string `json:"source,omitempty"`
}

// Command names.
const (
	CmdSetTemperature = "set_temperature"
	CmdSetMode        = "set_mode"
	CmdSetPreset      = "set_preset"
	CmdSetFanMode     = "set_fan_mode"
	CmdSetLocked      = "set_locked"
	CmdTurnOn         = "turn_on"
	CmdTurnOff        = "turn_off"
	CmdSetPosition    = "set_position"
	CmdOpen           = "open"
	CmdClose          = "close"
)

// AckStatus is the outcome of a command.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
)

// Ack error codes.
const (
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
)

// AckMessage answers a CommandMessage.
// Topic: graylogic/ack/it600/{kind}/{device_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Kind      string    `json:"kind,omitempty"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError describes a failed command.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateMessage is the retained snapshot of one device.
// Topic: graylogic/state/it600/{kind}/{device_id}
type StateMessage struct {
	DeviceID  string       `json:"device_id"`
	Kind      string       `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	Protocol  string       `json:"protocol"`
	State     it600.Device `json:"state"`
}

// HealthStatus is the bridge's operational status.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
)

// HealthMessage is published retained on graylogic/health/it600.
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         HealthStatus      `json:"status"`
	Version        string            `json:"version"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	Gateway        *GatewayStatus    `json:"gateway,omitempty"`
	Statistics     *BridgeStatistics `json:"statistics,omitempty"`
	DevicesManaged int               `json:"devices_managed"`
	Reason         string            `json:"reason,omitempty"`
}

// GatewayStatus describes the session with the iT600 gateway.
type GatewayStatus struct {
	State         string     `json:"state"`
	Address       string     `json:"address"`
	MAC           string     `json:"mac,omitempty"`
	LastPoll      *time.Time `json:"last_poll,omitempty"`
	LastPollError string     `json:"last_poll_error,omitempty"`
}

// BridgeStatistics counts bridge activity since start.
type BridgeStatistics struct {
	Polls          uint64 `json:"polls"`
	PollErrors     uint64 `json:"poll_errors"`
	StatesSent     uint64 `json:"states_sent"`
	CommandsOK     uint64 `json:"commands_ok"`
	CommandsFailed uint64 `json:"commands_failed"`
}

// NewAckMessage builds a successful acknowledgement.
func NewAckMessage(cmd CommandMessage, kind it600.Kind) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Kind:      string(kind),
		Status:    AckAccepted,
		Protocol:  Protocol,
	}
}

// NewAckError builds a failed acknowledgement.
func NewAckError(cmd CommandMessage, kind it600.Kind, code, message string) AckMessage {
	ack := NewAckMessage(cmd, kind)
	ack.Status = AckFailed
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage wraps a device snapshot.
func NewStateMessage(dev it600.Device) StateMessage {
	return StateMessage{
		DeviceID:  dev.Info().UniqueID,
		Kind:      string(dev.Kind()),
		Timestamp: time.Now().UTC(),
		Protocol:  Protocol,
		State:     dev,
	}
}

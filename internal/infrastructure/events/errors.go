package events

import "errors"

var (
	// ErrDisabled indicates NATS is switched off in config.
	ErrDisabled = errors.New("events: disabled in configuration")

	// ErrConnectionFailed indicates the initial connect failed.
	ErrConnectionFailed = errors.New("events: connection failed")

	// ErrPublishFailed indicates an event could not be encoded or sent.
	ErrPublishFailed = errors.New("events: publish failed")

	// ErrNotConnected indicates the publisher was closed.
	ErrNotConnected = errors.New("events: not connected")
)

package salus

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCommand indicates a command name the bridge does not handle.
	ErrUnknownCommand = errors.New("salus: unknown command")

	// ErrInvalidParameters indicates missing or mistyped command parameters.
	ErrInvalidParameters = errors.New("salus: invalid parameters")

	// ErrDeviceNotFound indicates the command targets a device the gateway
	// has not reported.
	ErrDeviceNotFound = errors.New("salus: device not found")

	// ErrStopped indicates the bridge has been stopped.
	ErrStopped = errors.New("salus: bridge stopped")
)

// CommandError carries the ack error code for a failed command.
type CommandError struct {
	Code string
	Err  error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

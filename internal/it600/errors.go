package it600

import "errors"

// Domain errors for the it600 package.
var (
	// ErrConnectivity is returned when the gateway cannot be reached: the TCP
	// connection failed or the request timed out.
	ErrConnectivity = errors.New("it600: gateway unreachable")

	// ErrAuthentication is returned by Connect when the gateway answers plain
	// HTTP but the encrypted probe fails, which means the EUID is wrong.
	ErrAuthentication = errors.New("it600: authentication failed")

	// ErrCommand is returned when the gateway rejects a request or answers
	// with something that cannot be interpreted.
	ErrCommand = errors.New("it600: command failed")

	// ErrInvalidArgument is returned when a caller-supplied value is out of
	// range. No request is sent.
	ErrInvalidArgument = errors.New("it600: invalid argument")

	// ErrDecrypt is returned when a ciphertext has a bad length or padding.
	ErrDecrypt = errors.New("it600: decryption failed")

	// ErrNotConnected is returned when polling or writing before Connect.
	ErrNotConnected = errors.New("it600: not connected")

	// ErrMissingAttribute is returned when a device record lacks an
	// attribute its kind requires.
	ErrMissingAttribute = errors.New("it600: missing attribute")

	// ErrInvalidConfig is returned when Options are incomplete.
	ErrInvalidConfig = errors.New("it600: invalid configuration")
)

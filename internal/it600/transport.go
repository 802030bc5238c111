package it600

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"
)

// Gateway protocol commands, appended to /deviceid/.
const (
	commandRead  = "read"
	commandWrite = "write"
)

const (
	statusSuccess = "success"

	// maxResponseSize caps how much of a gateway response is read.
	maxResponseSize = 8 << 20
)

// HTTPDoer is the subset of *http.Client used by the transport.
// Tests substitute an instrumented implementation.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// envelope is the decrypted gateway response.
type envelope struct {
	Status string            `json:"status"`
	ID     []json.RawMessage `json:"id"`
}

// transport sends encrypted requests to the gateway, one at a time.
type transport struct {
	baseURL string
	cipher  *Cipher
	client  HTTPDoer
	timeout time.Duration
	gate    *semaphore.Weighted
	logger  Logger
	debug   bool
}

func newTransport(host string, port int, c *Cipher, client HTTPDoer, timeout time.Duration, logger Logger, debug bool) *transport {
	return &transport{
		baseURL: "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
		cipher:  c,
		client:  client,
		timeout: timeout,
		gate:    semaphore.NewWeighted(1),
		logger:  logger,
		debug:   debug,
	}
}

// request encrypts body, POSTs it to /deviceid/{command} and returns the
// decrypted envelope. Only one request is in flight at any time; callers
// queue on the gate in arrival order. A caller whose ctx ends while queued
// gets ErrConnectivity wrapping the context error.
func (t *transport) request(ctx context.Context, command string, body any) (*envelope, error) {
	plain, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s request: %w", ErrCommand, command, err)
	}

	if err := t.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for gateway: %w", ErrConnectivity, err)
	}
	defer t.gate.Release(1)

	if t.debug {
		t.logger.Debug("gateway request", "command", command, "body", string(plain))
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		t.baseURL+"/deviceid/"+command, bytes.NewReader(t.cipher.Encrypt(plain)))
	if err != nil {
		return nil, fmt.Errorf("%w: building %s request: %w", ErrCommand, command, err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyError(command, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyError(command, err)
	}

	decrypted, err := t.cipher.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s response (HTTP %d): %w", ErrCommand, command, resp.StatusCode, err)
	}

	if t.debug {
		t.logger.Debug("gateway response", "command", command, "body", string(decrypted))
	}

	var env envelope
	if err := json.Unmarshal(decrypted, &env); err != nil {
		return nil, fmt.Errorf("%w: parsing %s response: %w", ErrCommand, command, err)
	}

	if env.Status != statusSuccess {
		t.logger.Error("gateway rejected request",
			"command", command,
			"status", env.Status,
			"request", string(plain),
		)
		return nil, fmt.Errorf("%w: gateway rejected %q command with content %s", ErrCommand, command, plain)
	}

	return &env, nil
}

// probe issues a plain unencrypted GET to the gateway root. Any HTTP
// response counts as success.
func (t *transport) probe(ctx context.Context) error {
	if err := t.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: waiting for gateway: %w", ErrConnectivity, err)
	}
	defer t.gate.Release(1)

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, t.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("%w: building probe: %w", ErrConnectivity, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: probe: %w", ErrConnectivity, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	resp.Body.Close()
	return nil
}

// classifyError maps transport failures onto the package sentinels:
// timeouts and refused connections are connectivity problems, the rest
// are command failures.
func classifyError(command string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s request timed out: %w", ErrConnectivity, command, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s request timed out: %w", ErrConnectivity, command, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %s request: %w", ErrConnectivity, command, err)
	}

	return fmt.Errorf("%w: %s request: %w", ErrCommand, command, err)
}

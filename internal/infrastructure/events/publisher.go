package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/config"
)

// Event types.
const (
	TypeDeviceUpdated = "device.updated"
	TypeCommandResult = "device.command"
)

const clientName = "it600bridge"

// Event is the JSON body of every message.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Kind      string    `json:"kind"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Logger is the subset of logging.Logger the publisher uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Publisher sends device events to NATS.
//
// Thread Safety: safe for concurrent use. A nil *Publisher is a valid
// no-op, so callers need not check whether NATS is enabled.
type Publisher struct {
	nc     *nats.Conn
	prefix string

	mu     sync.RWMutex
	closed bool
}

// Connect dials NATS with the configured credentials and reconnect policy.
//
// Returns:
//   - *Publisher: Connected publisher
//   - error: ErrDisabled, or ErrConnectionFailed if the server is unreachable
func Connect(cfg config.NATSConfig, logger Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := []nats.Option{
		nats.Name(clientName),
		nats.ReconnectWait(time.Duration(cfg.ReconnectInterval) * time.Second),
		nats.MaxReconnects(cfg.MaxReconnects),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if logger != nil {
		opts = append(opts,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("NATS disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			}),
		)
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Publisher{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the subject for one device.
func Subject(prefix, kind, deviceID string) string {
	return fmt.Sprintf("%s.device.%s.%s", prefix, token(kind), token(deviceID))
}

// token replaces characters that would split or wildcard a subject.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType, kind, deviceID string, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Kind:      kind,
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Publish sends ev on its device subject.
func (p *Publisher) Publish(ev Event) error {
	if p == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrNotConnected
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: encoding event: %w", ErrPublishFailed, err)
	}
	if err := p.nc.Publish(Subject(p.prefix, ev.Kind, ev.DeviceID), body); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishDeviceUpdated publishes a device.updated event carrying the
// snapshot.
func (p *Publisher) PublishDeviceUpdated(kind, deviceID string, snapshot any) error {
	return p.Publish(NewEvent(TypeDeviceUpdated, kind, deviceID, snapshot))
}

// HealthCheck reports whether the connection is up.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || !p.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the connection state.
func (p *Publisher) IsConnected() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.nc != nil && p.nc.IsConnected()
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("draining nats connection: %w", err)
	}
	return nil
}

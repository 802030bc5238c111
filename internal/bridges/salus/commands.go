package salus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/nerrad567/gray-logic-it600/internal/it600"
)

// Execute runs cmd against the gateway, publishes the acknowledgement, and
// schedules a re-poll on success.
//
// A failure is returned as a *CommandError whose Code matches the ack.
func (b *Bridge) Execute(ctx context.Context, cmd CommandMessage) error {
	kind, err := b.execute(ctx, cmd)
	if err != nil {
		var ce *CommandError
		if !errors.As(err, &ce) {
			ce = &CommandError{Code: ErrCodeProtocolError, Err: err}
		}
		b.stats.commandsFailed.Add(1)
		b.logger.Warn("command failed",
			"command_id", cmd.ID, "device_id", cmd.DeviceID, "command", cmd.Command,
			"code", ce.Code, "error", ce.Err)
		b.publishAck(NewAckError(cmd, kind, ce.Code, ce.Err.Error()))
		return ce
	}

	b.stats.commandsOK.Add(1)
	b.logger.Info("command executed",
		"command_id", cmd.ID, "device_id", cmd.DeviceID, "command", cmd.Command, "source", cmd.Source)
	b.publishAck(NewAckMessage(cmd, kind))
	b.requestPoll()
	return nil
}

// commandKinds lists the registries each command applies to, in lookup
// order.
var commandKinds = map[string][]it600.Kind{
	CmdSetTemperature: {it600.KindClimate, it600.KindFanCoil},
	CmdSetMode:        {it600.KindClimate, it600.KindFanCoil},
	CmdSetPreset:      {it600.KindClimate, it600.KindFanCoil},
	CmdSetFanMode:     {it600.KindClimate, it600.KindFanCoil},
	CmdSetLocked:      {it600.KindClimate, it600.KindFanCoil},
	CmdTurnOn:         {it600.KindSwitch},
	CmdTurnOff:        {it600.KindSwitch},
	CmdSetPosition:    {it600.KindCover},
	CmdOpen:           {it600.KindCover},
	CmdClose:          {it600.KindCover},
}

func (b *Bridge) execute(ctx context.Context, cmd CommandMessage) (it600.Kind, error) {
	if b.isStopped() {
		return it600.Kind(cmd.Kind), &CommandError{Code: ErrCodeDeviceUnreachable, Err: ErrStopped}
	}

	kinds, ok := commandKinds[cmd.Command]
	if !ok {
		return it600.Kind(cmd.Kind), &CommandError{
			Code: ErrCodeInvalidCommand,
			Err:  fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command),
		}
	}

	kind, err := b.resolveKind(cmd, kinds)
	if err != nil {
		return kind, err
	}

	switch kind {
	case it600.KindSwitch:
		if cmd.Command == CmdTurnOn {
			return kind, classify(b.session.TurnOnSwitch(ctx, cmd.DeviceID))
		}
		return kind, classify(b.session.TurnOffSwitch(ctx, cmd.DeviceID))
	case it600.KindCover:
		return kind, classify(b.coverCommand(ctx, cmd))
	default:
		return kind, classify(b.climateCommand(ctx, cmd))
	}
}

// resolveKind finds the registry cmd targets. An explicit kind must be one
// of kinds and hold the device; otherwise the first registry in kinds that
// knows the id wins.
func (b *Bridge) resolveKind(cmd CommandMessage, kinds []it600.Kind) (it600.Kind, error) {
	if cmd.Kind != "" {
		kind, ok := it600.ParseKind(cmd.Kind)
		if !ok || !slices.Contains(kinds, kind) {
			return it600.Kind(cmd.Kind), notFound(it600.Kind(cmd.Kind), cmd.DeviceID)
		}
		if _, ok := b.session.Device(kind, cmd.DeviceID); !ok {
			return kind, notFound(kind, cmd.DeviceID)
		}
		return kind, nil
	}

	for _, kind := range kinds {
		if _, ok := b.session.Device(kind, cmd.DeviceID); ok {
			return kind, nil
		}
	}
	return kinds[0], notFound(kinds[0], cmd.DeviceID)
}

func (b *Bridge) climateCommand(ctx context.Context, cmd CommandMessage) error {
	id := cmd.DeviceID
	switch cmd.Command {
	case CmdSetTemperature:
		t, err := floatParam(cmd.Parameters, "temperature")
		if err != nil {
			return err
		}
		return b.session.SetClimateTemperature(ctx, id, t)
	case CmdSetMode:
		mode, err := stringParam(cmd.Parameters, "mode")
		if err != nil {
			return err
		}
		return b.session.SetClimateMode(ctx, id, it600.HVACMode(mode))
	case CmdSetPreset:
		preset, err := stringParam(cmd.Parameters, "preset")
		if err != nil {
			return err
		}
		return b.session.SetClimatePreset(ctx, id, it600.Preset(preset))
	case CmdSetFanMode:
		mode, err := stringParam(cmd.Parameters, "fan_mode")
		if err != nil {
			return err
		}
		return b.session.SetClimateFanMode(ctx, id, it600.FanMode(mode))
	default: // CmdSetLocked
		locked, err := boolParam(cmd.Parameters, "locked")
		if err != nil {
			return err
		}
		return b.session.SetClimateLocked(ctx, id, locked)
	}
}

func (b *Bridge) coverCommand(ctx context.Context, cmd CommandMessage) error {
	switch cmd.Command {
	case CmdOpen:
		return b.session.OpenCover(ctx, cmd.DeviceID)
	case CmdClose:
		return b.session.CloseCover(ctx, cmd.DeviceID)
	default:
		pos, err := intParam(cmd.Parameters, "position")
		if err != nil {
			return err
		}
		return b.session.SetCoverPosition(ctx, cmd.DeviceID, pos)
	}
}

func notFound(kind it600.Kind, id string) error {
	return &CommandError{
		Code: ErrCodeNotConfigured,
		Err:  fmt.Errorf("%w: %s %q", ErrDeviceNotFound, kind, id),
	}
}

// classify maps session errors onto ack codes.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidParameters), errors.Is(err, it600.ErrInvalidArgument):
		return &CommandError{Code: ErrCodeInvalidParameters, Err: err}
	case errors.Is(err, it600.ErrConnectivity), errors.Is(err, it600.ErrNotConnected),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &CommandError{Code: ErrCodeDeviceUnreachable, Err: err}
	default:
		return &CommandError{Code: ErrCodeProtocolError, Err: err}
	}
}

func param(params map[string]any, key string) (any, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %q is required", ErrInvalidParameters, key)
	}
	return v, nil
}

func floatParam(params map[string]any, key string) (float64, error) {
	v, err := param(params, key)
	if err != nil {
		return 0, err
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, err = n.Float64()
	case string:
		f, err = strconv.ParseFloat(n, 64)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidParameters, key)
	}
	return f, nil
}

func intParam(params map[string]any, key string) (int, error) {
	f, err := floatParam(params, key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q must be a whole number", ErrInvalidParameters, key)
	}
	return int(f), nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, err := param(params, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidParameters, key)
	}
	return s, nil
}

func boolParam(params map[string]any, key string) (bool, error) {
	v, err := param(params, key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q must be true or false", ErrInvalidParameters, key)
	}
	return b, nil
}

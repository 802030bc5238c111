package it600

import (
	"context"
	"fmt"
	"math"
)

// Cluster names used in write payloads.
const (
	clusterIT600TH = "sIT600TH"
	clusterTherS   = "sTherS"
	clusterComm    = "sComm"
	clusterFan     = "sFanS"
	clusterTherUI  = "sTherUIS"
	clusterOnOff   = "sOnOffS"
	clusterLevel   = "sLevelS"
)

// RoundToHalf rounds to the nearest 0.5. Exact quarters round to the even
// half-step, which is how the gateway's own app rounds.
func RoundToHalf(n float64) float64 {
	return math.RoundToEven(n*2) / 2
}

// setpointX100 converts degrees to the gateway's hundredths, rounded to
// half a degree.
func setpointX100(celsius float64) int {
	return int(math.Round(RoundToHalf(celsius) * 100))
}

// climateTarget resolves id against the thermostat and fan-coil registries.
// fanCoil is nil for single-setpoint thermostats.
func (g *Gateway) climateTarget(id string) (info DeviceInfo, fanCoil *FanCoilDevice, ok bool) {
	if c, found := g.ClimateDevice(id); found {
		return c.DeviceInfo, nil, true
	}
	if fc, found := g.FanCoilDevice(id); found {
		return fc.DeviceInfo, &fc, true
	}
	return DeviceInfo{}, nil, false
}

func (g *Gateway) write(ctx context.Context, info DeviceInfo, cluster string, attrs map[string]any) error {
	if g.State() == StateDisconnected {
		return ErrNotConnected
	}
	if _, err := g.transport.request(ctx, commandWrite, writeRequest(info.Data, cluster, attrs)); err != nil {
		return fmt.Errorf("writing %s to %s: %w", cluster, info.UniqueID, err)
	}
	return nil
}

func (g *Gateway) unknownDevice(kind Kind, id string) error {
	g.logger.Error("cannot write to unknown device", "kind", kind, "device_id", id)
	return nil
}

// SetClimateTemperature sets the target temperature in degrees Celsius.
// Fan coils in cool mode receive the cooling setpoint, otherwise the
// heating setpoint is written.
func (g *Gateway) SetClimateTemperature(ctx context.Context, id string, celsius float64) error {
	info, fc, ok := g.climateTarget(id)
	if !ok {
		return g.unknownDevice(KindClimate, id)
	}

	value := setpointX100(celsius)
	if fc == nil {
		return g.write(ctx, info, clusterIT600TH, map[string]any{"SetHeatingSetpoint_x100": value})
	}
	if fc.HVACMode == HVACModeCool {
		return g.write(ctx, info, clusterTherS, map[string]any{"SetCoolingSetpoint_x100": value})
	}
	return g.write(ctx, info, clusterTherS, map[string]any{"SetHeatingSetpoint_x100": value})
}

// SetClimateMode changes the HVAC mode. Thermostats support off (hold
// type 7) and everything else as follow-schedule; fan coils take heat,
// cool or auto as a system mode.
func (g *Gateway) SetClimateMode(ctx context.Context, id string, mode HVACMode) error {
	info, fc, ok := g.climateTarget(id)
	if !ok {
		return g.unknownDevice(KindClimate, id)
	}

	if fc == nil {
		hold := holdTypeFollowSchedule
		if mode == HVACModeOff {
			hold = holdTypeOff
		}
		return g.write(ctx, info, clusterIT600TH, map[string]any{"SetHoldType": hold})
	}

	var code int
	switch mode {
	case HVACModeHeat:
		code = systemModeHeat
	case HVACModeCool:
		code = systemModeCool
	case HVACModeAuto:
		code = systemModeAuto
	default:
		return fmt.Errorf("%w: fan coil does not support mode %q", ErrInvalidArgument, mode)
	}
	return g.write(ctx, info, clusterTherS, map[string]any{"SetSystemMode": code})
}

// SetClimatePreset changes the schedule override.
func (g *Gateway) SetClimatePreset(ctx context.Context, id string, preset Preset) error {
	info, fc, ok := g.climateTarget(id)
	if !ok {
		return g.unknownDevice(KindClimate, id)
	}

	if fc == nil {
		hold := holdTypeFollowSchedule
		switch preset {
		case PresetOff:
			hold = holdTypeOff
		case PresetPermanentHold:
			hold = holdTypePermanent
		}
		return g.write(ctx, info, clusterIT600TH, map[string]any{"SetHoldType": hold})
	}

	hold := holdTypeFollowSchedule
	switch preset {
	case PresetOff:
		hold = holdTypeOff
	case PresetEco:
		hold = holdTypeEco
	case PresetPermanentHold:
		hold = holdTypePermanent
	case PresetTemporaryHold:
		hold = holdTypeTemporary
	}
	return g.write(ctx, info, clusterComm, map[string]any{"SetHoldType": hold})
}

// SetClimateFanMode changes the fan speed.
func (g *Gateway) SetClimateFanMode(ctx context.Context, id string, mode FanMode) error {
	info, _, ok := g.climateTarget(id)
	if !ok {
		return g.unknownDevice(KindClimate, id)
	}

	var code int
	switch mode {
	case FanModeAuto:
		code = fanCodeAuto
	case FanModeHigh:
		code = fanCodeHigh
	case FanModeMedium:
		code = fanCodeMedium
	case FanModeLow:
		code = fanCodeLow
	case FanModeOff:
		code = fanCodeOff
	default:
		return fmt.Errorf("%w: unknown fan mode %q", ErrInvalidArgument, mode)
	}
	return g.write(ctx, info, clusterFan, map[string]any{"FanMode": code})
}

// SetClimateLocked locks or unlocks the thermostat's buttons.
func (g *Gateway) SetClimateLocked(ctx context.Context, id string, locked bool) error {
	info, _, ok := g.climateTarget(id)
	if !ok {
		return g.unknownDevice(KindClimate, id)
	}
	return g.write(ctx, info, clusterTherUI, map[string]any{"LockKey": boolCode(locked)})
}

// TurnOnSwitch switches an endpoint on.
func (g *Gateway) TurnOnSwitch(ctx context.Context, id string) error {
	return g.setSwitch(ctx, id, true)
}

// TurnOffSwitch switches an endpoint off.
func (g *Gateway) TurnOffSwitch(ctx context.Context, id string) error {
	return g.setSwitch(ctx, id, false)
}

func (g *Gateway) setSwitch(ctx context.Context, id string, on bool) error {
	sw, ok := g.SwitchDevice(id)
	if !ok {
		return g.unknownDevice(KindSwitch, id)
	}
	return g.write(ctx, sw.DeviceInfo, clusterOnOff, map[string]any{"SetOnOff": boolCode(on)})
}

// SetCoverPosition moves a cover to position (0 closed, 100 open).
func (g *Gateway) SetCoverPosition(ctx context.Context, id string, position int) error {
	if position < 0 || position > 100 {
		return fmt.Errorf("%w: cover position %d outside 0..100", ErrInvalidArgument, position)
	}

	cv, ok := g.CoverDevice(id)
	if !ok {
		return g.unknownDevice(KindCover, id)
	}
	return g.write(ctx, cv.DeviceInfo, clusterLevel,
		map[string]any{"SetMoveToLevel": fmt.Sprintf("%02xFFFF", position)})
}

// OpenCover moves a cover fully open.
func (g *Gateway) OpenCover(ctx context.Context, id string) error {
	return g.SetCoverPosition(ctx, id, 100)
}

// CloseCover moves a cover fully closed.
func (g *Gateway) CloseCover(ctx context.Context, id string) error {
	return g.SetCoverPosition(ctx, id, 0)
}

func boolCode(b bool) int {
	if b {
		return 1
	}
	return 0
}

package salus

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-it600/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-it600/internal/it600"
)

// readingFor maps a snapshot onto telemetry fields. The gateway record
// carries no measurements, so ok is false for it.
func readingFor(dev it600.Device, at time.Time) (influxdb.Reading, bool) {
	info := dev.Info()
	r := influxdb.Reading{
		Kind:     string(dev.Kind()),
		DeviceID: info.UniqueID,
		Model:    info.Model,
		Time:     at,
	}

	switch d := dev.(type) {
	case it600.ClimateDevice:
		r.Fields = map[string]any{
			"current_temperature": d.CurrentTemperature,
			"target_temperature":  d.TargetTemperature,
			"heating":             d.HVACAction == it600.HVACActionHeating,
		}
		if d.CurrentHumidity != nil {
			r.Fields["humidity"] = *d.CurrentHumidity
		}
	case it600.FanCoilDevice:
		r.Fields = map[string]any{
			"current_temperature": d.CurrentTemperature,
			"target_temperature":  d.TargetTemperature,
			"heating":             d.HVACAction == it600.HVACActionHeating,
			"cooling":             d.HVACAction == it600.HVACActionCooling,
			"fan_mode":            string(d.FanMode),
		}
	case it600.SensorDevice:
		r.Fields = map[string]any{"temperature": d.State}
	case it600.BinarySensorDevice:
		r.Fields = map[string]any{"is_on": d.IsOn}
	case it600.SwitchDevice:
		r.Fields = map[string]any{"is_on": d.IsOn}
	case it600.CoverDevice:
		r.Fields = map[string]any{"position": int64(d.CurrentPosition)}
	default:
		return influxdb.Reading{}, false
	}
	return r, true
}

// stateCache remembers the last published snapshot of each device so
// unchanged state is not republished.
type stateCache map[string][]byte

func cacheKey(kind it600.Kind, id string) string {
	return string(kind) + "/" + id
}

// changed reports whether dev differs from the cached copy and stores it.
func (c stateCache) changed(dev it600.Device) bool {
	body, err := json.Marshal(dev)
	if err != nil {
		return true
	}
	key := cacheKey(dev.Kind(), dev.Info().UniqueID)
	if prev, ok := c[key]; ok && string(prev) == string(body) {
		return false
	}
	c[key] = body
	return true
}

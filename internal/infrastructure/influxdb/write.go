package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementDeviceState  = "it600_device"
	MeasurementAvailability = "it600_availability"
)

// Reading is one sample of a device's numeric and boolean state.
//
// Fields with a nil value are dropped, so a thermostat that reports no
// humidity simply has no humidity field in that point.
type Reading struct {
	Kind     string
	DeviceID string
	Model    string
	Fields   map[string]any
	Time     time.Time
}

// WriteReading queues one device state point. Readings with no non-nil
// fields are ignored.
//
// Example:
//
//	client.WriteReading(influxdb.Reading{
//	    Kind:     "climate",
//	    DeviceID: "001E5E0D3290",
//	    Fields:   map[string]any{"current_temperature": 20.5, "target_temperature": 21.0},
//	})
func (c *Client) WriteReading(r Reading) {
	if !c.IsConnected() {
		return
	}

	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		if v != nil {
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		return
	}

	tags := map[string]string{
		"kind":      r.Kind,
		"device_id": r.DeviceID,
	}
	if r.Model != "" {
		tags["model"] = r.Model
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	c.writeAPI.WritePoint(write.NewPoint(MeasurementDeviceState, tags, fields, ts))
	c.points.Add(1)
}

// WriteAvailability records whether a device answered in the last poll.
func (c *Client) WriteAvailability(kind, deviceID string, available bool) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementAvailability,
		map[string]string{"kind": kind, "device_id": deviceID},
		map[string]any{"available": available},
		time.Now(),
	))
	c.points.Add(1)
}

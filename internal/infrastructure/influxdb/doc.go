// Package influxdb records iT600 device telemetry in InfluxDB v2.
//
// Every successful poll produces one it600_device point per device,
// tagged by gateway, kind, device_id, and model, with fields such as
// current_temperature, target_temperature, humidity, position, or is_on.
// Availability is written separately so dashboards can show offline
// periods even when a device reports no numeric state.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Gateway.Host)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteReading(influxdb.Reading{Kind: "sensor", DeviceID: "ts1",
//	    Fields: map[string]any{"temperature": 20.5}})
//
// # Error Handling
//
// Writes are non-blocking. Batch failures arrive through SetOnError.
package influxdb

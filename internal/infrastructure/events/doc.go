// Package events publishes device change events to NATS.
//
// MQTT carries the retained state other Gray Logic components act on. NATS
// carries a stream of change events for consumers that want every update
// in order rather than the latest value, such as loggers and analytics.
//
// Subjects follow {prefix}.device.{kind}.{device_id}, for example
// it600.device.climate.th1, so subscribers can filter with wildcards
// (it600.device.climate.*, it600.device.>).
package events

// Package salus bridges a Salus iT600 gateway onto the Gray Logic bus.
//
// The bridge owns the polling schedule of an it600.Gateway session and
// fans every device update out to its sinks:
//
//	it600.Gateway --poll--> Bridge --state/ack/health--> MQTT
//	                          |----readings-----------> InfluxDB
//	                          |----first/last seen----> catalog (SQLite)
//	                          |----device.updated-----> NATS
//	                          `----listeners----------> API websocket hub
//
// Topics carry the device kind as well as its id, since one physical device
// can appear in several registries under the same id. Commands arrive on
// graylogic/command/it600/{kind}/{device_id} or through Execute, are
// translated to session writes, acknowledged on
// graylogic/ack/it600/{kind}/{device_id}, and followed by an immediate
// re-poll so the new state is published without waiting for the next tick.
//
// MQTT state is only republished when a device's snapshot changes.
// Telemetry and the catalog are updated on every poll.
//
// Thread Safety: all exported methods are safe for concurrent use.
package salus

// Package api implements the HTTP REST API and WebSocket push for the iT600 bridge.
//
// This package provides:
//   - Read endpoints for live device snapshots, grouped by kind
//   - A command endpoint that runs writes through the bridge and returns the ack
//   - The persistent device catalog (first/last seen, firmware)
//   - A WebSocket hub that pushes "device.updated" events as snapshots change
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server reads device state straight from the gateway session's
// registries. Commands go to the bridge, which talks to the gateway and
// publishes the same ack it would for an MQTT command. Changed snapshots
// reach WebSocket clients through a bridge listener, so no MQTT round trip
// is involved.
//
// # Graceful Degradation
//
// Every dependency except the logger is optional. Without a bridge the
// command and health endpoints answer 503; without a catalog the catalog
// endpoint does.
package api

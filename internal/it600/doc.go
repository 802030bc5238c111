// Package it600 is a client for the Salus iT600 local gateway (UGE600/UG600).
//
// The gateway exposes an encrypted JSON protocol on its LAN port. Every
// request body is AES-CBC encrypted with a key derived from the gateway's
// EUID, POSTed to /deviceid/read or /deviceid/write, and answered with an
// encrypted JSON envelope.
//
// # Architecture
//
//	┌──────────────┐   Connect / PollStatus / Set*   ┌──────────────┐
//	│    Caller    │────────────────────────────────►│   Gateway    │
//	│  (bridge)    │◄──── update callbacks ──────────│   session    │
//	└──────────────┘                                 └──────┬───────┘
//	                                                        │ one request at a time
//	                                                 ┌──────▼───────┐
//	                                                 │  Transport   │──► iT600 gateway
//	                                                 │  + Cipher    │    (HTTP, port 80)
//	                                                 └──────────────┘
//
// # Device Kinds
//
// The gateway reports every device as a bag of Zigbee-style clusters. The
// decoder turns a record into at most one snapshot per kind:
//
//   - Gateway: the record carrying sGateway.NetworkLANMAC
//   - Climate: single-setpoint thermostats (sIT600TH)
//   - FanCoil: heat/cool fan-coil controllers (sTherS, sComm, sFanS)
//   - BinarySensor: door/window, water leak, smoke, valve and receiver contacts
//   - Switch: on/off endpoints, one per endpoint
//   - Cover: roller shutter and blind position controllers
//   - Sensor: temperature probes
//
// # Polling
//
// The package starts no goroutines and owns no timers. Callers decide when to
// refresh by calling PollStatus. Each kind is refreshed independently; a
// failure in one kind is logged and leaves that kind's previous snapshots in
// place.
//
// Example:
//
//	gw, err := it600.NewGateway(it600.Options{Host: "192.168.1.20", EUID: "001E5E0D32906128"})
//	if err != nil {
//	    return err
//	}
//	defer gw.Close()
//
//	mac, err := gw.Connect(ctx)
//	if err != nil {
//	    return err
//	}
//	if err := gw.PollStatus(ctx, false); err != nil {
//	    return err
//	}
//	for id, c := range gw.ClimateDevices() {
//	    fmt.Println(id, c.CurrentTemperature)
//	}
//
// # Thread Safety
//
// Gateway is safe for concurrent use. All network traffic is serialised
// through a single-slot gate because the gateway firmware mishandles
// concurrent requests.
package it600

// Package mqtt connects the iT600 bridge to the Gray Logic MQTT bus.
//
// The bridge publishes retained device state, consumes per-device commands,
// answers with acknowledgements, and reports health. The broker holds a last
// will so consumers learn when the bridge disappears.
//
//	graylogic/state/it600/{kind}/{device_id}    retained device snapshot
//	graylogic/command/it600/{kind}/{device_id}  inbound commands
//	graylogic/ack/it600/{kind}/{device_id}      command results
//	graylogic/health/it600                      periodic bridge health
//	graylogic/status/{client_id}                online/offline (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BridgeCommands("it600"), 1,
//	    func(topic string, payload []byte) error {
//	        kind, id := mqtt.DeviceFromTopic(topic)
//	        return handle(kind, id, payload)
//	    })
package mqtt

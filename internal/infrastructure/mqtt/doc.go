// Package mqtt provides the MQTT client used by the access bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - Last Will and Testament (LWT) on the bridge status topic
//
// # Topics
//
// Every topic hangs off a configurable root (default "unifi/access"):
//
//	<root>/status                     online / offline, retained
//	<root>/health                     periodic JSON health, retained
//	<root>/<mac>/<topic>              state published by a device
//	<root>/<mac>/<topic>/get          request a fresh publish of <topic>
//	<root>/<mac>/<topic>/set          command a device
//	<root>/<controller mac>/telemetry raw controller events
//
// MAC addresses appear upper case without separators.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.Set("F4E2C6AA0001", "lock"), 1,
//	    func(topic string, payload []byte) error {
//	        return handleLock(payload)
//	    })
package mqtt

// Package mqtt provides MQTT client connectivity for the eBUS bridge.
//
// This package manages:
//   - Connection to the broker with MQTT 3.1 / 3.1.1 protocol selection
//   - Message publishing with retain support
//   - Topic filter subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - A bounded inbound queue drained by the bridge loop
//
// # Architecture
//
// The bridge runs a single loop that alternates between draining inbound
// MQTT messages and publishing bus updates. To keep all dispatch on that
// loop, this client does not invoke callbacks from paho's goroutines:
// received messages are queued and handed out synchronously via Drain.
//
// Automatic reconnection is disabled on purpose. The bridge schedules its
// own reconnect attempts and needs to observe every connection loss, e.g.
// to publish status messages and re-announce definitions after recovery.
//
// # Security Considerations
//
//   - TLS is enabled by configuring a CA file or client certificate
//   - Credentials are validated against the broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.New(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.SetWill("ebusd/global/running", "false", true)
//	if err := client.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Subscribe("ebusd/#")
//	status := client.Drain(time.Second, func(msg mqtt.Message) {
//	    log.Printf("received: %s = %s", msg.Topic, msg.Payload)
//	})
package mqtt

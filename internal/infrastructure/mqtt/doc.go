// Package mqtt is the broker transport of the bridge.
//
// Devices publish on topics described by the topic templates. The bridge
// subscribes to one wildcard derived from those templates and publishes
// commands back on command topics:
//
//	Alice ↔ HTTP skill API ↔ bridge ↔ MQTT broker ↔ devices
//
// The client restores subscriptions after a reconnect and keeps a retained
// JSON status on <status_prefix>/status: "online" after every connect,
// "offline" with reason graceful_shutdown on Close, and the same with
// reason unexpected_disconnect as the broker-side will.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.Subscribe(b.SubscribeTopic(), 1, b.HandleMessage)
package mqtt

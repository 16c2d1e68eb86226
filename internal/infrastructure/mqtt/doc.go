// Package mqtt publishes access-change events to an MQTT broker.
//
// Events go to {prefix}/access/{type}, for example
// appaccess/access/permission.set, at the configured QoS and never retained.
// The client announces itself on {prefix}/system/status with a retained
// online message and registers a Last Will so subscribers see an offline
// status if the service dies.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	fanout.Add(client)
package mqtt

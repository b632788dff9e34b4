// Package influxdb records access device state history in InfluxDB.
//
// It wraps influxdb-client-go v2 with connection management, non-blocking
// batched writes and health checks. Every state the bridge publishes to MQTT
// is also written as an access_state point, and every controller event as an
// access_event point, so door activity can be graphed over time.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteState("F4E2C6AA0001", "lock", 1)
package influxdb

package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementState = "access_state"
	MeasurementEvent = "access_event"
)

// WriteState records one device state change. device is the hardware id,
// topic the state name as published on MQTT ("lock", "dps", ...).
func (c *Client) WriteState(device, topic string, value float64) {
	c.WritePoint(MeasurementState,
		map[string]string{"device": device, "topic": topic},
		map[string]any{"value": value})
}

// WriteEvent counts one controller event by type.
func (c *Client) WriteEvent(controller, event string) {
	c.WritePoint(MeasurementEvent,
		map[string]string{"controller": controller, "event": event},
		map[string]any{"count": 1})
}

// WritePoint writes a point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

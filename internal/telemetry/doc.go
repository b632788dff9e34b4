// Package telemetry mirrors device state onto MQTT and InfluxDB.
//
// Device records publish named states ("lock", "dps", "doorbell") through a
// Bridge, which maps them onto <root>/<mac>/<topic>. Records may also expose
// <topic>/get (republish on request) and <topic>/set (command) handlers.
// When a PointWriter is configured every published state is recorded as a
// time-series point as well.
package telemetry

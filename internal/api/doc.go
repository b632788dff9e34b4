// Package api implements the local HTTP API and WebSocket feed for accessbridge.
//
// This package provides:
//   - REST endpoints to list accessories and write characteristics
//   - Controller status and connection reset
//   - A WebSocket feed of characteristic changes
//   - Prometheus metrics on /metrics
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The server reads from the accessory host that the controller session
// managers publish into. Characteristic writes go through the same set
// handlers a home-automation client would trigger, so a PUT to a lock
// target sends the unlock to the controller.
//
// # Graceful Degradation
//
// The server runs with no controllers configured; accessory reads then
// return whatever the cache restored at startup.
package api

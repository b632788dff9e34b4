// Package metrics exposes Prometheus counters for the access bridge.
//
// Collectors register with the default registry at init, so Handler serves
// them without further setup. Counters are labelled by controller MAC;
// HTTP requests are counted by the Middleware.
package metrics

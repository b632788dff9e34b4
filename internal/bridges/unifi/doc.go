// Package unifi synchronises access controller devices with the accessory
// host.
//
// A Controller keeps one authenticated session to an access controller. It
// pulls the full device inventory (bootstrap), decides for every device
// whether and how it is published, and feeds the live notification stream
// into per-device records through a Router.
//
// # Architecture
//
//	┌────────────┐  bootstrap / events   ┌────────────┐  characteristics  ┌───────────┐
//	│ Controller │◄─────────────────────►│ Controller │──────────────────►│ Accessory │
//	│ (hardware) │   unlock / configs    │ (this pkg) │◄──────────────────│   host    │
//	└────────────┘                       └─────┬──────┘   set handlers    └───────────┘
//	                                           │ state / get / set
//	                                           ▼
//	                                      MQTT telemetry
//
// # Device records
//
// Devices advertising is_hub become hub records (lock relay, terminal
// inputs, doorbell, gate side door). Devices advertising is_reader become
// reader records (access method switches). Anything else is unsupported
// and logged once.
//
// Hub terminal inputs (DPS, REL, REN, REX) are only published when the
// hardware reports them wired and the matching Hub.<Input> feature option is
// enabled. An unwired input always reads as closed.
//
// # Concurrency
//
// Each Controller serialises all device logic behind one mutex: inventory
// reconciliation, event dispatch, timer callbacks and characteristic or
// MQTT set handlers. Controller I/O (login, bootstrap, unlock, settings
// writes) happens outside the lock. Timers come from an injected
// clock.Clock so tests can drive time.
//
// # Feature options
//
// Behaviour is tuned with feature options such as "Enable.Hub.Lock.Trigger"
// or "Disable.Device.F4E2C6AA0001"; see package featureopt for the grammar.
// Options are re-read on every reconfiguration.
package unifi

// Package accessory is the accessory host the bridge publishes into.
//
// An Accessory is one physical device as seen by home automation. It owns
// services (a lock, a contact sensor, a switch) and each service owns typed
// characteristics holding values. Device logic pushes values with
// Characteristic.UpdateValue; outside writers (the HTTP API) go through
// Host.SetValue, which runs the characteristic's set handler.
//
// # Identity
//
// Accessory UUIDs come from Host.UUID, a name-based UUID of the device key,
// so the same device always maps to the same accessory.
//
// # Persistence
//
// Registered accessories are written to a Cache on Register, Update and
// Unregister. Restore loads them back at startup; restored accessories keep
// their services and last values but have no handlers until a device record
// claims them again.
//
// # Thread Safety
//
// Host, Accessory, Service and Characteristic are safe for concurrent use.
// Handlers and change listeners are invoked without any package lock held.
package accessory

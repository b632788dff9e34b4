// Package featureopt resolves feature options: named toggles that can be
// set globally, per controller, or per device.
//
// # Entry Format
//
// Options are configured as a list of strings:
//
//	Enable.<Option>[.<ID>][.<Value>]
//	Disable.<Option>[.<ID>]
//
// <Option> is a catalog name such as "Hub.Lock.Trigger". <ID> is a
// hardware id, twelve hex digits with no separators, naming either a device
// or a controller. <Value> is whatever follows; "Enable.Device.Motion.Duration.15"
// sets a global value of 15.
//
// Matching is case-insensitive. When an entry names an option that is not in
// the catalog it is still honoured and reported by Unknown.
//
// # Precedence
//
// For a lookup with both a device and a controller id:
//
//  1. the device-scoped entry
//  2. the controller-scoped entry
//  3. the global entry
//  4. the catalog default
//
// When several entries target the same option and scope the last one wins.
//
// # Thread Safety
//
// A Resolver is immutable after New and safe for concurrent lookups.
package featureopt

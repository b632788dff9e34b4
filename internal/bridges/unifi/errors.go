package unifi

import "errors"

// Domain errors for the access bridge.
var (
	// ErrNotConfigured is returned when a controller lacks an address or
	// credentials. Such controllers are disabled at construction.
	ErrNotConfigured = errors.New("unifi: controller address or credentials missing")

	// ErrNotRunning is returned for operations that need a started controller.
	ErrNotRunning = errors.New("unifi: controller not running")

	// ErrOffline is returned when commanding a device that is not online.
	ErrOffline = errors.New("unifi: device offline")

	// ErrRelockUnsupported is returned when locking a relay that relocks on
	// the controller's own schedule.
	ErrRelockUnsupported = errors.New("unifi: relock needs a lock delay interval")

	// ErrNoSideDoorLocation is returned when no door location can be found
	// for a gate hub side door.
	ErrNoSideDoorLocation = errors.New("unifi: side door location unknown")

	// ErrCommandFailed is returned when the controller rejects a command.
	ErrCommandFailed = errors.New("unifi: command failed")
)

// ErrMissingDependency is returned by NewController when the feature options
// or the accessory host are nil.
var ErrMissingDependency = errors.New("unifi: feature options and accessory host are required")

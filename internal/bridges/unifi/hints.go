package unifi

import (
	"time"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/featureopt"
)

// Duration floors and defaults for access-event sensors.
const (
	minMotionDuration        = 2 * time.Second
	minOccupancyDuration     = 60 * time.Second
	defaultMotionDuration    = 10 * time.Second
	defaultOccupancyDuration = 300 * time.Second
)

// hints is the per-device view of the feature options.
type hints struct {
	syncName bool

	motion            bool
	motionDuration    time.Duration
	occupancy         bool
	occupancyDuration time.Duration

	// lockDelay is set when Hub.Lock.Delay.Interval is enabled;
	// lockDelayMinutes 0 means unlock indefinitely.
	lockDelay        bool
	lockDelayMinutes int
	lockTrigger      bool

	inputs map[Input]bool

	doorbell        bool
	doorbellTrigger bool

	sideDoor        bool
	sideDoorTrigger bool

	accessMethods map[string]bool

	logLock     bool
	logDPS      bool
	logDoorbell bool
	logAccess   bool
}

func computeHints(opts featureopt.FeatureOptions, dev access.Device, controllerID string) hints {
	id := featureopt.ID(dev.MAC)
	has := func(option string) bool {
		return opts.HasFeature(option, id, controllerID)
	}

	h := hints{
		syncName:  has(featureopt.DeviceSyncName),
		motion:    has(featureopt.DeviceMotion),
		occupancy: has(featureopt.DeviceOccupancy),

		motionDuration: seconds(opts, featureopt.DeviceMotionDuration, id, controllerID,
			defaultMotionDuration, minMotionDuration),
		occupancyDuration: seconds(opts, featureopt.DeviceOccupancyDuration, id, controllerID,
			defaultOccupancyDuration, minOccupancyDuration),

		lockTrigger: has(featureopt.HubLockTrigger),

		doorbell:        has(featureopt.HubDoorbell),
		doorbellTrigger: has(featureopt.HubDoorbellTrigger),
		sideDoor:        has(featureopt.HubSideDoor),
		sideDoorTrigger: has(featureopt.HubSideDoorLockTrigger),

		logLock:     has(featureopt.LogLock),
		logDPS:      has(featureopt.LogDPS),
		logDoorbell: has(featureopt.LogDoorbell),
		logAccess:   has(featureopt.LogAccess),

		inputs:        make(map[Input]bool, len(Inputs)),
		accessMethods: make(map[string]bool, len(accessMethods)),
	}

	if has(featureopt.HubLockDelayInterval) {
		h.lockDelay = true
		if n, ok := opts.GetNumber(featureopt.HubLockDelayInterval, id, controllerID); ok && n > 0 {
			h.lockDelayMinutes = n
		}
	}

	for _, in := range Inputs {
		h.inputs[in] = has(in.option())
	}
	for _, m := range accessMethods {
		h.accessMethods[m.Name] = has(m.Option)
	}

	return h
}

// seconds reads a duration option in seconds, clamped to floor.
func seconds(opts featureopt.FeatureOptions, option, id, controllerID string, def, floor time.Duration) time.Duration {
	d := def
	if n, ok := opts.GetNumber(option, id, controllerID); ok {
		d = time.Duration(n) * time.Second
	}
	if d < floor {
		d = floor
	}
	return d
}

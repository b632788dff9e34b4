package unifi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/accessory"
)

// lockStateUnset marks a lock cache that has never been written.
const lockStateUnset = -1

// relockSettle is added to the delay interval before the relock timer
// reasserts the lock state, so the controller has reported it by then.
const relockSettle = 5 * time.Second

func (h *hub) configureLock() bool {
	changed := h.ensureService(true, accessory.ServiceLockMechanism, "", "Lock", func(svc *accessory.Service) {
		current := svc.Characteristic(accessory.CharLockCurrentState)
		target := svc.Characteristic(accessory.CharLockTargetState)
		if h.lockState != lockStateUnset {
			current.SetInitial(h.lockState)
			target.SetInitial(h.lockState)
		}
		target.OnSet(func(v any) error {
			return h.onLockTargetSet(target, v)
		})
	})

	if h.ensureService(h.hints.lockTrigger, accessory.ServiceSwitch, subtypeLockTrigger, "Lock Trigger", func(svc *accessory.Service) {
		on := svc.Characteristic(accessory.CharOn)
		on.SetInitial(h.lockState == accessory.LockUnsecured)
		on.OnSet(func(v any) error {
			return h.onLockTriggerSet(on, v)
		})
	}) {
		changed = true
	}

	return changed
}

// rawLockState reads the relay from the mirror: "off" is secured.
func (h *hub) rawLockState() int {
	return relayState(h.dev, h.model.lockKey)
}

func relayState(dev access.Device, key string) int {
	if v, _ := dev.Config(key); v == "off" {
		return accessory.LockSecured
	}
	return accessory.LockUnsecured
}

func (h *hub) updateLock() {
	state := h.rawLockState()
	if state == accessory.LockSecured {
		h.cancel(timerRelock)
	}
	h.setLockState(state)
}

// setLockState caches state and pushes it everywhere. It does nothing when
// state is already cached.
func (h *hub) setLockState(state int) {
	if state == h.lockState {
		return
	}
	previous := h.lockState
	h.lockState = state

	if svc := h.acc.Service(accessory.ServiceLockMechanism, ""); svc != nil {
		svc.Characteristic(accessory.CharLockCurrentState).UpdateValue(state)
		svc.Characteristic(accessory.CharLockTargetState).UpdateValue(state)
	}
	if svc := h.acc.Service(accessory.ServiceSwitch, subtypeLockTrigger); svc != nil {
		svc.Characteristic(accessory.CharOn).UpdateValue(state == accessory.LockUnsecured)
	}

	if h.hints.logLock && previous != lockStateUnset {
		h.env.logger.Info("lock state changed", "device", h.name(), "state", lockName(state))
	}
	h.publish(topicLock, lockMessage(state))
}

// lockCommand drives the relay. Called without the controller lock.
//
// Without a lock delay interval the controller relocks on its own, so a
// lock request is refused. With an interval, unlocking holds the relay open
// for that many minutes (0: until told otherwise) and locking relocks now.
func (h *hub) lockCommand(locking bool) error {
	h.env.mu.Lock()
	if !h.hints.lockDelay && locking {
		h.env.mu.Unlock()
		h.env.logger.Error("cannot relock manually, the controller relocks this door on its own", "device", h.name())
		return ErrRelockUnsupported
	}
	if !h.isOnline() {
		h.env.mu.Unlock()
		h.env.logger.Error("cannot change lock, device is offline", "device", h.name())
		return ErrOffline
	}

	duration := lockDuration(locking, h.hints)
	minutes := h.hints.lockDelayMinutes
	dev := h.dev.Clone()
	name := h.name()
	h.env.mu.Unlock()

	ctx, cancel := h.env.commandContext()
	defer cancel()

	err := h.env.commander.Unlock(ctx, dev, duration)
	h.env.recordCommand(commandName(locking), err)
	if err != nil {
		h.env.logger.Error("lock command failed", "device", name, "locking", locking, "error", err)
		return err
	}

	h.env.mu.Lock()
	defer h.env.mu.Unlock()

	h.cancel(timerRelock)
	if !locking && h.hints.lockDelay && minutes > 0 && !h.cleaned {
		h.schedule(timerRelock, time.Duration(minutes)*time.Minute+relockSettle, func() {
			h.lockState = lockStateUnset
			h.setLockState(h.rawLockState())
		})
	}

	h.env.logger.Debug("lock command sent", "device", name, "locking", locking, "duration", int(duration))
	return nil
}

func (h *hub) onLockTargetSet(target *accessory.Characteristic, v any) error {
	want, ok := accessory.Int(v)
	if !ok || (want != accessory.LockSecured && want != accessory.LockUnsecured) {
		return accessory.ErrInvalidValue
	}

	if err := h.lockCommand(want == accessory.LockSecured); err != nil {
		h.revertLater("lock", target, func() any { return h.currentLock() })
	}
	return nil
}

// onLockTriggerSet handles the trigger switch: on unlocks, off locks.
func (h *hub) onLockTriggerSet(on *accessory.Characteristic, v any) error {
	unlock, ok := accessory.Bool(v)
	if !ok {
		return accessory.ErrInvalidValue
	}

	if err := h.lockCommand(!unlock); err != nil {
		h.revertLater("lock-trigger", on, func() any {
			return h.currentLock() == accessory.LockUnsecured
		})
	}
	return nil
}

// currentLock is the cached state, or the mirror before the first push.
func (h *hub) currentLock() int {
	if h.lockState == lockStateUnset {
		return h.rawLockState()
	}
	return h.lockState
}

// lockDuration maps a lock request onto a relay duration. Without a delay
// interval the controller's own relock applies.
func lockDuration(locking bool, hn hints) access.UnlockDuration {
	switch {
	case !hn.lockDelay:
		return access.UnlockDefault
	case locking:
		return access.Relock
	case hn.lockDelayMinutes == 0:
		return access.UnlockIndefinite
	default:
		return access.Seconds(hn.lockDelayMinutes * 60)
	}
}

func lockName(state int) string {
	if state == accessory.LockSecured {
		return "locked"
	}
	return "unlocked"
}

func commandName(locking bool) string {
	if locking {
		return "lock"
	}
	return "unlock"
}

// Side door

func (h *hub) hasSideDoor() bool {
	return h.model.sideDoorKey != "" && h.hints.sideDoor
}

func (h *hub) configureSideDoor() bool {
	want := h.hasSideDoor()

	changed := h.ensureService(want, accessory.ServiceLockMechanism, subtypeSideDoor, "Side Door", func(svc *accessory.Service) {
		current := svc.Characteristic(accessory.CharLockCurrentState)
		target := svc.Characteristic(accessory.CharLockTargetState)
		if h.sideDoorState != lockStateUnset {
			current.SetInitial(h.sideDoorState)
			target.SetInitial(h.sideDoorState)
		}
		target.OnSet(func(v any) error {
			return h.onSideDoorTargetSet(target, v)
		})
	})

	if h.ensureService(want && h.hints.sideDoorTrigger, accessory.ServiceSwitch, subtypeSideDoorTrigger, "Side Door Trigger", func(svc *accessory.Service) {
		on := svc.Characteristic(accessory.CharOn)
		on.SetInitial(h.sideDoorState == accessory.LockUnsecured)
		on.OnSet(func(v any) error {
			return h.onSideDoorTriggerSet(on, v)
		})
	}) {
		changed = true
	}

	if !want {
		h.sideDoorState = lockStateUnset
	}
	return changed
}

func (h *hub) updateSideDoor() {
	if !h.hasSideDoor() {
		return
	}
	h.setSideDoorState(relayState(h.dev, h.model.sideDoorKey))
}

func (h *hub) setSideDoorState(state int) {
	if state == h.sideDoorState {
		return
	}
	previous := h.sideDoorState
	h.sideDoorState = state

	if svc := h.acc.Service(accessory.ServiceLockMechanism, subtypeSideDoor); svc != nil {
		svc.Characteristic(accessory.CharLockCurrentState).UpdateValue(state)
		svc.Characteristic(accessory.CharLockTargetState).UpdateValue(state)
	}
	if svc := h.acc.Service(accessory.ServiceSwitch, subtypeSideDoorTrigger); svc != nil {
		svc.Characteristic(accessory.CharOn).UpdateValue(state == accessory.LockUnsecured)
	}

	if h.hints.logLock && previous != lockStateUnset {
		h.env.logger.Info("side door lock state changed", "device", h.name(), "state", lockName(state))
	}
	h.publish(topicSideDoorLock, lockMessage(state))
}

// sideDoorLocation finds the door the side door relay opens: the oper2
// extension target, else another door whose device groups list this hub.
// Called with the controller lock held.
func (h *hub) sideDoorLocation() (string, bool) {
	if h.model.sideDoorExtension != "" {
		if ext, ok := h.dev.Extension(h.model.sideDoorExtension); ok && ext.TargetValue != "" {
			return ext.TargetValue, true
		}
	}

	if h.env.doors == nil {
		return "", false
	}
	for _, door := range h.env.doors() {
		if door.ID == "" || door.ID == h.dev.LocationID {
			continue
		}
		if door.HasDevice(h.dev.MAC) {
			return door.ID, true
		}
	}
	return "", false
}

// sideDoorCommand drives the side door through its door location. The
// lock delay interval applies as it does to the primary lock. Called without
// the controller lock.
func (h *hub) sideDoorCommand(locking bool) error {
	h.env.mu.Lock()
	if !h.hints.lockDelay && locking {
		h.env.mu.Unlock()
		h.env.logger.Error("cannot relock the side door manually, the controller relocks it on its own", "device", h.name())
		return ErrRelockUnsupported
	}
	if !h.isOnline() {
		h.env.mu.Unlock()
		h.env.logger.Error("cannot change side door, device is offline", "device", h.name())
		return ErrOffline
	}
	location, ok := h.sideDoorLocation()
	duration := lockDuration(locking, h.hints)
	name := h.name()
	h.env.mu.Unlock()

	if !ok {
		h.env.logger.Error("cannot command side door, no door location is associated with it", "device", name)
		return ErrNoSideDoorLocation
	}

	body, err := access.UnlockBody(duration)
	if err != nil {
		return err
	}

	ctx, cancel := h.env.commandContext()
	defer cancel()

	resp, err := h.env.commander.Retrieve(ctx, access.LocationUnlockEndpoint(location),
		access.RequestOptions{Method: http.MethodPut, Body: body})
	if err == nil && !h.env.commander.ResponseOK(resp.StatusCode) {
		err = fmt.Errorf("%w: status %d", ErrCommandFailed, resp.StatusCode)
	}
	h.env.recordCommand("side_door_"+commandName(locking), err)

	if err != nil {
		h.env.logger.Error("side door command failed", "device", name, "location", location, "locking", locking, "error", err)
		return err
	}

	h.env.logger.Debug("side door command sent", "device", name, "location", location, "locking", locking, "duration", int(duration))
	return nil
}

func (h *hub) onSideDoorTargetSet(target *accessory.Characteristic, v any) error {
	want, ok := accessory.Int(v)
	if !ok || (want != accessory.LockSecured && want != accessory.LockUnsecured) {
		return accessory.ErrInvalidValue
	}

	if err := h.sideDoorCommand(want == accessory.LockSecured); err != nil {
		h.revertLater("sidedoor", target, func() any { return h.currentSideDoor() })
	}
	return nil
}

func (h *hub) onSideDoorTriggerSet(on *accessory.Characteristic, v any) error {
	unlock, ok := accessory.Bool(v)
	if !ok {
		return accessory.ErrInvalidValue
	}

	if err := h.sideDoorCommand(!unlock); err != nil {
		h.revertLater("sidedoor-trigger", on, func() any {
			return h.currentSideDoor() == accessory.LockUnsecured
		})
	}
	return nil
}

func (h *hub) currentSideDoor() int {
	if h.sideDoorState == lockStateUnset {
		return relayState(h.dev, h.model.sideDoorKey)
	}
	return h.sideDoorState
}

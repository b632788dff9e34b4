package unifi

import (
	"strings"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/accessory"
)

// Service subtypes on hub accessories.
const (
	subtypeLockTrigger     = "lock-trigger"
	subtypeDoorbellTrigger = "doorbell-trigger"
	subtypeSideDoor        = "sidedoor"
	subtypeSideDoorTrigger = "sidedoor-trigger"
)

// MQTT state topics.
const (
	topicLock         = "lock"
	topicSideDoorLock = "sidedoor/lock"
	topicDoorbell     = "doorbell"
	topicDPS          = "dps"
)

type inputState struct {
	wired     bool
	detected  bool
	published bool
}

// hub is a relay hub: a lock, terminal inputs, and depending on the model a
// doorbell or a gate side door.
type hub struct {
	*device

	model  modelSpec
	inputs map[Input]*inputState

	lockState     int
	sideDoorState int

	ringing     bool
	ringRequest string

	lockTopics     bool
	sideDoorTopics bool
}

func newHub(d *device) *hub {
	h := &hub{
		device:        d,
		model:         lookupModel(d.dev.DeviceType),
		inputs:        make(map[Input]*inputState, len(Inputs)),
		lockState:     lockStateUnset,
		sideDoorState: lockStateUnset,
	}
	for _, in := range Inputs {
		h.inputs[in] = &inputState{detected: true}
	}
	return h
}

func (h *hub) configure() {
	h.configureHints()
	h.configureInfo()
	h.evaluateWiring()
	h.configureSurfaces()

	id := h.dev.ID
	h.on(ByTypeAndDevice(access.EventDeviceUpdate, id), func(access.Packet) { h.sync() })
	h.on(ByTypeAndDevice(access.EventRemoteView, id), h.onRing)
	h.on(ByType(access.EventRemoteViewChange), h.onRingChange)
	h.on(ByTypeAndDevice(access.EventRemoteUnlock, id), h.onRemoteUnlock)
	h.on(ByTypeAndDevice(access.EventLogsAdd, id), h.onAccessLog)

	h.configureTelemetry()
	h.updateState()
}

// sync re-reads options and the mirror. Surfaces follow the new wiring
// before any state is pushed.
func (h *hub) sync() {
	h.configureHints()
	renamed := h.syncName()
	h.evaluateWiring()
	changed := h.configureSurfaces()
	h.configureTelemetry()
	h.updateState()

	if changed || renamed {
		h.env.host.Update(h.acc)
	}
}

func (h *hub) configureSurfaces() bool {
	changed := h.configureLock()
	if h.configureInputs() {
		changed = true
	}
	if h.configureDoorbell() {
		changed = true
	}
	if h.configureSideDoor() {
		changed = true
	}
	if h.configureAccessMethods() {
		changed = true
	}
	if h.configureAccessEvents() {
		changed = true
	}
	return changed
}

func (h *hub) updateState() {
	h.updateStatus()
	h.updateLock()
	h.updateSideDoor()
	h.updateInputs()
	h.updateAccessMethods()
}

// configureTelemetry subscribes the MQTT get/set topics once, and follows
// the side door surface as options change.
func (h *hub) configureTelemetry() {
	if !h.lockTopics {
		h.lockTopics = true
		h.subscribeGet(topicLock, "Lock", func() string { return lockMessage(h.lockState) })
		h.subscribeSet(topicLock, "Lock", func(value string) {
			locking, ok := parseLockMessage(value)
			if !ok {
				h.env.logger.Warn("ignoring lock command", "device", h.name(), "value", value)
				return
			}
			_ = h.lockCommand(locking) //nolint:errcheck // logged by lockCommand
		})
	}

	switch {
	case h.hasSideDoor() && !h.sideDoorTopics:
		h.sideDoorTopics = true
		h.subscribeGet(topicSideDoorLock, "Side Door Lock", func() string { return lockMessage(h.sideDoorState) })
		h.subscribeSet(topicSideDoorLock, "Side Door Lock", func(value string) {
			locking, ok := parseLockMessage(value)
			if !ok {
				h.env.logger.Warn("ignoring side door command", "device", h.name(), "value", value)
				return
			}
			_ = h.sideDoorCommand(locking) //nolint:errcheck // logged by sideDoorCommand
		})
	case !h.hasSideDoor() && h.sideDoorTopics:
		h.sideDoorTopics = false
		h.unsubscribe(topicSideDoorLock)
	}
}

func (h *hub) onRemoteUnlock(access.Packet) {
	if h.hints.logLock {
		h.env.logger.Info("remote unlock", "device", h.name())
	}
}

// lockMessage renders a lock state for MQTT.
func lockMessage(state int) string {
	switch state {
	case accessory.LockSecured:
		return "true"
	case accessory.LockUnsecured:
		return "false"
	default:
		return "unknown"
	}
}

// parseLockMessage reads an MQTT lock command; true means lock.
func parseLockMessage(value string) (locking, ok bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "lock", "locked", "1":
		return true, true
	case "false", "unlock", "unlocked", "0":
		return false, true
	default:
		return false, false
	}
}

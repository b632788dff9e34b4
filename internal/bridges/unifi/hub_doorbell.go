package unifi

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/accessory"
)

// doorbellTimeout clears a ring the controller never reported as ended.
const doorbellTimeout = 90 * time.Second

func (h *hub) hasDoorbell() bool {
	return h.hints.doorbell && h.dev.HasCapability(doorbellCapability)
}

func (h *hub) configureDoorbell() bool {
	want := h.hasDoorbell()

	changed := h.ensureService(want, accessory.ServiceDoorbell, "", "Doorbell", func(svc *accessory.Service) {
		svc.Characteristic(accessory.CharProgrammableSwitchEvent)
	})

	if h.ensureService(want && h.hints.doorbellTrigger, accessory.ServiceSwitch, subtypeDoorbellTrigger, "Doorbell Trigger", func(svc *accessory.Service) {
		on := svc.Characteristic(accessory.CharOn)
		on.SetInitial(h.ringing)
		on.OnSet(h.onDoorbellTriggerSet)
	}) {
		changed = true
	}

	if !want && h.ringing {
		h.clearRing()
	}
	return changed
}

// onRing handles a remote view request, the doorbell press.
func (h *hub) onRing(pkt access.Packet) {
	svc := h.acc.Service(accessory.ServiceDoorbell, "")
	if svc == nil {
		return
	}

	var view access.RemoteView
	if err := json.Unmarshal(pkt.Data, &view); err != nil {
		h.env.logger.Debug("malformed remote view", "device", h.name(), "error", err)
	}

	h.ringing = true
	h.ringRequest = view.RequestID

	svc.Characteristic(accessory.CharProgrammableSwitchEvent).UpdateValue(accessory.SinglePress)
	if trigger := h.acc.Service(accessory.ServiceSwitch, subtypeDoorbellTrigger); trigger != nil {
		trigger.Characteristic(accessory.CharOn).UpdateValue(true)
	}

	if h.hints.logDoorbell {
		h.env.logger.Info("doorbell ring", "device", h.name(), "door", view.DoorName)
	}
	h.publish(topicDoorbell, "true")

	h.schedule(timerDoorbell, doorbellTimeout, h.clearRing)
}

// onRingChange ends the ring that matches the change's request id.
func (h *hub) onRingChange(pkt access.Packet) {
	if !h.ringing {
		return
	}

	var change access.RemoteViewChange
	if err := json.Unmarshal(pkt.Data, &change); err == nil &&
		change.RequestID != "" && h.ringRequest != "" && change.RequestID != h.ringRequest {
		return
	}

	if h.hints.logDoorbell {
		h.env.logger.Info("doorbell ring ended", "device", h.name(), "reason", change.Reason)
	}
	h.clearRing()
}

func (h *hub) clearRing() {
	h.cancel(timerDoorbell)
	h.ringing = false
	h.ringRequest = ""

	if trigger := h.acc.Service(accessory.ServiceSwitch, subtypeDoorbellTrigger); trigger != nil {
		trigger.Characteristic(accessory.CharOn).UpdateValue(false)
	}
	h.publish(topicDoorbell, "false")
}

// onDoorbellTriggerSet only accepts off, which dismisses the ring.
func (h *hub) onDoorbellTriggerSet(v any) error {
	on, ok := accessory.Bool(v)
	if !ok || on {
		return accessory.ErrInvalidValue
	}

	h.env.mu.Lock()
	defer h.env.mu.Unlock()
	if h.ringing {
		h.clearRing()
	}
	return nil
}

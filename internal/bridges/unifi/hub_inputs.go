package unifi

import (
	"github.com/nerrad567/gray-logic-access/internal/accessory"
)

// evaluateWiring recomputes which inputs are wired from the mirror.
func (h *hub) evaluateWiring() {
	for _, in := range Inputs {
		h.inputs[in].wired = inputWired(h.model, in, h.dev)
	}
}

// configureInputs publishes a contact sensor for every input that is wired
// and enabled.
func (h *hub) configureInputs() bool {
	changed := false
	for _, in := range Inputs {
		st := h.inputs[in]
		want := st.wired && h.hints.inputs[in]
		if h.ensureService(want, accessory.ServiceContactSensor, in.subtype(), in.label(), func(svc *accessory.Service) {
			if svc.Lookup(accessory.CharContactSensorState) == nil {
				svc.Characteristic(accessory.CharContactSensorState).SetInitial(contactValue(st.detected))
			}
		}) {
			changed = true
		}
	}
	return changed
}

// updateInputs pushes contact changes.
func (h *hub) updateInputs() {
	for _, in := range Inputs {
		st := h.inputs[in]
		wired, detected := inputContact(h.model, in, h.dev)
		st.wired = wired

		if svc := h.acc.Service(accessory.ServiceContactSensor, in.subtype()); svc != nil {
			c := svc.Characteristic(accessory.CharContactSensorState)
			if v, ok := accessory.Int(c.Value()); !ok || v != contactValue(detected) {
				c.UpdateValue(contactValue(detected))
			}
		}

		changed := detected != st.detected
		st.detected = detected

		if in != InputDPS || !wired {
			continue
		}
		if changed && h.hints.logDPS {
			state := "closed"
			if !detected {
				state = "open"
			}
			h.env.logger.Info("door position changed", "device", h.name(), "state", state)
		}
		if changed || !st.published {
			st.published = true
			h.publish(topicDPS, dpsMessage(detected))
		}
	}
}

func contactValue(detected bool) int {
	if detected {
		return accessory.ContactDetected
	}
	return accessory.ContactNotDetected
}

// dpsMessage is "true" while the door is open.
func dpsMessage(detected bool) string {
	if detected {
		return "false"
	}
	return "true"
}

package unifi

import (
	"github.com/nerrad567/gray-logic-access/internal/access"
)

// reader is a card, PIN or face reader. Its surfaces are the access method
// switches plus the optional access-event sensors.
type reader struct {
	*device
}

func newReader(d *device) *reader {
	return &reader{device: d}
}

func (r *reader) configure() {
	r.configureHints()
	r.configureInfo()
	r.configureAccessMethods()
	r.configureAccessEvents()

	r.on(ByTypeAndDevice(access.EventDeviceUpdate, r.dev.ID), func(access.Packet) { r.sync() })
	r.on(ByTypeAndDevice(access.EventLogsAdd, r.dev.ID), r.onAccessLog)

	r.updateStatus()
	r.updateAccessMethods()
}

func (r *reader) sync() {
	r.configureHints()
	renamed := r.syncName()
	changed := r.configureAccessMethods()
	if r.configureAccessEvents() {
		changed = true
	}
	r.updateStatus()
	r.updateAccessMethods()

	if changed || renamed {
		r.env.host.Update(r.acc)
	}
}

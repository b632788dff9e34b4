package unifi

import (
	"fmt"
	"net/http"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/accessory"
)

// configureAccessMethods adds a switch for every unlock method the device
// supports and the options allow, and removes the rest.
func (d *device) configureAccessMethods() bool {
	changed := false
	for _, m := range accessMethods {
		want := d.dev.HasCapability(m.Capability) && d.hints.accessMethods[m.Name]
		if d.ensureService(want, accessory.ServiceSwitch, m.subtype(), m.Label, func(svc *accessory.Service) {
			svc.Characteristic(accessory.CharOn).OnSet(func(v any) error {
				return d.onAccessMethodSet(m, svc, v)
			})
		}) {
			changed = true
		}
	}
	return changed
}

// updateAccessMethods pushes the configured state of every method switch.
func (d *device) updateAccessMethods() {
	for _, m := range accessMethods {
		svc := d.acc.Service(accessory.ServiceSwitch, m.subtype())
		if svc == nil {
			continue
		}
		on := d.accessMethodEnabled(m)
		c := svc.Characteristic(accessory.CharOn)
		if v, ok := c.Value().(bool); !ok || v != on {
			c.UpdateValue(on)
		}
	}
}

func (d *device) accessMethodEnabled(m accessMethod) bool {
	v, _ := d.dev.Config(m.Key)
	return v == configEnabled
}

// onAccessMethodSet is the switch set handler. It runs without the lock.
func (d *device) onAccessMethodSet(m accessMethod, svc *accessory.Service, v any) error {
	on, ok := accessory.Bool(v)
	if !ok {
		return accessory.ErrInvalidValue
	}

	if err := d.setAccessMethod(m, on); err != nil {
		d.revertLater(m.subtype(), svc.Characteristic(accessory.CharOn), func() any {
			return d.accessMethodEnabled(m)
		})
	}
	return nil
}

// setAccessMethod writes the method's open_door_mode setting. Called without
// the controller lock.
func (d *device) setAccessMethod(m accessMethod, on bool) error {
	d.env.mu.Lock()
	if !d.isOnline() {
		d.env.mu.Unlock()
		d.env.logger.Error("cannot change access method, device is offline", "device", d.name(), "method", m.Name)
		return ErrOffline
	}
	dev := d.dev.Clone()
	name := d.name()
	d.env.mu.Unlock()

	value := configDisabled
	if on {
		value = configEnabled
	}

	ctx, cancel := d.env.commandContext()
	defer cancel()

	resp, err := d.env.commander.Retrieve(ctx, access.DeviceConfigEndpoint(dev.ID), access.RequestOptions{
		Method: http.MethodPut,
		Body:   []access.ConfigEntry{{Key: m.Key, Tag: openDoorModeTag, Value: value}},
	})
	if err == nil && !d.env.commander.ResponseOK(resp.StatusCode) {
		err = fmt.Errorf("%w: status %d", ErrCommandFailed, resp.StatusCode)
	}
	d.env.recordCommand("access_method", err)

	if err != nil {
		d.env.logger.Error("failed to change access method", "device", name, "method", m.Name, "error", err)
		return err
	}

	d.env.logger.Info("access method changed", "device", name, "method", m.Name, "enabled", on)
	return nil
}

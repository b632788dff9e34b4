package unifi

import (
	"time"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/accessory"
	"github.com/nerrad567/gray-logic-access/internal/featureopt"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/metrics"
)

// reconcile brings the registry in line with a bootstrap device list.
// Called with mu held.
func (c *Controller) reconcile(devices []access.Device) {
	now := c.clock.Now()
	seen := make(map[string]bool, len(devices))

	for _, dev := range devices {
		if !dev.IsManaged {
			continue
		}

		key := deviceKey(dev)
		class := classify(dev)
		if class == classUnsupported {
			if !c.unsupported[key] {
				c.unsupported[key] = true
				c.logger.Info("ignoring unsupported device",
					"controller", c.name,
					"device", dev.DisplayName(),
					"model", dev.DeviceType,
					"mac", dev.MAC,
				)
			}
			continue
		}

		if !c.options.HasFeature(featureopt.Device, featureopt.ID(dev.MAC), c.mac) {
			c.logger.Debug("device disabled by feature option", "device", dev.DisplayName(), "mac", dev.MAC)
			continue
		}

		seen[key] = true
		if _, queued := c.removals[key]; queued {
			delete(c.removals, key)
			c.logger.Info("device reappeared, removal cancelled", "device", dev.DisplayName())
		}

		if rec, ok := c.registry[key]; ok {
			rec.base().setMirror(dev)
			rec.sync()
			continue
		}
		c.addDevice(dev, key, class)
	}

	delay := c.removalDelay()
	for key, rec := range c.registry {
		if seen[key] {
			continue
		}
		if delay <= 0 {
			c.removeDevice(rec)
			continue
		}

		first, queued := c.removals[key]
		if !queued {
			c.removals[key] = now
			c.logger.Info("device no longer reported, scheduling removal",
				"device", rec.base().name(),
				"delay", delay,
			)
			continue
		}
		if now.Sub(first) >= delay {
			c.removeDevice(rec)
		}
	}

	for key := range c.removals {
		if _, ok := c.registry[key]; !ok {
			delete(c.removals, key)
		}
	}

	c.pruneOrphans()
	c.updateDeviceCount()
}

// pruneOrphans withdraws cached accessories of this controller that no
// record claimed, such as devices since disabled by a feature option.
func (c *Controller) pruneOrphans() {
	claimed := make(map[string]bool, len(c.registry))
	for _, rec := range c.registry {
		claimed[rec.base().acc.UUID] = true
	}

	var orphans []*accessory.Accessory
	for _, acc := range c.host.Accessories() {
		if acc.Context().ControllerMAC == c.mac && !claimed[acc.UUID] {
			orphans = append(orphans, acc)
		}
	}
	if len(orphans) == 0 {
		return
	}

	c.host.Unregister(orphans...)
	metrics.Removals.WithLabelValues(c.name).Add(float64(len(orphans)))
	for _, acc := range orphans {
		c.logger.Info("removed stale accessory", "controller", c.name, "accessory", acc.DisplayName())
	}
}

// removalDelay is how long a device may be missing from the bootstrap
// before its accessory is withdrawn. Zero removes at once.
func (c *Controller) removalDelay() time.Duration {
	if !c.options.HasFeature(featureopt.ControllerDelayDeviceRemoval, "", c.mac) {
		return 0
	}
	n, ok := c.options.GetNumber(featureopt.ControllerDelayDeviceRemoval, "", c.mac)
	if !ok || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// addDevice builds a record for dev, reusing a cached accessory when the
// host has one for the key.
func (c *Controller) addDevice(dev access.Device, key string, class deviceClass) {
	uuid := c.host.UUID(key)
	acc := c.host.Lookup(uuid)
	restored := acc != nil
	if acc == nil {
		acc = accessory.New(uuid, dev.DisplayName())
	}
	acc.SetContext(accessory.Context{
		ControllerMAC: c.mac,
		DeviceKey:     key,
		MAC:           featureopt.ID(dev.MAC),
	})

	base := newDevice(c.env, key, acc, dev)
	var rec record
	switch class {
	case classHub:
		rec = newHub(base)
	default:
		rec = newReader(base)
	}

	rec.configure()
	c.host.Register(acc)
	c.registry[key] = rec

	c.logger.Info("device added",
		"controller", c.name,
		"device", acc.DisplayName(),
		"model", dev.DeviceType,
		"kind", class,
		"restored", restored,
	)
}

// removeDevice withdraws a record and its accessory.
func (c *Controller) removeDevice(rec record) {
	b := rec.base()
	rec.cleanup()

	delete(c.registry, b.key)
	delete(c.removals, b.key)
	c.host.Unregister(b.acc)
	metrics.Removals.WithLabelValues(c.name).Inc()

	c.logger.Info("device removed", "controller", c.name, "device", b.name())
}

// unregisterAll withdraws every accessory this controller owns, including
// cached ones that never got a record.
func (c *Controller) unregisterAll() {
	for key, rec := range c.registry {
		rec.cleanup()
		delete(c.registry, key)
	}
	clear(c.removals)

	var owned []*accessory.Accessory
	for _, acc := range c.host.Accessories() {
		if acc.Context().ControllerMAC == c.mac {
			owned = append(owned, acc)
		}
	}
	if len(owned) > 0 {
		c.host.Unregister(owned...)
		metrics.Removals.WithLabelValues(c.name).Add(float64(len(owned)))
	}

	c.updateDeviceCount()
	c.logger.Info("controller accessories removed", "controller", c.name, "count", len(owned))
}

func (c *Controller) updateDeviceCount() {
	metrics.Devices.WithLabelValues(c.name).Set(float64(len(c.registry)))
}

package unifi

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/accessory"
	"github.com/nerrad567/gray-logic-access/internal/featureopt"
)

const manufacturer = "Ubiquiti Inc."

// LockRevertDelay is how long a rejected write stays visible before the
// characteristic snaps back to the real state.
const LockRevertDelay = 50 * time.Millisecond

// Timer names.
const (
	timerMotion    = "motion"
	timerOccupancy = "occupancy"
	timerRelock    = "relock"
	timerDoorbell  = "doorbell"
	timerRevert    = "revert:"
)

var firmwarePattern = regexp.MustCompile(`^v(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:\.(\d+))?`)

// record is a published device.
type record interface {
	base() *device

	// configure builds surfaces and subscriptions for a new record.
	configure()

	// sync re-evaluates options and state after the mirror changed.
	sync()

	cleanup()
}

// device holds what every record shares: the mirrored controller view, the
// accessory, the record's router subscriptions, timers and MQTT topics.
// All methods run with env.mu held unless noted otherwise.
type device struct {
	env *deviceEnv
	key string
	acc *accessory.Accessory
	dev access.Device

	hints hints

	subs   []Subscription
	timers map[string]*clock.Timer

	// topics are tracked without topicPrefix.
	topics      []string
	topicPrefix string
	cleaned     bool
}

func newDevice(env *deviceEnv, key string, acc *accessory.Accessory, dev access.Device) *device {
	return &device{
		env:    env,
		key:    key,
		acc:    acc,
		dev:    dev.Clone(),
		timers: make(map[string]*clock.Timer),

		topicPrefix: doorTopic(dev),
	}
}

func (d *device) base() *device { return d }

// hardwareID is the MAC upper case without separators.
func (d *device) hardwareID() string {
	return featureopt.ID(d.dev.MAC)
}

func (d *device) name() string {
	return d.acc.DisplayName()
}

// isOnline is true only when the controller reports the device adopted,
// connected, managed and online.
func (d *device) isOnline() bool {
	return d.dev.IsAdopted && d.dev.IsConnected && d.dev.IsManaged && d.dev.IsOnline
}

// setMirror replaces the mirrored device state.
func (d *device) setMirror(dev access.Device) {
	if dev.ID == "" {
		dev.ID = d.dev.ID
	}
	d.dev = dev.Clone()
}

func (d *device) configureHints() {
	d.hints = computeHints(d.env.options, d.dev, d.env.controllerID)
}

// configureInfo fills the AccessoryInformation service.
func (d *device) configureInfo() {
	info := d.acc.AddService(accessory.ServiceAccessoryInformation, d.name(), "")

	model := d.dev.DisplayModel
	if model == "" {
		model = d.dev.DeviceType
	}

	info.Characteristic(accessory.CharManufacturer).UpdateValue(manufacturer)
	info.Characteristic(accessory.CharModel).UpdateValue(model)
	info.Characteristic(accessory.CharSerialNumber).UpdateValue(strings.ToUpper(d.dev.MAC))
	info.Characteristic(accessory.CharName).UpdateValue(d.name())
	info.Characteristic(accessory.CharFirmwareRevision).UpdateValue(parseFirmware(d.dev.Firmware))
}

// syncName follows the controller alias when Device.SyncName is on.
func (d *device) syncName() bool {
	name := d.dev.DisplayName()
	if !d.hints.syncName || name == "" || name == d.acc.DisplayName() {
		return false
	}

	d.env.logger.Info("renaming accessory", "from", d.acc.DisplayName(), "to", name)
	d.acc.SetDisplayName(name)
	if info := d.acc.Service(accessory.ServiceAccessoryInformation, ""); info != nil {
		info.Characteristic(accessory.CharName).UpdateValue(name)
	}
	return true
}

// parseFirmware turns "v1.2.3.4" into "1.2.3". Missing parts are 0; a
// string that does not start with v<digits> is returned unchanged.
func parseFirmware(s string) string {
	m := firmwarePattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	parts := []string{m[1], m[2], m[3]}
	for i, p := range parts {
		if p == "" {
			parts[i] = "0"
		}
	}
	return strings.Join(parts, ".")
}

// updateStatus pushes the online flag to every service that carries one.
func (d *device) updateStatus() {
	active := d.isOnline()
	for _, svc := range d.acc.Services() {
		c := svc.Lookup(accessory.CharStatusActive)
		if c == nil {
			continue
		}
		if v, ok := c.Value().(bool); !ok || v != active {
			c.UpdateValue(active)
		}
	}
}

// ensureService adds or removes a service. setup runs on every call while the
// service is wanted and must install handlers and current values. It returns
// true when the accessory shape changed.
func (d *device) ensureService(want bool, t accessory.ServiceType, subtype, label string, setup func(*accessory.Service)) bool {
	existing := d.acc.Service(t, subtype)
	if !want {
		if existing == nil {
			return false
		}
		d.acc.RemoveService(existing)
		d.env.logger.Debug("removed service", "device", d.name(), "service", t, "subtype", subtype)
		return true
	}

	svc := existing
	if svc == nil {
		svc = d.acc.AddService(t, d.name()+" "+label, subtype)
		svc.Characteristic(accessory.CharStatusActive).SetInitial(d.isOnline())
	}
	if setup != nil {
		setup(svc)
	}
	return existing == nil
}

func (d *device) on(route Route, fn Handler) {
	d.subs = append(d.subs, d.env.router.On(route, fn))
}

// schedule runs fn after delay under the controller lock, replacing any
// pending timer with the same name.
func (d *device) schedule(name string, delay time.Duration, fn func()) {
	d.cancel(name)

	var t *clock.Timer
	t = d.env.clock.AfterFunc(delay, func() {
		d.env.mu.Lock()
		defer d.env.mu.Unlock()

		if d.cleaned || d.timers[name] != t {
			return
		}
		delete(d.timers, name)
		fn()
	})
	d.timers[name] = t
}

func (d *device) cancel(name string) {
	if t, ok := d.timers[name]; ok {
		t.Stop()
		delete(d.timers, name)
	}
}

func (d *device) pending(name string) bool {
	_, ok := d.timers[name]
	return ok
}

// revertLater resets c to value() after LockRevertDelay. Called without the
// controller lock.
func (d *device) revertLater(name string, c *accessory.Characteristic, value func() any) {
	d.env.mu.Lock()
	defer d.env.mu.Unlock()

	if d.cleaned {
		return
	}
	d.schedule(timerRevert+name, LockRevertDelay, func() {
		c.UpdateValue(value())
	})
}

func (d *device) publish(topic, message string) {
	d.env.telemetry.Publish(d.dev.MAC, d.topicPrefix+topic, message)
}

func (d *device) trackTopic(topic string) {
	for _, t := range d.topics {
		if t == topic {
			return
		}
	}
	d.topics = append(d.topics, topic)
}

func (d *device) unsubscribe(topic string) {
	for i, t := range d.topics {
		if t == topic {
			d.topics = append(d.topics[:i], d.topics[i+1:]...)
			break
		}
	}
	d.env.telemetry.Unsubscribe(d.dev.MAC, d.topicPrefix+topic)
}

func (d *device) subscribeGet(topic, name string, getter func() string) {
	d.trackTopic(topic)
	d.env.telemetry.SubscribeGet(d.dev.MAC, d.topicPrefix+topic, name, func() string {
		d.env.mu.Lock()
		defer d.env.mu.Unlock()
		return getter()
	})
}

// subscribeSet registers setter for <topic>/set. setter runs without the
// controller lock so it can issue commands.
func (d *device) subscribeSet(topic, name string, setter func(value string)) {
	d.trackTopic(topic)
	d.env.telemetry.SubscribeSet(d.dev.MAC, d.topicPrefix+topic, name, setter)
}

// cleanup drops every subscription, timer and topic the record holds.
// Safe to call more than once.
func (d *device) cleanup() {
	if d.cleaned {
		return
	}
	d.cleaned = true

	d.env.router.Off(d.subs...)
	d.subs = nil

	for name, t := range d.timers {
		t.Stop()
		delete(d.timers, name)
	}

	for _, topic := range d.topics {
		d.env.telemetry.Unsubscribe(d.dev.MAC, d.topicPrefix+topic)
	}
	d.topics = nil
}

// configureAccessEvents adds or removes the motion and occupancy sensors.
func (d *device) configureAccessEvents() bool {
	changed := d.ensureService(d.hints.motion, accessory.ServiceMotionSensor, "", "Motion", func(svc *accessory.Service) {
		if svc.Lookup(accessory.CharMotionDetected) == nil {
			svc.Characteristic(accessory.CharMotionDetected).SetInitial(false)
		}
	})
	if !d.hints.motion {
		d.cancel(timerMotion)
	}

	if d.ensureService(d.hints.occupancy, accessory.ServiceOccupancySensor, "", "Occupancy", func(svc *accessory.Service) {
		if svc.Lookup(accessory.CharOccupancyDetected) == nil {
			svc.Characteristic(accessory.CharOccupancyDetected).SetInitial(accessory.OccupancyNotDetected)
		}
	}) {
		changed = true
	}
	if !d.hints.occupancy {
		d.cancel(timerOccupancy)
	}

	return changed
}

// onAccessLog handles an access log entry that names this device.
func (d *device) onAccessLog(pkt access.Packet) {
	if d.hints.logAccess {
		var entry access.LogEntry
		if err := json.Unmarshal(pkt.Data, &entry); err == nil {
			d.env.logger.Info("access event",
				"device", d.name(),
				"actor", entry.Source.Actor.DisplayName,
				"method", entry.Source.Authentication.CredentialProvider,
				"result", entry.Source.Event.Result,
			)
		}
	}

	if svc := d.acc.Service(accessory.ServiceMotionSensor, ""); svc != nil && d.hints.motion {
		c := svc.Characteristic(accessory.CharMotionDetected)
		c.UpdateValue(true)
		d.schedule(timerMotion, d.hints.motionDuration, func() {
			c.UpdateValue(false)
		})
	}

	if svc := d.acc.Service(accessory.ServiceOccupancySensor, ""); svc != nil && d.hints.occupancy {
		c := svc.Characteristic(accessory.CharOccupancyDetected)
		if v, _ := accessory.Int(c.Value()); v != accessory.OccupancyDetected {
			c.UpdateValue(accessory.OccupancyDetected)
		}
		d.schedule(timerOccupancy, d.hints.occupancyDuration, func() {
			c.UpdateValue(accessory.OccupancyNotDetected)
		})
	}
}

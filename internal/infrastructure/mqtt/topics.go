package mqtt

import (
	"strings"
)

// DefaultRoot is the topic root used when none is configured.
const DefaultRoot = "unifi/access"

// Topics builds bridge topics under a root.
//
//	topics := mqtt.Topics{Root: "unifi/access"}
//	topics.Device("f4:e2:c6:aa:00:01", "lock")
//	// Returns: "unifi/access/F4E2C6AA0001/lock"
type Topics struct {
	Root string
}

// NewTopics returns a builder for root, trimming stray slashes.
func NewTopics(root string) Topics {
	root = strings.Trim(strings.TrimSpace(root), "/")
	if root == "" {
		root = DefaultRoot
	}
	return Topics{Root: root}
}

func (t Topics) root() string {
	if t.Root == "" {
		return DefaultRoot
	}
	return t.Root
}

// Status is the retained online/offline topic. It carries the LWT.
func (t Topics) Status() string {
	return t.root() + "/status"
}

// Health is the retained periodic health topic.
func (t Topics) Health() string {
	return t.root() + "/health"
}

// Device returns the state topic for one device.
//
// Example: unifi/access/F4E2C6AA0001/dps
func (t Topics) Device(mac, topic string) string {
	return t.root() + "/" + NormaliseID(mac) + "/" + topic
}

// Get returns the topic that requests a fresh publish of a device topic.
func (t Topics) Get(mac, topic string) string {
	return t.Device(mac, topic) + "/get"
}

// Set returns the command topic for a device topic.
func (t Topics) Set(mac, topic string) string {
	return t.Device(mac, topic) + "/set"
}

// Telemetry returns the topic that carries raw controller events.
func (t Topics) Telemetry(controllerMAC string) string {
	return t.Device(controllerMAC, "telemetry")
}

// AllDevices matches every device topic under the root.
func (t Topics) AllDevices() string {
	return t.root() + "/+/#"
}

// NormaliseID returns mac upper case without separators.
func NormaliseID(mac string) string {
	r := strings.NewReplacer(":", "", "-", "", ".", "")
	return strings.ToUpper(r.Replace(mac))
}

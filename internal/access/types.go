package access

import (
	"encoding/json"
	"slices"
	"strings"
)

// Event types on the notification stream.
const (
	EventDeviceUpdate     = "access.data.device.update"
	EventDeviceDelete     = "access.data.device.delete"
	EventRemoteUnlock     = "access.data.device.remote_unlock"
	EventRemoteView       = "access.remote_view"
	EventRemoteViewChange = "access.remote_view.change"
	EventLogsAdd          = "access.logs.add"

	// EventBootstrap carries a full Bootstrap as its data. The controller
	// pushes one when its inventory changes.
	EventBootstrap = "access.data.bootstrap"
)

// Capability flags reported by devices.
const (
	CapabilityHub    = "is_hub"
	CapabilityReader = "is_reader"
)

// ConfigEntry is one key/value setting on a device.
type ConfigEntry struct {
	Key   string `json:"key"`
	Tag   string `json:"tag,omitempty"`
	Value string `json:"value"`
}

// Extension is a device extension: an attached relay, port or door binding.
type Extension struct {
	Name         string        `json:"extension_name"`
	TargetName   string        `json:"target_name,omitempty"`
	TargetValue  string        `json:"target_value,omitempty"`
	SourceID     string        `json:"source_id,omitempty"`
	TargetConfig []ConfigEntry `json:"target_config,omitempty"`
}

// Device is a controller-managed unit as reported by bootstrap and update events.
type Device struct {
	ID           string        `json:"unique_id"`
	Alias        string        `json:"alias"`
	Name         string        `json:"name"`
	DeviceType   string        `json:"device_type"`
	DisplayModel string        `json:"display_model"`
	Firmware     string        `json:"firmware"`
	MAC          string        `json:"mac"`
	IP           string        `json:"ip"`
	LocationID   string        `json:"location_id"`
	SourceID     string        `json:"source_id,omitempty"`
	Capabilities []string      `json:"capabilities"`
	Configs      []ConfigEntry `json:"configs"`
	Extensions   []Extension   `json:"extensions"`
	IsAdopted    bool          `json:"is_adopted"`
	IsConnected  bool          `json:"is_connected"`
	IsManaged    bool          `json:"is_managed"`
	IsOnline     bool          `json:"is_online"`
}

// DisplayName returns the alias, falling back to the name.
func (d Device) DisplayName() string {
	if d.Alias != "" {
		return d.Alias
	}
	if d.Name != "" {
		return d.Name
	}
	return d.DeviceType
}

// HasCapability reports whether the device advertises capability c.
func (d Device) HasCapability(c string) bool {
	return slices.Contains(d.Capabilities, c)
}

// Config returns the value of the config entry with key.
func (d Device) Config(key string) (string, bool) {
	for _, c := range d.Configs {
		if c.Key == key {
			return c.Value, true
		}
	}
	return "", false
}

// Extension returns the extension with the given name.
func (d Device) Extension(name string) (Extension, bool) {
	for _, e := range d.Extensions {
		if e.Name == name {
			return e, true
		}
	}
	return Extension{}, false
}

// Clone returns a deep copy.
func (d Device) Clone() Device {
	out := d
	out.Capabilities = slices.Clone(d.Capabilities)
	out.Configs = slices.Clone(d.Configs)
	out.Extensions = make([]Extension, len(d.Extensions))
	for i, e := range d.Extensions {
		e.TargetConfig = slices.Clone(e.TargetConfig)
		out.Extensions[i] = e
	}
	return out
}

// Door is a physical door location and the devices grouped on it.
type Door struct {
	ID           string     `json:"unique_id"`
	Name         string     `json:"name"`
	DeviceGroups [][]Device `json:"device_groups"`
}

// HasDevice reports whether any device group on the door lists mac.
func (d Door) HasDevice(mac string) bool {
	for _, group := range d.DeviceGroups {
		for _, dev := range group {
			if sameMAC(dev.MAC, mac) {
				return true
			}
		}
	}
	return false
}

// Host describes the controller itself.
type Host struct {
	MAC        string `json:"mac"`
	Name       string `json:"name"`
	Firmware   string `json:"firmware"`
	DeviceType string `json:"device_type"`
}

// Bootstrap is a full-state snapshot of the controller.
type Bootstrap struct {
	Host    Host     `json:"host"`
	Devices []Device `json:"devices"`
	Doors   []Door   `json:"doors"`
}

// Packet is one notification from the event stream.
type Packet struct {
	Event    string          `json:"event"`
	ObjectID string          `json:"event_object_id"`
	Data     json.RawMessage `json:"data"`
}

// Device decodes the packet payload as a Device.
func (p Packet) Device() (Device, error) {
	var d Device
	err := json.Unmarshal(p.Data, &d)
	return d, err
}

// RemoteView is the payload of doorbell ring events.
type RemoteView struct {
	DeviceID  string `json:"device_id"`
	RequestID string `json:"request_id"`
	DoorName  string `json:"door_name,omitempty"`
	Reason    string `json:"reason_code,omitempty"`
}

// RemoteViewChange is the payload sent when a ring is answered, declined or
// times out.
type RemoteViewChange struct {
	RequestID string `json:"remote_call_request_id"`
	Reason    string `json:"reason_code,omitempty"`
}

// LogTarget is one object an access log entry refers to.
type LogTarget struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// LogEntry is the payload of access log events.
type LogEntry struct {
	Source struct {
		Actor struct {
			DisplayName string `json:"display_name"`
		} `json:"actor"`
		Event struct {
			Type   string `json:"type"`
			Result string `json:"result"`
		} `json:"event"`
		Authentication struct {
			CredentialProvider string `json:"credential_provider"`
		} `json:"authentication"`
		Target []LogTarget `json:"target"`
	} `json:"_source"`
}

// TargetIDs returns the ids of every target in the entry.
func (l LogEntry) TargetIDs() []string {
	ids := make([]string, 0, len(l.Source.Target))
	for _, t := range l.Source.Target {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// UnlockDuration controls how long a relay stays released.
type UnlockDuration int

const (
	// UnlockDefault lets the controller apply its own short relock.
	UnlockDefault UnlockDuration = -2

	// UnlockIndefinite leaves the relay released until told otherwise.
	UnlockIndefinite UnlockDuration = -1

	// Relock re-engages the relay immediately.
	Relock UnlockDuration = 0
)

// Seconds returns a duration of n seconds.
func Seconds(n int) UnlockDuration {
	return UnlockDuration(n)
}

// RequestOptions shape a generic API request.
type RequestOptions struct {
	Method string
	Body   any
}

// Response is the raw result of a generic API request.
type Response struct {
	StatusCode int
	Body       []byte
}

// Stats counts client activity since creation or the last Reset.
type Stats struct {
	Logins    int64 `json:"logins"`
	Requests  int64 `json:"requests"`
	Failures  int64 `json:"failures"`
	Packets   int64 `json:"packets"`
	LastLogin int64 `json:"last_login_unix,omitempty"`
}

// Endpoint paths.
const (
	loginPath        = "/api/auth/login"
	bootstrapPath    = "/proxy/access/api/v2/bootstrap"
	notificationPath = "/proxy/access/api/v2/ws/notification"
)

// DeviceConfigEndpoint is the settings endpoint of a device.
func DeviceConfigEndpoint(deviceID string) string {
	return "/proxy/access/api/v2/device/" + deviceID + "/configs"
}

// LocationUnlockEndpoint releases the lock bound to a door location.
func LocationUnlockEndpoint(locationID string) string {
	return "/proxy/access/api/v2/location/" + locationID + "/unlock"
}

func relayUnlockEndpoint(deviceID string) string {
	return "/proxy/access/api/v2/device/" + deviceID + "/relay_unlock"
}

func sameMAC(a, b string) bool {
	strip := strings.NewReplacer(":", "", "-", "")
	return a != "" && strings.EqualFold(strip.Replace(a), strip.Replace(b))
}

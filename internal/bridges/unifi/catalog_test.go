package unifi

import (
	"testing"

	"github.com/nerrad567/gray-logic-access/internal/access"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		caps []string
		want deviceClass
	}{
		{"hub", []string{access.CapabilityHub}, classHub},
		{"reader", []string{access.CapabilityReader, "support_nfc"}, classReader},
		{"hub wins over reader", []string{access.CapabilityReader, access.CapabilityHub}, classHub},
		{"intercom", []string{"door_bell", "video"}, classUnsupported},
		{"no capabilities", nil, classUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(access.Device{Capabilities: tt.caps}); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeviceKey(t *testing.T) {
	tests := []struct {
		name string
		dev  access.Device
		want string
	}{
		{"single door hub", access.Device{MAC: "f4:e2:c6:aa:00:01", DeviceType: "UAH"}, "F4E2C6AA0001"},
		{"source id ignored on single door models", access.Device{MAC: "f4:e2:c6:aa:00:01", DeviceType: "UAH", SourceID: "d2"}, "F4E2C6AA0001"},
		{"enterprise hub door", access.Device{MAC: "f4:e2:c6:aa:00:01", DeviceType: "UAH-Ent", SourceID: "door-b"}, "F4E2C6AA0001.DOOR-B"},
		{"enterprise hub without source", access.Device{MAC: "f4:e2:c6:aa:00:01", DeviceType: "UAH-Ent"}, "F4E2C6AA0001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deviceKey(tt.dev); got != tt.want {
				t.Errorf("deviceKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Inputs a model does not map are unwired and read closed whatever the
// device reports.
func TestInputContact_UnmappedInputs(t *testing.T) {
	noisy := access.Device{Configs: []access.ConfigEntry{
		cfg("wiring_state_rel-neg", "on"), cfg("wiring_state_rel-pos", "on"), cfg("input_state_rel", "on"),
		cfg("wiring_state_ren-gnd", "on"), cfg("wiring_state_ren-vcc", "on"), cfg("input_state_ren", "on"),
		cfg("wiring_state_rex-gnd", "on"), cfg("wiring_state_rex-vcc", "on"), cfg("input_state_rex", "on"),
		cfg("wiring_state_dps-neg", "on"), cfg("wiring_state_dps-pos", "on"), cfg("input_state_dps", "on"),
		cfg("input_mode", "dps"),
	}}

	for model, spec := range models {
		for _, in := range Inputs {
			if _, mapped := spec.inputs[in]; mapped {
				continue
			}
			wired, detected := inputContact(spec, in, noisy)
			if wired || !detected {
				t.Errorf("%s %s: inputContact() = (%v, %v), want (false, true)", model, in, wired, detected)
			}
		}
	}
}

func TestInputWired_NeedsEveryWiringKey(t *testing.T) {
	model := models["UAH"]

	tests := []struct {
		name    string
		configs []access.ConfigEntry
		want    bool
	}{
		{"both on", []access.ConfigEntry{cfg("wiring_state_dps-neg", "on"), cfg("wiring_state_dps-pos", "on")}, true},
		{"one off", []access.ConfigEntry{cfg("wiring_state_dps-neg", "on"), cfg("wiring_state_dps-pos", "off")}, false},
		{"one missing", []access.ConfigEntry{cfg("wiring_state_dps-neg", "on")}, false},
		{"none reported", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := access.Device{Configs: tt.configs}
			if got := inputWired(model, InputDPS, dev); got != tt.want {
				t.Errorf("inputWired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInputContact_OpenWhenStateOn(t *testing.T) {
	model := models["UAH"]
	wiring := []access.ConfigEntry{cfg("wiring_state_dps-neg", "on"), cfg("wiring_state_dps-pos", "on")}

	open := access.Device{Configs: append(wiring, cfg("input_state_dps", "on"))}
	if wired, detected := inputContact(model, InputDPS, open); !wired || detected {
		t.Errorf("open door: inputContact() = (%v, %v), want (true, false)", wired, detected)
	}

	closed := access.Device{Configs: append(append([]access.ConfigEntry(nil), wiring...), cfg("input_state_dps", "off"))}
	if wired, detected := inputContact(model, InputDPS, closed); !wired || !detected {
		t.Errorf("closed door: inputContact() = (%v, %v), want (true, true)", wired, detected)
	}
}

func TestInputWired_ProxyMode(t *testing.T) {
	model := models["UA-ULTRA"]

	viaExtension := access.Device{Extensions: []access.Extension{{
		Name:         "port_setting",
		TargetConfig: []access.ConfigEntry{cfg("input_mode", "DPS")},
	}}}
	viaConfig := access.Device{Configs: []access.ConfigEntry{cfg("input_mode", "rex")}}

	tests := []struct {
		name string
		dev  access.Device
		in   Input
		want bool
	}{
		{"extension selects dps", viaExtension, InputDPS, true},
		{"extension leaves rex unwired", viaExtension, InputREX, false},
		{"config selects rex", viaConfig, InputREX, true},
		{"config leaves dps unwired", viaConfig, InputDPS, false},
		{"no selector", access.Device{}, InputDPS, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inputWired(model, tt.in, tt.dev); got != tt.want {
				t.Errorf("inputWired(%s) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLookupModel_UnknownHub(t *testing.T) {
	m := lookupModel("UAH-NEXT")
	if m.lockKey != defaultLockKey {
		t.Errorf("lockKey = %q, want %q", m.lockKey, defaultLockKey)
	}
	if len(m.inputs) != 0 || m.sideDoorKey != "" {
		t.Errorf("unknown model = %+v, want lock only", m)
	}
}

func TestParseFirmware(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"v1.2.3.4", "1.2.3"},
		{"v1.2", "1.2.0"},
		{"v3", "3.0.0"},
		{"v2.10.7-beta", "2.10.7"},
		{"unknown", "unknown"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := parseFirmware(tt.in); got != tt.want {
			t.Errorf("parseFirmware(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsOnline(t *testing.T) {
	base := access.Device{IsAdopted: true, IsConnected: true, IsManaged: true, IsOnline: true}

	tests := []struct {
		name   string
		mutate func(*access.Device)
		want   bool
	}{
		{"all set", func(*access.Device) {}, true},
		{"not adopted", func(d *access.Device) { d.IsAdopted = false }, false},
		{"not connected", func(d *access.Device) { d.IsConnected = false }, false},
		{"not managed", func(d *access.Device) { d.IsManaged = false }, false},
		{"not online", func(d *access.Device) { d.IsOnline = false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := base
			tt.mutate(&dev)
			d := &device{dev: dev}
			if got := d.isOnline(); got != tt.want {
				t.Errorf("isOnline() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDoorTopic(t *testing.T) {
	tests := []struct {
		name string
		dev  access.Device
		want string
	}{
		{"single door hub", access.Device{DeviceType: "UAH", SourceID: "door-a"}, ""},
		{"enterprise hub door", access.Device{DeviceType: "UAH-Ent", SourceID: "DOOR-B"}, "door-b/"},
		{"enterprise hub without source", access.Device{DeviceType: "UAH-Ent"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := doorTopic(tt.dev); got != tt.want {
				t.Errorf("doorTopic() = %q, want %q", got, tt.want)
			}
		})
	}
}

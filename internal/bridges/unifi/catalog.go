package unifi

import (
	"strings"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/featureopt"
)

// Input is a hub terminal input.
type Input int

// Terminal inputs.
const (
	InputDPS Input = iota // door position sensor
	InputREL              // remote release
	InputREN              // request to enter
	InputREX              // request to exit
)

// Inputs lists every terminal input in display order.
var Inputs = []Input{InputDPS, InputREL, InputREN, InputREX}

func (i Input) String() string {
	switch i {
	case InputDPS:
		return "DPS"
	case InputREL:
		return "REL"
	case InputREN:
		return "REN"
	case InputREX:
		return "REX"
	default:
		return "unknown"
	}
}

// option is the feature option enabling the input's contact sensor.
func (i Input) option() string {
	switch i {
	case InputDPS:
		return featureopt.HubDPS
	case InputREL:
		return featureopt.HubREL
	case InputREN:
		return featureopt.HubREN
	default:
		return featureopt.HubREX
	}
}

func (i Input) subtype() string {
	return strings.ToLower(i.String())
}

func (i Input) label() string {
	switch i {
	case InputDPS:
		return "Door Position Sensor"
	case InputREL:
		return "Remote Release"
	case InputREN:
		return "Request to Enter"
	default:
		return "Request to Exit"
	}
}

// inputSpec maps an input onto raw device config keys.
type inputSpec struct {
	// wiring keys must all read "on" for the input to count as wired.
	wiring []string

	// state holds the contact: "on" means open.
	state string

	// mode is the selector value that routes the single proxy input here.
	mode string
}

// modelSpec describes one hub model.
type modelSpec struct {
	lockKey string
	inputs  map[Input]inputSpec

	// proxy models have one physical input whose role is picked by a mode
	// selector rather than by wiring sense keys.
	proxy bool

	// multiDoor models report one device entry per door, told apart by
	// source_id.
	multiDoor bool

	sideDoorKey       string
	sideDoorExtension string
}

const defaultLockKey = "input_state_rly-lock_dry"

// Proxy input mode selector.
const (
	proxyModeExtension = "port_setting"
	proxyModeKey       = "input_mode"
)

var (
	dpsInput = inputSpec{
		wiring: []string{"wiring_state_dps-neg", "wiring_state_dps-pos"},
		state:  "input_state_dps",
	}
	rexInput = inputSpec{
		wiring: []string{"wiring_state_rex-gnd", "wiring_state_rex-vcc"},
		state:  "input_state_rex",
	}
)

var models = map[string]modelSpec{
	"UAH": {
		lockKey: defaultLockKey,
		inputs: map[Input]inputSpec{
			InputDPS: dpsInput,
			InputREL: {
				wiring: []string{"wiring_state_rel-neg", "wiring_state_rel-pos"},
				state:  "input_state_rel",
			},
			InputREN: {
				wiring: []string{"wiring_state_ren-gnd", "wiring_state_ren-vcc"},
				state:  "input_state_ren",
			},
			InputREX: rexInput,
		},
	},
	"UAH-DOOR": {
		lockKey: defaultLockKey,
		inputs:  map[Input]inputSpec{InputDPS: dpsInput, InputREX: rexInput},
	},
	"UAH-Ent": {
		lockKey:   defaultLockKey,
		inputs:    map[Input]inputSpec{InputDPS: dpsInput, InputREX: rexInput},
		multiDoor: true,
	},
	"UA-ULTRA": {
		lockKey: "output_d1_lock_relay",
		inputs: map[Input]inputSpec{
			InputDPS: {mode: "dps", state: "input_d1_dps"},
			InputREX: {mode: "rex", state: "input_d1_button"},
		},
		proxy: true,
	},
	"UGT": {
		lockKey: "output_oper1_relay",
		inputs: map[Input]inputSpec{
			InputDPS: {
				wiring: []string{"wiring_state_gate-dps-neg", "wiring_state_gate-dps-pos"},
				state:  "input_gate_dps",
			},
		},
		sideDoorKey:       "output_oper2_relay",
		sideDoorExtension: "oper2",
	},
}

// lookupModel returns the model description for a device type. Unknown hubs get a lock
// and no terminal inputs.
func lookupModel(deviceType string) modelSpec {
	if m, ok := models[deviceType]; ok {
		return m
	}
	return modelSpec{lockKey: defaultLockKey}
}

// proxyMode returns the input mode selected on a proxy hub.
func proxyMode(dev access.Device) string {
	if ext, ok := dev.Extension(proxyModeExtension); ok {
		for _, c := range ext.TargetConfig {
			if c.Key == proxyModeKey {
				return strings.ToLower(c.Value)
			}
		}
	}
	if v, ok := dev.Config(proxyModeKey); ok {
		return strings.ToLower(v)
	}
	return ""
}

// inputWired reports whether the hardware senses something on input.
func inputWired(model modelSpec, in Input, dev access.Device) bool {
	spec, mapped := model.inputs[in]
	if !mapped {
		return false
	}

	if model.proxy {
		mode := proxyMode(dev)
		return mode != "" && mode == spec.mode
	}

	if len(spec.wiring) == 0 {
		return false
	}
	for _, key := range spec.wiring {
		if v, ok := dev.Config(key); !ok || v != "on" {
			return false
		}
	}
	return true
}

// inputContact evaluates an input: wired, and whether contact is detected
// (closed). Unwired inputs always read closed.
func inputContact(model modelSpec, in Input, dev access.Device) (wired, detected bool) {
	if !inputWired(model, in, dev) {
		return false, true
	}
	v, _ := dev.Config(model.inputs[in].state)
	return true, v != "on"
}

type deviceClass int

const (
	classUnsupported deviceClass = iota
	classHub
	classReader
)

func (c deviceClass) String() string {
	switch c {
	case classHub:
		return "hub"
	case classReader:
		return "reader"
	default:
		return "unsupported"
	}
}

// classify picks the record kind for a device. Hub wins over reader.
func classify(dev access.Device) deviceClass {
	switch {
	case dev.HasCapability(access.CapabilityHub):
		return classHub
	case dev.HasCapability(access.CapabilityReader):
		return classReader
	default:
		return classUnsupported
	}
}

// deviceKey identifies a device record. Multi-door hubs report one entry per
// door sharing a MAC, so their key carries the door's source id.
func deviceKey(dev access.Device) string {
	mac := featureopt.ID(dev.MAC)
	if lookupModel(dev.DeviceType).multiDoor && dev.SourceID != "" {
		return mac + "." + strings.ToUpper(dev.SourceID)
	}
	return mac
}

// doorTopic returns the MQTT topic prefix that keeps the doors of a
// multi-door hub apart, e.g. "door-a/". Other devices get "".
func doorTopic(dev access.Device) string {
	if lookupModel(dev.DeviceType).multiDoor && dev.SourceID != "" {
		return strings.ToLower(dev.SourceID) + "/"
	}
	return ""
}

// accessMethod is a reader unlock method exposed as a switch.
type accessMethod struct {
	Name       string
	Label      string
	Option     string
	Capability string
	Key        string
}

const (
	openDoorModeTag = "open_door_mode"
	configEnabled   = "yes"
	configDisabled  = "no"

	doorbellCapability = "door_bell"
)

var accessMethods = []accessMethod{
	{Name: "Face", Label: "Face Unlock", Option: featureopt.ReaderAccessMethod + ".Face", Capability: "identity_face_unlock", Key: "face"},
	{Name: "NFC", Label: "NFC", Option: featureopt.ReaderAccessMethod + ".NFC", Capability: "support_nfc", Key: "nfc"},
	{Name: "PIN", Label: "PIN", Option: featureopt.ReaderAccessMethod + ".PIN", Capability: "pin_code", Key: "pin_code"},
	{Name: "MobileTap", Label: "Mobile Tap", Option: featureopt.ReaderAccessMethod + ".MobileTap", Capability: "mobile_unlock", Key: "bt_tap"},
	{Name: "QR", Label: "QR Code", Option: featureopt.ReaderAccessMethod + ".QR", Capability: "support_qr_code", Key: "qr_code"},
	{Name: "TouchPass", Label: "Touch Pass", Option: featureopt.ReaderAccessMethod + ".TouchPass", Capability: "touch_pass", Key: "apple_pass"},
	{Name: "HandWave", Label: "Hand Wave", Option: featureopt.ReaderHandWave, Capability: "hand_wave", Key: "wave"},
}

func (m accessMethod) subtype() string {
	return "method-" + strings.ToLower(m.Name)
}

package featureopt

// Option declares a feature option and its defaults.
type Option struct {
	Name         string
	Description  string
	Default      bool
	DefaultValue string
}

// Option names used by the access bridge.
const (
	Device                  = "Device"
	DeviceSyncName          = "Device.SyncName"
	DeviceMotion            = "Device.Motion"
	DeviceMotionDuration    = "Device.Motion.Duration"
	DeviceOccupancy         = "Device.Occupancy"
	DeviceOccupancyDuration = "Device.Occupancy.Duration"

	ControllerDelayDeviceRemoval = "Controller.DelayDeviceRemoval"
	ControllerPublishTelemetry   = "Controller.Publish.Telemetry"

	HubLockDelayInterval   = "Hub.Lock.Delay.Interval"
	HubLockTrigger         = "Hub.Lock.Trigger"
	HubDPS                 = "Hub.DPS"
	HubREL                 = "Hub.REL"
	HubREN                 = "Hub.REN"
	HubREX                 = "Hub.REX"
	HubDoorbell            = "Hub.Doorbell"
	HubDoorbellTrigger     = "Hub.Doorbell.Trigger"
	HubSideDoor            = "Hub.SideDoor"
	HubSideDoorLockTrigger = "Hub.SideDoor.Lock.Trigger"

	ReaderAccessMethod = "Reader.AccessMethod"
	ReaderHandWave     = "Reader.HandWave"

	LogLock     = "Log.Lock"
	LogDPS      = "Log.DPS"
	LogDoorbell = "Log.Doorbell"
	LogAccess   = "Log.Access"
)

// Catalog is the full set of options the bridge understands.
var Catalog = []Option{
	{Name: Device, Description: "Make this device available.", Default: true},
	{Name: DeviceSyncName, Description: "Keep the accessory name in sync with the controller."},
	{Name: DeviceMotion, Description: "Add a motion sensor triggered by access events."},
	{Name: DeviceMotionDuration, Description: "Seconds a motion event stays active.", Default: true, DefaultValue: "10"},
	{Name: DeviceOccupancy, Description: "Add an occupancy sensor triggered by access events."},
	{Name: DeviceOccupancyDuration, Description: "Seconds occupancy is held after the last event.", Default: true, DefaultValue: "300"},

	{Name: ControllerDelayDeviceRemoval, Description: "Seconds to wait before removing a device the controller stopped reporting.", DefaultValue: "60"},
	{Name: ControllerPublishTelemetry, Description: "Publish every controller event to MQTT."},

	{Name: HubLockDelayInterval, Description: "Minutes the lock stays released after an unlock. Zero keeps it released.", DefaultValue: "0"},
	{Name: HubLockTrigger, Description: "Add a switch that mirrors and drives the lock."},
	{Name: HubDPS, Description: "Add a contact sensor for the door position sensor.", Default: true},
	{Name: HubREL, Description: "Add a contact sensor for remote release.", Default: true},
	{Name: HubREN, Description: "Add a contact sensor for request to enter.", Default: true},
	{Name: HubREX, Description: "Add a contact sensor for request to exit.", Default: true},
	{Name: HubDoorbell, Description: "Add a doorbell when the hub supports one.", Default: true},
	{Name: HubDoorbellTrigger, Description: "Add a switch that is on while the doorbell rings."},
	{Name: HubSideDoor, Description: "Add a lock for the gate hub side door.", Default: true},
	{Name: HubSideDoorLockTrigger, Description: "Add a switch for the side door lock."},

	{Name: ReaderAccessMethod + ".Face", Description: "Switch for face unlock.", Default: true},
	{Name: ReaderAccessMethod + ".NFC", Description: "Switch for NFC cards.", Default: true},
	{Name: ReaderAccessMethod + ".PIN", Description: "Switch for PIN entry.", Default: true},
	{Name: ReaderAccessMethod + ".MobileTap", Description: "Switch for mobile tap.", Default: true},
	{Name: ReaderAccessMethod + ".QR", Description: "Switch for QR codes.", Default: true},
	{Name: ReaderAccessMethod + ".TouchPass", Description: "Switch for touch pass.", Default: true},
	{Name: ReaderHandWave, Description: "Switch for hand wave unlock.", Default: true},

	{Name: LogLock, Description: "Log lock state changes.", Default: true},
	{Name: LogDPS, Description: "Log door position changes.", Default: true},
	{Name: LogDoorbell, Description: "Log doorbell rings.", Default: true},
	{Name: LogAccess, Description: "Log access events.", Default: true},
}

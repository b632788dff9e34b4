package accessory

// ServiceType names a service kind.
type ServiceType string

// Service types.
const (
	ServiceAccessoryInformation ServiceType = "AccessoryInformation"
	ServiceLockMechanism        ServiceType = "LockMechanism"
	ServiceContactSensor        ServiceType = "ContactSensor"
	ServiceSwitch               ServiceType = "Switch"
	ServiceDoorbell             ServiceType = "Doorbell"
	ServiceMotionSensor         ServiceType = "MotionSensor"
	ServiceOccupancySensor      ServiceType = "OccupancySensor"
)

// CharacteristicType names a characteristic kind.
type CharacteristicType string

// Characteristic types.
const (
	CharName                    CharacteristicType = "Name"
	CharConfiguredName          CharacteristicType = "ConfiguredName"
	CharManufacturer            CharacteristicType = "Manufacturer"
	CharModel                   CharacteristicType = "Model"
	CharSerialNumber            CharacteristicType = "SerialNumber"
	CharFirmwareRevision        CharacteristicType = "FirmwareRevision"
	CharLockCurrentState        CharacteristicType = "LockCurrentState"
	CharLockTargetState         CharacteristicType = "LockTargetState"
	CharContactSensorState      CharacteristicType = "ContactSensorState"
	CharOn                      CharacteristicType = "On"
	CharProgrammableSwitchEvent CharacteristicType = "ProgrammableSwitchEvent"
	CharMotionDetected          CharacteristicType = "MotionDetected"
	CharOccupancyDetected       CharacteristicType = "OccupancyDetected"
	CharStatusActive            CharacteristicType = "StatusActive"
)

// LockCurrentState / LockTargetState values.
const (
	LockUnsecured = 0
	LockSecured   = 1
	LockJammed    = 2
	LockUnknown   = 3
)

// ContactSensorState values.
const (
	ContactDetected    = 0
	ContactNotDetected = 1
)

// OccupancyDetected values.
const (
	OccupancyNotDetected = 0
	OccupancyDetected    = 1
)

// ProgrammableSwitchEvent values.
const (
	SinglePress = 0
	DoublePress = 1
	LongPress   = 2
)

// Int coerces a characteristic value to int. JSON numbers arrive as float64.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Bool coerces a characteristic value to bool.
func Bool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case int, int64, float64:
		n, ok := Int(b)
		if !ok || (n != 0 && n != 1) {
			return false, false
		}
		return n == 1, true
	default:
		return false, false
	}
}

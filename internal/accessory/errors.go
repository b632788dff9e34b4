package accessory

import "errors"

var (
	// ErrAccessoryNotFound is returned when no registered accessory has the UUID.
	ErrAccessoryNotFound = errors.New("accessory: not found")

	// ErrServiceNotFound is returned when the accessory has no such service.
	ErrServiceNotFound = errors.New("accessory: service not found")

	// ErrCharacteristicNotFound is returned when the service lacks the characteristic.
	ErrCharacteristicNotFound = errors.New("accessory: characteristic not found")

	// ErrReadOnly is returned when writing a characteristic without a set handler.
	ErrReadOnly = errors.New("accessory: characteristic is read-only")

	// ErrInvalidValue is returned by set handlers for values of the wrong type.
	ErrInvalidValue = errors.New("accessory: invalid value")
)

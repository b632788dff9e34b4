package access

import "errors"

var (
	// ErrNotConfigured is returned when address or credentials are missing.
	ErrNotConfigured = errors.New("access: controller address and credentials are required")

	// ErrAuthFailed is returned when the controller rejects the login.
	ErrAuthFailed = errors.New("access: authentication failed")

	// ErrBadResponse is returned for unexpected status codes or payloads.
	ErrBadResponse = errors.New("access: unexpected controller response")

	// ErrCommandFailed is returned when the controller refuses a command.
	ErrCommandFailed = errors.New("access: command rejected by controller")
)

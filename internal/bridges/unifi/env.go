package unifi

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/accessory"
	"github.com/nerrad567/gray-logic-access/internal/featureopt"
)

// commandTimeout bounds a single device command.
const commandTimeout = 10 * time.Second

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Commander issues device commands. *access.Client satisfies it.
type Commander interface {
	Unlock(ctx context.Context, device access.Device, duration access.UnlockDuration) error
	Retrieve(ctx context.Context, endpoint string, opts access.RequestOptions) (*access.Response, error)
	ResponseOK(status int) bool
}

// Transport is the full controller session. *access.Client satisfies it.
type Transport interface {
	Commander
	Login(ctx context.Context) error
	Bootstrap(ctx context.Context) (*access.Bootstrap, error)
	Listen(ctx context.Context, fn func(access.Packet)) error
	Reset()
	Stats() access.Stats
}

// AccessoryHost publishes accessories. *accessory.Host satisfies it.
type AccessoryHost interface {
	UUID(id string) string
	Lookup(uuid string) *accessory.Accessory
	Accessories() []*accessory.Accessory
	Register(accs ...*accessory.Accessory)
	Update(accs ...*accessory.Accessory)
	Unregister(accs ...*accessory.Accessory)
}

// Telemetry mirrors device state to MQTT. *telemetry.Bridge satisfies it.
type Telemetry interface {
	Publish(id, topic, message string)
	PublishEvent(controllerID string, payload []byte)
	SubscribeGet(id, topic, name string, getter func() string)
	SubscribeSet(id, topic, name string, setter func(value string))
	Unsubscribe(id, topic string)
}

type noopTelemetry struct{}

func (noopTelemetry) Publish(string, string, string)                     {}
func (noopTelemetry) PublishEvent(string, []byte)                        {}
func (noopTelemetry) SubscribeGet(string, string, string, func() string) {}
func (noopTelemetry) SubscribeSet(string, string, string, func(string))  {}
func (noopTelemetry) Unsubscribe(string, string)                         {}

// deviceEnv is what a device record may touch of its controller.
type deviceEnv struct {
	controllerID string
	commander    Commander
	options      featureopt.FeatureOptions
	router       *Router
	host         AccessoryHost
	telemetry    Telemetry
	clock        clock.Clock
	logger       Logger

	// mu is the controller lock serialising all device logic.
	mu *sync.Mutex

	// doors returns the door list of the last bootstrap. Called with mu held.
	doors func() []access.Door

	// command records a command outcome for metrics.
	command func(name string, err error)
}

func (e *deviceEnv) commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

func (e *deviceEnv) recordCommand(name string, err error) {
	if e.command != nil {
		e.command(name, err)
	}
}

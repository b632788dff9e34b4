package telemetry

import (
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
)

// Client is the MQTT surface used by the bridge. *mqtt.Client satisfies it.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Topics() mqtt.Topics
	QoS() byte
}

// PointWriter records published states. *influxdb.Client satisfies it.
type PointWriter interface {
	WriteState(device, topic string, value float64)
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Bridge.
type Options struct {
	// Points receives a copy of every published state. Optional.
	Points PointWriter

	Logger Logger
}

// Bridge publishes device states and routes get/set requests back to
// device handlers.
type Bridge struct {
	client Client
	points PointWriter
	logger Logger

	mu   sync.Mutex
	subs map[string]map[string]struct{} // device id → full topics
}

// New creates a bridge over client.
func New(client Client, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		client: client,
		points: opts.Points,
		logger: logger,
		subs:   make(map[string]map[string]struct{}),
	}
}

// Publish sends a retained state message for device id.
func (b *Bridge) Publish(id, topic, message string) {
	full := b.client.Topics().Device(id, topic)
	if err := b.client.Publish(full, []byte(message), b.client.QoS(), true); err != nil {
		b.logger.Warn("telemetry publish failed", "topic", full, "error", err)
	}

	if b.points != nil {
		if v, ok := numeric(message); ok {
			b.points.WriteState(mqtt.NormaliseID(id), topic, v)
		}
	}
}

// PublishEvent sends a raw controller event to the controller's telemetry
// topic. Events are not retained.
func (b *Bridge) PublishEvent(controllerID string, payload []byte) {
	full := b.client.Topics().Telemetry(controllerID)
	if err := b.client.Publish(full, payload, 0, false); err != nil {
		b.logger.Debug("telemetry event publish failed", "topic", full, "error", err)
	}
}

// Subscribe calls fn with every payload received on the device topic.
func (b *Bridge) Subscribe(id, topic string, fn func(payload string)) {
	b.subscribe(id, b.client.Topics().Device(id, topic), func(_ string, payload []byte) error {
		fn(strings.TrimSpace(string(payload)))
		return nil
	})
}

// SubscribeGet republishes the getter's value whenever <topic>/get
// receives a message.
func (b *Bridge) SubscribeGet(id, topic, name string, getter func() string) {
	b.subscribe(id, b.client.Topics().Get(id, topic), func(_ string, _ []byte) error {
		b.logger.Debug("telemetry get", "device", id, "state", name)
		b.Publish(id, topic, getter())
		return nil
	})
}

// SubscribeSet passes every payload received on <topic>/set to setter.
func (b *Bridge) SubscribeSet(id, topic, name string, setter func(value string)) {
	b.subscribe(id, b.client.Topics().Set(id, topic), func(_ string, payload []byte) error {
		value := strings.TrimSpace(string(payload))
		b.logger.Info("telemetry set", "device", id, "state", name, "value", value)
		setter(value)
		return nil
	})
}

// Unsubscribe drops the topic and its get/set companions for device id.
func (b *Bridge) Unsubscribe(id, topic string) {
	topics := b.client.Topics()
	key := mqtt.NormaliseID(id)

	for _, full := range []string{topics.Device(id, topic), topics.Get(id, topic), topics.Set(id, topic)} {
		b.mu.Lock()
		_, tracked := b.subs[key][full]
		delete(b.subs[key], full)
		b.mu.Unlock()

		if !tracked {
			continue
		}
		if err := b.client.Unsubscribe(full); err != nil {
			b.logger.Debug("telemetry unsubscribe failed", "topic", full, "error", err)
		}
	}
}

// Subscriptions returns the number of topics held for device id.
func (b *Bridge) Subscriptions(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[mqtt.NormaliseID(id)])
}

func (b *Bridge) subscribe(id, full string, handler mqtt.MessageHandler) {
	if err := b.client.Subscribe(full, b.client.QoS(), handler); err != nil {
		b.logger.Warn("telemetry subscribe failed", "topic", full, "error", err)
		return
	}

	key := mqtt.NormaliseID(id)
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[string]struct{})
	}
	b.subs[key][full] = struct{}{}
	b.mu.Unlock()
}

// numeric maps a state message onto a point value.
func numeric(message string) (float64, bool) {
	switch strings.ToLower(message) {
	case "true", "on":
		return 1, true
	case "false", "off":
		return 0, true
	}
	v, err := strconv.ParseFloat(message, 64)
	return v, err == nil
}

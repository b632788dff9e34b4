package unifi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/accessory"
	"github.com/nerrad567/gray-logic-access/internal/featureopt"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
)

const (
	testControllerMAC = "f4:e2:c6:aa:00:ff"
	testControllerID  = "F4E2C6AA00FF"
	testHubMAC        = "f4:e2:c6:aa:00:01"
	testHubID         = "F4E2C6AA0001"
	testReaderMAC     = "f4:e2:c6:aa:00:02"
	testReaderID      = "F4E2C6AA0002"
)

// mockLogger records log calls.
type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	Level string
	Msg   string
	Args  []any
}

func (m *mockLogger) log(level, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, logEntry{Level: level, Msg: msg, Args: args})
}

func (m *mockLogger) Debug(msg string, args ...any) { m.log("debug", msg, args) }
func (m *mockLogger) Info(msg string, args ...any)  { m.log("info", msg, args) }
func (m *mockLogger) Warn(msg string, args ...any)  { m.log("warn", msg, args) }
func (m *mockLogger) Error(msg string, args ...any) { m.log("error", msg, args) }

func (m *mockLogger) count(msg string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Msg == msg {
			n++
		}
	}
	return n
}

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu sync.Mutex

	boot        *access.Bootstrap
	loginErr    error
	bootErr     error
	unlockErr   error
	retrieveErr error
	status      int

	logins     int
	bootstraps int
	resets     int
	unlocks    []mockUnlock
	requests   []mockRequest

	handler   func(access.Packet)
	listening chan struct{}
	listenErr chan error
}

type mockUnlock struct {
	DeviceID string
	Duration access.UnlockDuration
}

type mockRequest struct {
	Endpoint string
	Opts     access.RequestOptions
}

func newMockTransport(boot *access.Bootstrap) *mockTransport {
	return &mockTransport{
		boot:      boot,
		status:    http.StatusOK,
		listening: make(chan struct{}, 8),
		listenErr: make(chan error, 1),
	}
}

func (m *mockTransport) Login(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins++
	return m.loginErr
}

func (m *mockTransport) Bootstrap(context.Context) (*access.Bootstrap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bootstraps++
	if m.bootErr != nil {
		return nil, m.bootErr
	}
	return m.boot, nil
}

// Listen blocks until ctx ends or a test drops the stream with dropStream.
func (m *mockTransport) Listen(ctx context.Context, fn func(access.Packet)) error {
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()

	select {
	case m.listening <- struct{}{}:
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-m.listenErr:
		return err
	}
}

func (m *mockTransport) dropStream(err error) {
	m.listenErr <- err
}

func (m *mockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

func (m *mockTransport) Stats() access.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return access.Stats{Logins: int64(m.logins), Requests: int64(m.bootstraps)}
}

func (m *mockTransport) Unlock(_ context.Context, dev access.Device, d access.UnlockDuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unlockErr != nil {
		return m.unlockErr
	}
	m.unlocks = append(m.unlocks, mockUnlock{DeviceID: dev.ID, Duration: d})
	return nil
}

func (m *mockTransport) Retrieve(_ context.Context, endpoint string, opts access.RequestOptions) (*access.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retrieveErr != nil {
		return nil, m.retrieveErr
	}
	m.requests = append(m.requests, mockRequest{Endpoint: endpoint, Opts: opts})
	return &access.Response{StatusCode: m.status}, nil
}

func (m *mockTransport) ResponseOK(status int) bool {
	return status >= 200 && status < 300
}

func (m *mockTransport) getUnlocks() []mockUnlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockUnlock(nil), m.unlocks...)
}

func (m *mockTransport) getRequests() []mockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockRequest(nil), m.requests...)
}

func (m *mockTransport) counts() (logins, bootstraps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logins, m.bootstraps
}

func (m *mockTransport) setBootstrap(boot *access.Bootstrap) {
	m.mu.Lock()
	m.boot = boot
	m.mu.Unlock()
}

// mockTelemetry implements Telemetry for testing.
type mockTelemetry struct {
	mu           sync.Mutex
	published    []telemetryMessage
	events       [][]byte
	getters      map[string]func() string
	setters      map[string]func(string)
	unsubscribed []string
}

type telemetryMessage struct {
	ID      string
	Topic   string
	Message string
}

func newMockTelemetry() *mockTelemetry {
	return &mockTelemetry{
		getters: make(map[string]func() string),
		setters: make(map[string]func(string)),
	}
}

func telemetryKey(id, topic string) string {
	return featureopt.ID(id) + "/" + topic
}

func (m *mockTelemetry) Publish(id, topic, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, telemetryMessage{ID: id, Topic: topic, Message: message})
}

func (m *mockTelemetry) PublishEvent(_ string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, payload)
}

func (m *mockTelemetry) SubscribeGet(id, topic, _ string, getter func() string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getters[telemetryKey(id, topic)] = getter
}

func (m *mockTelemetry) SubscribeSet(id, topic, _ string, setter func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setters[telemetryKey(id, topic)] = setter
}

func (m *mockTelemetry) Unsubscribe(id, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := telemetryKey(id, topic)
	delete(m.getters, key)
	delete(m.setters, key)
	m.unsubscribed = append(m.unsubscribed, key)
}

// messages returns every message published on topic, oldest first.
func (m *mockTelemetry) messages(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p.Message)
		}
	}
	return out
}

func (m *mockTelemetry) get(id, topic string) (string, bool) {
	m.mu.Lock()
	fn, ok := m.getters[telemetryKey(id, topic)]
	m.mu.Unlock()
	if !ok {
		return "", false
	}
	return fn(), true
}

func (m *mockTelemetry) set(id, topic, value string) bool {
	m.mu.Lock()
	fn, ok := m.setters[telemetryKey(id, topic)]
	m.mu.Unlock()
	if ok {
		fn(value)
	}
	return ok
}

func (m *mockTelemetry) hasSubscription(id, topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, get := m.getters[telemetryKey(id, topic)]
	_, set := m.setters[telemetryKey(id, topic)]
	return get || set
}

func (m *mockTelemetry) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// fixture wires a controller to mocks without starting its goroutines.
type fixture struct {
	t         *testing.T
	ctrl      *Controller
	transport *mockTransport
	host      *accessory.Host
	telemetry *mockTelemetry
	logger    *mockLogger
	clock     *clock.Mock
}

func newFixture(t *testing.T, options ...string) *fixture {
	t.Helper()

	f := &fixture{
		t:         t,
		transport: newMockTransport(&access.Bootstrap{Host: access.Host{MAC: testControllerMAC, Name: "Controller"}}),
		host:      accessory.NewHost(nil),
		telemetry: newMockTelemetry(),
		logger:    &mockLogger{},
		clock:     clock.NewMock(),
	}

	ctrl, err := NewController(ControllerOptions{
		Config:        config.ControllerConfig{Address: "controller.test", Username: "bridge", Password: "secret", Name: "test"},
		Transport:     f.transport,
		Options:       featureopt.New(featureopt.Catalog, options),
		Host:          f.host,
		Telemetry:     f.telemetry,
		Clock:         f.clock,
		Logger:        f.logger,
		RetryInterval: time.Second,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	f.ctrl = ctrl
	t.Cleanup(ctrl.Stop)
	return f
}

// sync runs one bootstrap reconciliation as the session would.
func (f *fixture) sync(devices ...access.Device) {
	f.t.Helper()

	boot := &access.Bootstrap{Host: access.Host{MAC: testControllerMAC}, Devices: devices}
	f.transport.setBootstrap(boot)

	f.ctrl.mu.Lock()
	defer f.ctrl.mu.Unlock()
	f.ctrl.adopt(boot)
	f.ctrl.configureForwarding()
	f.ctrl.reconcile(devices)
	f.ctrl.state = StateConnected
}

func (f *fixture) syncWithDoors(doors []access.Door, devices ...access.Device) {
	f.t.Helper()

	boot := &access.Bootstrap{Host: access.Host{MAC: testControllerMAC}, Devices: devices, Doors: doors}
	f.transport.setBootstrap(boot)

	f.ctrl.mu.Lock()
	defer f.ctrl.mu.Unlock()
	f.ctrl.adopt(boot)
	f.ctrl.reconcile(devices)
	f.ctrl.state = StateConnected
}

func (f *fixture) send(pkt access.Packet) {
	f.ctrl.handlePacket(pkt)
}

func (f *fixture) accessory(key string) *accessory.Accessory {
	return f.host.Lookup(f.host.UUID(key))
}

func (f *fixture) hub(key string) *hub {
	f.t.Helper()
	f.ctrl.mu.Lock()
	defer f.ctrl.mu.Unlock()
	rec, ok := f.ctrl.registry[key]
	if !ok {
		f.t.Fatalf("no record for %s", key)
	}
	h, ok := rec.(*hub)
	if !ok {
		f.t.Fatalf("record %s is %T, want *hub", key, rec)
	}
	return h
}

func (f *fixture) registered(key string) bool {
	f.ctrl.mu.Lock()
	defer f.ctrl.mu.Unlock()
	_, ok := f.ctrl.registry[key]
	return ok
}

// value reads a characteristic, failing the test if it does not exist.
func (f *fixture) value(key string, svc accessory.ServiceType, subtype string, char accessory.CharacteristicType) any {
	f.t.Helper()
	acc := f.accessory(key)
	if acc == nil {
		f.t.Fatalf("no accessory for %s", key)
	}
	s := acc.Service(svc, subtype)
	if s == nil {
		f.t.Fatalf("accessory %s has no %s/%s service", key, svc, subtype)
	}
	c := s.Lookup(char)
	if c == nil {
		f.t.Fatalf("service %s/%s has no %s", svc, subtype, char)
	}
	return c.Value()
}

func (f *fixture) hasService(key string, svc accessory.ServiceType, subtype string) bool {
	acc := f.accessory(key)
	return acc != nil && acc.Service(svc, subtype) != nil
}

func (f *fixture) write(key string, svc accessory.ServiceType, subtype string, char accessory.CharacteristicType, v any) error {
	return f.host.SetValue(f.host.UUID(key), svc, subtype, char, v)
}

// Device builders.

func cfg(key, value string) access.ConfigEntry {
	return access.ConfigEntry{Key: key, Value: value}
}

func hubDevice(model string, configs ...access.ConfigEntry) access.Device {
	return access.Device{
		ID:           "hub1",
		Name:         "Front Door",
		DeviceType:   model,
		Firmware:     "v1.2.3.4",
		MAC:          testHubMAC,
		LocationID:   "door1",
		Capabilities: []string{access.CapabilityHub},
		Configs:      configs,
		IsAdopted:    true,
		IsConnected:  true,
		IsManaged:    true,
		IsOnline:     true,
	}
}

func readerDevice(capabilities ...string) access.Device {
	return access.Device{
		ID:           "reader1",
		Name:         "Lobby Reader",
		DeviceType:   "UA-G2-PRO",
		Firmware:     "v2.0",
		MAC:          testReaderMAC,
		Capabilities: append([]string{access.CapabilityReader}, capabilities...),
		IsAdopted:    true,
		IsConnected:  true,
		IsManaged:    true,
		IsOnline:     true,
	}
}

func packet(t *testing.T, event, objectID string, data any) access.Packet {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("encoding packet data: %v", err)
	}
	return access.Packet{Event: event, ObjectID: objectID, Data: raw}
}

func deviceUpdate(t *testing.T, dev access.Device) access.Packet {
	return packet(t, access.EventDeviceUpdate, dev.ID, dev)
}

// waitFor polls cond until it holds or a second passes. Timer callbacks on
// the mock clock run in their own goroutines.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func joinMessages(msgs []string) string {
	return fmt.Sprintf("[%s]", strings.Join(msgs, " "))
}

package unifi

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
)

// DefaultHealthInterval is how often a controller's health is published.
const DefaultHealthInterval = 30 * time.Second

// HealthStatus is the overall state in a health message.
type HealthStatus string

// Health states.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained payload on <root>/<controller>/health.
type HealthMessage struct {
	Controller    string       `json:"controller"`
	Name          string       `json:"name"`
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	State         State        `json:"state"`
	Version       string       `json:"version,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Devices       int          `json:"devices"`
	Stats         access.Stats `json:"stats"`
	Timestamp     time.Time    `json:"timestamp"`
}

// HealthPublisher publishes health messages. *mqtt.Client satisfies it.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	Topics() mqtt.Topics
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	Version string

	// Interval is how often to publish. Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher

	// Source returns the controller status to report.
	Source func() Status

	Clock clock.Clock
}

// HealthReporter publishes a controller's health at regular intervals.
type HealthReporter struct {
	version   string
	interval  time.Duration
	publisher HealthPublisher
	source    func() Status
	clock     clock.Clock
	startTime time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &HealthReporter{
		version:   cfg.Version,
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		clock:     clk,
		startTime: clk.Now(),
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx ends or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" message.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best-effort during shutdown
		h.publishStatus(HealthStopping, "controller stopping")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishNow publishes the current health immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := h.clock.Ticker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.source == nil {
		return HealthHealthy, ""
	}

	if st := h.source(); st.State != StateConnected {
		return HealthDegraded, "controller " + string(st.State)
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return nil
	}

	var st Status
	if h.source != nil {
		st = h.source()
	}

	now := h.clock.Now()
	msg := HealthMessage{
		Controller:    st.MAC,
		Name:          st.Name,
		Status:        status,
		Reason:        reason,
		State:         st.State,
		Version:       h.version,
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		Devices:       st.Devices,
		Stats:         st.Stats,
		Timestamp:     now.UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(h.topic(st), payload, 1, true)
}

// topic is <root>/<controller MAC>/health, or the bridge health topic
// before the controller MAC is known.
func (h *HealthReporter) topic(st Status) string {
	topics := h.publisher.Topics()
	if st.MAC == "" {
		return topics.Health()
	}
	return topics.Device(st.MAC, "health")
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

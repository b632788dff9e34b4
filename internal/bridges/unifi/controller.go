package unifi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/featureopt"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/metrics"
)

// Controller timing defaults.
const (
	ControllerRetryInterval   = 10 * time.Second
	DisabledGraceInterval     = 5 * time.Second
	ControllerRefreshInterval = 120 * time.Second
)

// State is the session state of a controller.
type State string

// Controller states.
const (
	StateDisabled   State = "disabled"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateStopped    State = "stopped"
)

// Status is a point-in-time view of a controller for the API and health.
type Status struct {
	Name          string       `json:"name"`
	Address       string       `json:"address"`
	MAC           string       `json:"mac,omitempty"`
	State         State        `json:"state"`
	Devices       int          `json:"devices"`
	LastBootstrap time.Time    `json:"last_bootstrap,omitempty"`
	Stats         access.Stats `json:"stats"`
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// Config holds the address and credentials.
	Config config.ControllerConfig

	// Transport overrides the HTTP client built from Config.
	Transport Transport

	// Options resolves feature options. Required.
	Options featureopt.FeatureOptions

	// Host publishes accessories. Required.
	Host AccessoryHost

	// Telemetry mirrors state to MQTT. Nil disables it.
	Telemetry Telemetry

	// Health publishes retained health reports. Nil disables them.
	Health HealthPublisher

	// Version is reported in health messages.
	Version string

	Clock  clock.Clock
	Logger Logger

	// Zero values use the package defaults.
	RetryInterval   time.Duration
	RefreshInterval time.Duration
	DisabledGrace   time.Duration
	HealthInterval  time.Duration
}

// Controller manages one access controller session and the device records
// built from it.
type Controller struct {
	cfg       config.ControllerConfig
	name      string
	transport Transport
	options   featureopt.FeatureOptions
	host      AccessoryHost
	telemetry Telemetry
	clock     clock.Clock
	logger    Logger

	healthPublisher HealthPublisher
	healthInterval  time.Duration
	version         string
	health          *HealthReporter

	retryInterval   time.Duration
	refreshInterval time.Duration
	disabledGrace   time.Duration

	disabled bool
	router   *Router
	env      *deviceEnv

	// mu serialises event dispatch, reconciliation and all device logic.
	mu            sync.Mutex
	state         State
	mac           string
	boot          *access.Bootstrap
	lastBootstrap time.Time
	registry      map[string]record
	removals      map[string]time.Time
	unsupported   map[string]bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewController creates a controller. A controller without an address or
// credentials is created disabled and never connects.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Options == nil || opts.Host == nil {
		return nil, ErrMissingDependency
	}

	c := &Controller{
		cfg:             opts.Config,
		name:            opts.Config.Name,
		transport:       opts.Transport,
		options:         opts.Options,
		host:            opts.Host,
		telemetry:       opts.Telemetry,
		clock:           opts.Clock,
		logger:          opts.Logger,
		healthPublisher: opts.Health,
		healthInterval:  opts.HealthInterval,
		version:         opts.Version,
		retryInterval:   opts.RetryInterval,
		refreshInterval: opts.RefreshInterval,
		disabledGrace:   opts.DisabledGrace,
		router:          NewRouter(),
		state:           StateConnecting,
		registry:        make(map[string]record),
		removals:        make(map[string]time.Time),
		unsupported:     make(map[string]bool),
	}

	if c.name == "" {
		c.name = c.cfg.Address
	}
	if c.telemetry == nil {
		c.telemetry = noopTelemetry{}
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	if c.retryInterval <= 0 {
		c.retryInterval = ControllerRetryInterval
	}
	if c.refreshInterval <= 0 {
		c.refreshInterval = ControllerRefreshInterval
	}
	if c.disabledGrace <= 0 {
		c.disabledGrace = DisabledGraceInterval
	}

	if c.transport == nil {
		client, err := access.NewClient(access.ClientOptions{
			Address:  c.cfg.Address,
			Username: c.cfg.Username,
			Password: c.cfg.Password,
			Logger:   c.logger,
		})
		if err != nil {
			c.disabled = true
			c.state = StateDisabled
		} else {
			c.transport = client
		}
	}

	c.env = &deviceEnv{
		commander: c.transport,
		options:   c.options,
		router:    c.router,
		host:      c.host,
		telemetry: c.telemetry,
		clock:     c.clock,
		logger:    c.logger,
		mu:        &c.mu,
		doors: func() []access.Door {
			if c.boot == nil {
				return nil
			}
			return c.boot.Doors
		},
		command: func(name string, err error) {
			metrics.Commands.WithLabelValues(c.name, name, metrics.Result(err)).Inc()
		},
	}

	// The mirror listener runs before any record handler for the same packet.
	c.router.Prepend(ByType(access.EventDeviceUpdate), c.onDeviceUpdate)
	c.router.On(ByType(access.EventDeviceDelete), c.onDeviceDelete)

	return c, nil
}

// Name returns the configured controller name, or its address.
func (c *Controller) Name() string {
	return c.name
}

// MAC returns the controller MAC once known, in hardware ID form.
func (c *Controller) MAC() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mac
}

// Start begins the session in the background. Starting a disabled
// controller logs and returns nil.
func (c *Controller) Start(ctx context.Context) error {
	if c.disabled {
		c.logger.Warn("controller disabled: address, username and password are required", "controller", c.name)
		return nil
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateConnecting
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// Stop ends the session and releases every record's subscriptions and
// timers. Accessories stay registered. Safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		c.wg.Wait()

		if c.health != nil {
			c.health.Stop()
		}

		c.mu.Lock()
		for key, rec := range c.registry {
			rec.cleanup()
			delete(c.registry, key)
		}
		c.state = StateStopped
		c.mu.Unlock()

		c.logger.Info("controller stopped", "controller", c.name)
	})
}

// Status reports the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		Name:          c.name,
		Address:       c.cfg.Address,
		MAC:           c.mac,
		State:         c.state,
		Devices:       len(c.registry),
		LastBootstrap: c.lastBootstrap,
	}
	c.mu.Unlock()

	if c.transport != nil {
		st.Stats = c.transport.Stats()
	}
	return st
}

// ResetConnection drops the session and statistics and fetches a fresh
// bootstrap with a new login. It returns ErrNotRunning before Start and
// after Stop.
func (c *Controller) ResetConnection(ctx context.Context) error {
	if c.disabled {
		return ErrNotConfigured
	}

	c.mu.Lock()
	running := c.cancel != nil && c.state != StateStopped
	c.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	c.transport.Reset()
	c.logger.Info("controller session reset", "controller", c.name)

	boot, err := c.transport.Bootstrap(ctx)
	metrics.Bootstraps.WithLabelValues(c.name, metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("refreshing %s after reset: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.adopt(boot)
	if c.state == StateConnected {
		c.reconcile(boot.Devices)
	}
	return nil
}

func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()

	if !c.login(ctx) {
		return
	}
	boot, ok := c.fetchBootstrap(ctx)
	if !ok {
		return
	}

	c.mu.Lock()
	c.adopt(boot)
	enabled := c.options.HasFeature(featureopt.Device, c.mac, "")
	c.mu.Unlock()

	if !enabled {
		c.disable(ctx)
		return
	}

	c.mu.Lock()
	c.configureForwarding()
	c.reconcile(boot.Devices)
	c.state = StateConnected
	devices := len(c.registry)
	c.mu.Unlock()

	c.logger.Info("controller connected",
		"controller", c.name,
		"mac", c.mac,
		"firmware", boot.Host.Firmware,
		"devices", devices,
	)

	if c.healthPublisher != nil {
		health := NewHealthReporter(HealthReporterConfig{
			Version:   c.version,
			Interval:  c.healthInterval,
			Publisher: c.healthPublisher,
			Source:    c.Status,
			Clock:     c.clock,
		})
		health.SetLogger(c.logger)

		c.mu.Lock()
		c.health = health
		c.mu.Unlock()
		health.Start(ctx)
	}

	c.wg.Add(2)
	go c.listenLoop(ctx)
	go c.refreshLoop(ctx)
}

// login retries until the controller accepts the credentials or ctx ends.
func (c *Controller) login(ctx context.Context) bool {
	for {
		err := c.transport.Login(ctx)
		metrics.Logins.WithLabelValues(c.name, metrics.Result(err)).Inc()
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		c.logger.Warn("controller login failed, retrying",
			"controller", c.name,
			"error", err,
			"retry", c.retryInterval,
		)
		if !c.sleep(ctx, c.retryInterval) {
			return false
		}
	}
}

// fetchBootstrap retries until a bootstrap arrives or ctx ends.
func (c *Controller) fetchBootstrap(ctx context.Context) (*access.Bootstrap, bool) {
	for {
		boot, err := c.transport.Bootstrap(ctx)
		metrics.Bootstraps.WithLabelValues(c.name, metrics.Result(err)).Inc()
		if err == nil {
			return boot, true
		}
		if ctx.Err() != nil {
			return nil, false
		}

		c.logger.Warn("controller bootstrap failed, retrying",
			"controller", c.name,
			"error", err,
			"retry", c.retryInterval,
		)
		if !c.sleep(ctx, c.retryInterval) {
			return nil, false
		}
	}
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	t := c.clock.Timer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// disable withdraws everything this controller published after a grace
// period. Used when the Device option turns the controller off.
func (c *Controller) disable(ctx context.Context) {
	c.mu.Lock()
	c.state = StateDisabled
	c.mu.Unlock()

	c.logger.Info("controller disabled by feature option, removing its accessories",
		"controller", c.name,
		"grace", c.disabledGrace,
	)
	if !c.sleep(ctx, c.disabledGrace) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.unregisterAll()
}

// listenLoop reads the event stream, reconnecting and refreshing after
// every drop.
func (c *Controller) listenLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		err := c.transport.Listen(ctx, c.handlePacket)
		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("event stream lost, reconnecting",
			"controller", c.name,
			"error", err,
			"retry", c.retryInterval,
		)
		if !c.sleep(ctx, c.retryInterval) {
			return
		}
		c.refresh(ctx)
	}
}

func (c *Controller) refreshLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := c.clock.Ticker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

// refresh fetches a new bootstrap and reconciles the inventory against it.
func (c *Controller) refresh(ctx context.Context) {
	boot, ok := c.fetchBootstrap(ctx)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.adopt(boot)
	c.reconcile(boot.Devices)
}

// adopt records a bootstrap. Called with mu held.
func (c *Controller) adopt(boot *access.Bootstrap) {
	c.boot = boot
	c.lastBootstrap = c.clock.Now()

	if mac := featureopt.ID(boot.Host.MAC); mac != "" {
		c.mac = mac
		c.env.controllerID = mac
	}
}

// configureForwarding sends every packet to MQTT when
// Controller.Publish.Telemetry is on. Called with mu held.
func (c *Controller) configureForwarding() {
	if !c.options.HasFeature(featureopt.ControllerPublishTelemetry, "", c.mac) {
		c.router.SetForwarder(nil)
		return
	}

	c.router.SetForwarder(func(pkt access.Packet) {
		payload, err := json.Marshal(pkt)
		if err != nil {
			c.logger.Debug("failed to encode packet for telemetry", "error", err)
			return
		}
		c.telemetry.PublishEvent(c.mac, payload)
	})
}

// handlePacket routes one event stream packet.
func (c *Controller) handlePacket(pkt access.Packet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return
	}

	metrics.Events.WithLabelValues(c.name, pkt.Event).Inc()
	if pkt.Event == access.EventBootstrap {
		c.onBootstrapEvent(pkt)
	}
	c.routeID(&pkt)
	c.router.Dispatch(pkt)
}

// onBootstrapEvent reconciles against an inventory pushed on the stream.
// Called with mu held.
func (c *Controller) onBootstrapEvent(pkt access.Packet) {
	var boot access.Bootstrap
	if err := json.Unmarshal(pkt.Data, &boot); err != nil {
		c.logger.Debug("ignoring malformed bootstrap event", "error", err)
		return
	}
	c.adopt(&boot)
	c.reconcile(boot.Devices)
}

// routeID points packets whose object id is not the device at the device
// they concern.
func (c *Controller) routeID(pkt *access.Packet) {
	switch pkt.Event {
	case access.EventRemoteView:
		var view access.RemoteView
		if err := json.Unmarshal(pkt.Data, &view); err == nil && view.DeviceID != "" {
			pkt.ObjectID = view.DeviceID
		}

	case access.EventLogsAdd:
		var entry access.LogEntry
		if err := json.Unmarshal(pkt.Data, &entry); err != nil {
			return
		}
		for _, id := range entry.TargetIDs() {
			if c.byID(id) != nil {
				pkt.ObjectID = id
				return
			}
		}
	}
}

// onDeviceUpdate refreshes the mirror before the record's own handlers run.
func (c *Controller) onDeviceUpdate(pkt access.Packet) {
	rec := c.byID(pkt.ObjectID)
	if rec == nil {
		return
	}

	dev, err := pkt.Device()
	if err != nil {
		c.logger.Debug("ignoring malformed device update", "device", pkt.ObjectID, "error", err)
		return
	}

	b := rec.base()
	b.setMirror(dev)
	b.updateStatus()
}

func (c *Controller) onDeviceDelete(pkt access.Packet) {
	rec := c.byID(pkt.ObjectID)
	if rec == nil {
		return
	}

	c.logger.Info("device deleted on controller", "controller", c.name, "device", rec.base().name())
	c.removeDevice(rec)
	c.updateDeviceCount()
}

// byID finds a record by controller device id. Called with mu held.
func (c *Controller) byID(id string) record {
	if id == "" {
		return nil
	}
	for _, rec := range c.registry {
		if rec.base().dev.ID == id {
			return rec
		}
	}
	return nil
}

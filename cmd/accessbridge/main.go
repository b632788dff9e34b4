// accessbridge publishes the hubs and readers of UniFi Access controllers as
// home-automation accessories and mirrors their state to MQTT.
//
// Each configured controller gets its own session: it logs in, loads the
// device bootstrap, follows the notification stream and keeps one accessory
// per hub or reader in sync. Accessories survive restarts through a SQLite
// cache, and a local HTTP API exposes them with a WebSocket change feed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-access/migrations"

	"github.com/nerrad567/gray-logic-access/internal/accessory"
	"github.com/nerrad567/gray-logic-access/internal/api"
	"github.com/nerrad567/gray-logic-access/internal/bridges/unifi"
	"github.com/nerrad567/gray-logic-access/internal/featureopt"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-access/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence
	log := logging.Default()
	log.Info("starting accessbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(config.LoggingConfig{
		Level:  cfg.EffectiveLogLevel(),
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}, version)
	log.Info("configuration loaded", "path", configPath, "controllers", len(cfg.Controllers))

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	host := accessory.NewHost(accessory.NewSQLiteCache(db.DB))
	host.SetLogger(log)
	if _, restoreErr := host.Restore(ctx); restoreErr != nil {
		return fmt.Errorf("restoring accessories: %w", restoreErr)
	}

	options := featureopt.New(featureopt.Catalog, cfg.Options)
	for _, o := range options.Unknown() {
		log.Warn("unknown feature option", "option", o)
	}
	for _, o := range options.Invalid() {
		log.Warn("invalid feature option", "option", o)
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	brokers := newBrokerSet(cfg, log)
	defer brokers.closeAll()

	controllers := make([]*unifi.Controller, 0, len(cfg.Controllers))
	for _, ctrlCfg := range cfg.Controllers {
		ctrl, buildErr := buildController(cfg, ctrlCfg, host, options, brokers, influxClient, log)
		if buildErr != nil {
			return buildErr
		}
		controllers = append(controllers, ctrl)
	}

	for _, ctrl := range controllers {
		if startErr := ctrl.Start(ctx); startErr != nil {
			return fmt.Errorf("starting controller %s: %w", ctrl.Name(), startErr)
		}
	}
	defer func() {
		for _, ctrl := range controllers {
			ctrl.Stop()
		}
	}()

	if cfg.API.Enabled {
		apiControllers := make([]api.Controller, 0, len(controllers))
		for _, ctrl := range controllers {
			apiControllers = append(apiControllers, ctrl)
		}
		deps := api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log,
			Host:        host,
			Controllers: apiControllers,
			Version:     version,
		}
		if primary := brokers.primary(); primary != nil {
			deps.MQTT = primary
		}

		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, brokers, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

func getConfigPath() string {
	if path := os.Getenv("ACCESSBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildController wires one controller session to the shared accessory
// host and to the MQTT broker its telemetry goes to.
func buildController(
	cfg *config.Config,
	ctrlCfg config.ControllerConfig,
	host *accessory.Host,
	options *featureopt.Resolver,
	brokers *brokerSet,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*unifi.Controller, error) {
	name := ctrlCfg.Name
	if name == "" {
		name = ctrlCfg.Address
	}
	ctrlLog := log.With("controller", name)

	opts := unifi.ControllerOptions{
		Config:  ctrlCfg,
		Options: options,
		Host:    host,
		Version: version,
		Logger:  ctrlLog,
	}

	client, err := brokers.forController(ctrlCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting MQTT for controller %s: %w", name, err)
	}
	if client != nil {
		telOpts := telemetry.Options{Logger: ctrlLog}
		if influxClient != nil {
			telOpts.Points = influxClient
		}
		opts.Telemetry = telemetry.New(client, telOpts)
		opts.Health = client
		log.Info("controller telemetry enabled",
			"controller", name,
			"broker", client.Broker(),
			"topic", cfg.TopicFor(ctrlCfg),
		)
	}

	ctrl, err := unifi.NewController(opts)
	if err != nil {
		return nil, fmt.Errorf("creating controller %s: %w", name, err)
	}
	return ctrl, nil
}

// brokerSet connects each distinct broker and topic root once.
type brokerSet struct {
	cfg     *config.Config
	log     *logging.Logger
	clients map[string]*mqtt.Client
	order   []*mqtt.Client
}

func newBrokerSet(cfg *config.Config, log *logging.Logger) *brokerSet {
	return &brokerSet{cfg: cfg, log: log, clients: make(map[string]*mqtt.Client)}
}

// forController returns the client for the controller's broker, or nil when
// telemetry is off for it.
func (b *brokerSet) forController(ctrlCfg config.ControllerConfig) (*mqtt.Client, error) {
	mcfg := b.cfg.MQTT
	if ctrlCfg.MQTTURL != "" {
		var err error
		if mcfg, err = b.cfg.MQTT.ForURL(ctrlCfg.MQTTURL); err != nil {
			return nil, err
		}
	}
	if !mcfg.Enabled {
		return nil, nil
	}
	mcfg.Topic = b.cfg.TopicFor(ctrlCfg)

	key := fmt.Sprintf("%s:%d/%s", mcfg.Broker.Host, mcfg.Broker.Port, mcfg.Topic)
	if c, ok := b.clients[key]; ok {
		return c, nil
	}

	client, err := mqtt.Connect(mcfg)
	if err != nil {
		return nil, err
	}
	client.SetLogger(b.log)
	broker := client.Broker()
	client.SetOnConnect(func() {
		b.log.Info("MQTT reconnected", "broker", broker)
	})
	client.SetOnDisconnect(func(err error) {
		b.log.Warn("MQTT disconnected", "broker", broker, "error", err)
	})
	b.log.Info("MQTT connected", "broker", broker, "client_id", mcfg.Broker.ClientID, "topic", mcfg.Topic)

	b.clients[key] = client
	b.order = append(b.order, client)
	return client, nil
}

// primary returns the first connected broker, used for API health.
func (b *brokerSet) primary() *mqtt.Client {
	if len(b.order) == 0 {
		return nil
	}
	return b.order[0]
}

func (b *brokerSet) closeAll() {
	for _, c := range b.order {
		b.log.Info("disconnecting from MQTT", "broker", c.Broker())
		if err := c.Close(); err != nil {
			b.log.Error("error closing MQTT", "error", err)
		}
	}
}

func healthCheck(ctx context.Context, db *database.DB, brokers *brokerSet, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	for _, c := range brokers.order {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt %s: %w", c.Broker(), err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

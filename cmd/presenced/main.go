// Gray Logic Presence - Composite Presence Tracking Service
//
// This is the main entry point for the presence service. It fuses multiple
// device trackers (GPS apps, router presence, bluetooth beacons, bed
// sensors) per person into one composite tracker with a derived speed
// sensor, publishing fused state over MQTT and a read-only HTTP/WebSocket
// API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-presence/migrations"

	"github.com/nerrad567/gray-logic-presence/internal/api"
	"github.com/nerrad567/gray-logic-presence/internal/dispatch"
	"github.com/nerrad567/gray-logic-presence/internal/geo"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-presence/internal/publish"
	"github.com/nerrad567/gray-logic-presence/internal/scheduler"
	"github.com/nerrad567/gray-logic-presence/internal/statebus"
	"github.com/nerrad567/gray-logic-presence/internal/tracker"
	"github.com/nerrad567/gray-logic-presence/internal/zone"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
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

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Presence",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Sync zones: the home zone is seeded from the site location, the
	// configured zones are upserted by slug, and the in-memory registry
	// is loaded from the resulting table.
	zoneRepo := zone.NewSQLiteRepository(db.DB)
	registry, err := syncZones(ctx, cfg, zoneRepo)
	if err != nil {
		return fmt.Errorf("syncing zones: %w", err)
	}
	log.Info("zones loaded", "count", len(registry.All()))

	// Coordinate-to-timezone resolution for device time-as modes.
	timezones, err := geo.NewTimezoneFinder()
	if err != nil {
		log.Warn("timezone dataset unavailable, device times fall back to UTC", "error", err)
		timezones = geo.FixedTimezoneFinder{}
	}

	// State bus: one wildcard subscription feeding all groups.
	bus, err := statebus.New(mqttClient, byte(cfg.MQTT.QoS), log)
	if err != nil {
		return fmt.Errorf("starting state bus: %w", err)
	}
	defer func() {
		log.Info("closing state bus")
		if closeErr := bus.Close(); closeErr != nil {
			log.Error("error closing state bus", "error", closeErr)
		}
	}()

	// Scheduler loop serialises zone lookups, sighting callbacks, and
	// dispatch delivery.
	loop := scheduler.NewLoop()
	defer func() {
		log.Info("stopping scheduler loop")
		loop.Close()
	}()
	dispatcher := dispatch.NewDispatcher(loop)

	// The WebSocket hub is created before the tracker pipelines so the
	// publisher can broadcast from the first bootstrap sighting onwards.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	snapshots := tracker.NewSQLiteSnapshotRepository(db.DB)
	pubOpts := publish.Options{
		Broker:    mqttClient,
		Hub:       hub,
		Snapshots: snapshots,
		Logger:    log,
	}
	if influxClient != nil {
		pubOpts.History = influxClient
	}
	publisher := publish.New(pubOpts)

	// Wire one tracker pipeline per configured group.
	apiGroups := make([]api.Group, 0, len(cfg.Trackers.Groups))
	for _, gcfg := range cfg.Trackers.Groups {
		groupLog := log.With("group", gcfg.ID)

		tr := tracker.NewCompositeTracker(gcfg, publisher, dispatcher, groupLog)
		if snap, getErr := snapshots.Get(ctx, gcfg.ID); getErr == nil {
			tr.Restore(*snap)
			groupLog.Info("restored previous state", "state", snap.State)
		}

		sensor := tracker.NewSpeedSensor(gcfg.ID, dispatcher, publisher, groupLog)
		defer sensor.Close()

		scanner, scanErr := tracker.NewScanner(gcfg, bus, registry, loop, timezones, groupLog, tr.HandleSighting)
		if scanErr != nil {
			return fmt.Errorf("creating scanner for group %s: %w", gcfg.ID, scanErr)
		}
		defer func() {
			groupLog.Info("stopping scanner")
			scanner.Close()
		}()

		sensor.Start()
		if startErr := scanner.Start(); startErr != nil {
			return fmt.Errorf("starting scanner for group %s: %w", gcfg.ID, startErr)
		}
		groupLog.Info("tracker group started", "members", len(gcfg.Members))

		apiGroups = append(apiGroups, api.Group{
			Config:  gcfg,
			Scanner: scanner,
			Tracker: tr,
		})
	}

	// API server last: it reads everything the pipelines expose.
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Groups:      apiGroups,
		Zones:       registry,
		MQTT:        mqttClient,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Scanners and speed sensors (per group)
	// 3. Scheduler loop
	// 4. State bus
	// 5. InfluxDB (if enabled)
	// 6. MQTT
	// 7. Database

	log.Info("Gray Logic Presence stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PRESENCE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PRESENCE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// syncZones seeds the home zone from the site location, upserts every
// configured zone by slug, and loads the registry from the table. Zones
// created by earlier runs but no longer configured are kept: removal is
// an operator action through the database.
//
// Parameters:
//   - ctx: Context for the database writes
//   - cfg: Application configuration
//   - repo: Zone repository
//
// Returns:
//   - *zone.Registry: Registry loaded with the synced zones
//   - error: If any upsert or the final load fails
func syncZones(ctx context.Context, cfg *config.Config, repo *zone.SQLiteRepository) (*zone.Registry, error) {
	home := zone.Zone{
		Name:      "Home",
		Slug:      zone.HomeSlug,
		Latitude:  cfg.Site.Location.Latitude,
		Longitude: cfg.Site.Location.Longitude,
		Radius:    zone.DefaultHomeRadiusM,
	}
	if err := repo.Upsert(ctx, &home); err != nil {
		return nil, fmt.Errorf("seeding home zone: %w", err)
	}

	for _, zc := range cfg.Zones {
		z := zone.Zone{
			Name:      zc.Name,
			Slug:      config.GenerateSlug(zc.Name),
			Latitude:  zc.Latitude,
			Longitude: zc.Longitude,
			Radius:    zc.Radius,
		}
		if err := repo.Upsert(ctx, &z); err != nil {
			return nil, fmt.Errorf("upserting zone %q: %w", zc.Name, err)
		}
	}

	zones, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading zones: %w", err)
	}
	return zone.NewRegistry(zones), nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// eBUS Bridge - MQTT gateway for eBUS heating installations
//
// This is the main entry point for the eBUS bridge. The bridge connects a
// field-bus message catalog to an MQTT broker:
//   - Publishes bus value updates on templated topics
//   - Answers get/set/list commands received over MQTT
//   - Publishes integration definitions (e.g. Home Assistant discovery)
//   - Optionally records publications to SQLite and values to InfluxDB
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/graybus/ebus-bridge/internal/bridge"
	"github.com/graybus/ebus-bridge/internal/bus"
	"github.com/graybus/ebus-bridge/internal/history"
	"github.com/graybus/ebus-bridge/internal/infrastructure/config"
	"github.com/graybus/ebus-bridge/internal/infrastructure/influxdb"
	"github.com/graybus/ebus-bridge/internal/infrastructure/logging"
	"github.com/graybus/ebus-bridge/internal/infrastructure/mqtt"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Optional .env file for local development (credentials, overrides)
	_ = godotenv.Load()

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting eBUS bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Load the message catalog and set up the bus transport
	messages, seeds, err := bus.LoadDefinitions(cfg.Bus.DefinitionsFile)
	if err != nil {
		return fmt.Errorf("loading message definitions: %w", err)
	}
	catalog := bus.NewCatalog(bus.NewSimulator(seeds))
	for _, msg := range messages {
		catalog.Add(msg)
	}
	log.Info("message catalog loaded",
		"path", cfg.Bus.DefinitionsFile,
		"messages", catalog.Size(),
	)

	// Create the MQTT client
	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = "ebus-bridge-" + uuid.NewString()[:8]
	}
	mqttClient, err := mqtt.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	// Create the bridge
	b, err := bridge.New(mqttClient, catalog, bridge.Options{
		Topic:               cfg.MQTT.Topic,
		IntegrationFile:     cfg.MQTT.IntegrationFile,
		Version:             version,
		JSON:                cfg.MQTT.JSON,
		Verbose:             cfg.MQTT.Verbose,
		RetainAll:           cfg.MQTT.RetainAll,
		OnlyChanges:         cfg.MQTT.OnlyChanges,
		IgnoreInvalidParams: cfg.MQTT.IgnoreInvalidParams,
		AccessLevel:         cfg.Bus.AccessLevel,
	}, log)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	// Open the publication history store (optional)
	if cfg.History.Enabled {
		store, openErr := history.Open(history.Config{
			Path:        cfg.History.Path,
			WALMode:     cfg.History.WALMode,
			BusyTimeout: cfg.History.BusyTimeout,
		})
		if openErr != nil {
			return fmt.Errorf("opening history store: %w", openErr)
		}
		defer func() {
			log.Info("closing history store")
			if closeErr := store.Close(); closeErr != nil {
				log.Error("error closing history store", "error", closeErr)
			}
		}()
		b.SetHistory(store)
		log.Info("history store opened", "path", cfg.History.Path)
	} else {
		log.Info("history store disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		b.SetTelemetry(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	log.Info("initialisation complete, starting bridge loop",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic", cfg.MQTT.Topic,
	)

	// Run the bridge loop until the shutdown signal arrives
	if err := b.Run(ctx); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}

	log.Info("eBUS bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses EBUSBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("EBUSBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

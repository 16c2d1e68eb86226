// Application access service.
//
// This is the main entry point for the appaccess server. It serves the
// REST API under /api/v1 that manages users, applications and the
// permission grants linking them, and publishes every access change to
// WebSocket subscribers and, when enabled, to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/nerrad567/appaccess/migrations"

	"github.com/nerrad567/appaccess/internal/api"
	"github.com/nerrad567/appaccess/internal/audit"
	"github.com/nerrad567/appaccess/internal/auth"
	"github.com/nerrad567/appaccess/internal/directory"
	"github.com/nerrad567/appaccess/internal/events"
	"github.com/nerrad567/appaccess/internal/infrastructure/config"
	"github.com/nerrad567/appaccess/internal/infrastructure/database"
	"github.com/nerrad567/appaccess/internal/infrastructure/influxdb"
	"github.com/nerrad567/appaccess/internal/infrastructure/logging"
	"github.com/nerrad567/appaccess/internal/infrastructure/mqtt"
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
	log := logging.Default()
	log.Info("starting appaccess",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if err := loadDotEnv(); err != nil {
		return err
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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

	users := auth.NewUserRepository(db.DB)
	authSvc, err := auth.NewService(users, auth.NewTokenRepository(db.DB),
		auth.NewTokenIssuer(cfg.Security.JWT.Secret, cfg.Security.JWT.AccessTTL()),
		auth.WithRefreshTTL(cfg.Security.JWT.RefreshTTL()),
	)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}
	if _, seedErr := auth.SeedAdmin(ctx, authSvc, cfg.Seed.AdminEmail, cfg.Seed.AdminName, log.Component("seed").Logger); seedErr != nil {
		return fmt.Errorf("seeding admin: %w", seedErr)
	}

	fanout := events.NewFanout(func(sink int, ev events.Event, err error) {
		log.Warn("publishing access event failed", "sink", sink, "type", ev.Type, "error", err)
	})
	health := map[string]api.HealthChecker{"database": db}

	// MQTT is optional; the API works without it.
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		fanout.Add(mqttClient)
		health["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
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
		fanout.Add(influxClient)
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log.Component("api"),
		Auth:         authSvc,
		Users:        users,
		Applications: directory.NewApplicationRepository(db.DB),
		Permissions:  directory.NewPermissionRepository(db.DB),
		Audit:        audit.NewSQLiteRepository(db.DB),
		Events:       fanout,
		Influx:       influxClient,
		Health:       health,
		Registry:     prometheus.NewRegistry(),
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server, InfluxDB,
	// MQTT, database.
	return nil
}

// loadDotEnv reads a .env file from the working directory if one exists,
// so APPACCESS_* overrides can be kept out of config.yaml.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses APPACCESS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("APPACCESS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every infrastructure connection is healthy.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

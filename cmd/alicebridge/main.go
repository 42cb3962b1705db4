// alicebridge connects MQTT devices to the Yandex Alice smart home platform.
//
// It serves the skill endpoints Alice calls (account linking, device list,
// query and action), keeps a cache of the device topics it sees on the
// broker and pushes state changes back to the platform callback API.
//
// Usage:
//
//	alicebridge                      run the service
//	alicebridge hash-password <pw>   print an argon2id hash for users.json
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/alice-bridge/migrations"

	"github.com/nerrad567/alice-bridge/internal/api"
	"github.com/nerrad567/alice-bridge/internal/auth"
	"github.com/nerrad567/alice-bridge/internal/bridge"
	"github.com/nerrad567/alice-bridge/internal/catalog"
	"github.com/nerrad567/alice-bridge/internal/convert"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/config"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/database"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/kvstore"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/alice-bridge/internal/notify"
	"github.com/nerrad567/alice-bridge/internal/reconcile"
	"github.com/nerrad567/alice-bridge/internal/schedule"
	"github.com/nerrad567/alice-bridge/internal/topic"
	"github.com/nerrad567/alice-bridge/internal/topiccache"
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
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdout, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// hashPassword writes the argon2id hash of the single password argument.
func hashPassword(w io.Writer, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New("usage: alicebridge hash-password <password>")
	}
	hash, err := auth.HashPassword(args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: If any component fails to start, nil on clean shutdown
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting alicebridge",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	topics := cat.Topics()
	if cfg.MQTT.SubscribeTopic != "" {
		topics.SubscribeTopic = cfg.MQTT.SubscribeTopic
	}
	resolver, err := topic.NewResolver(topics, cat)
	if err != nil {
		return fmt.Errorf("building topic resolver: %w", err)
	}
	log.Info("catalog loaded",
		"devices", len(cat.Devices()),
		"subscribe_topic", resolver.SubscribeTopic(),
	)

	// The database only backs the sqlite store.
	var db *database.DB
	if cfg.Store.Backend == "sqlite" {
		db, err = openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	store, err := kvstore.Open(ctx, cfg.Store, db)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()
	log.Info("store opened", "backend", cfg.Store.Backend)

	go kvstore.RunPurge(ctx, store, cfg.StorePurgeInterval(), func(removed int64, err error) {
		if err != nil {
			log.Warn("purging expired store fields failed", "error", err)
			return
		}
		if removed > 0 {
			log.Debug("purged expired store fields", "removed", removed)
		}
	})

	scheduler := schedule.Real{}
	cache := topiccache.New(store, resolver, topiccache.Lifetimes{
		Available: seconds(cfg.Topics.AvailableLifetime),
		Command:   seconds(cfg.Topics.CommandLifetime),
		State:     seconds(cfg.Topics.StateLifetime),
	}, scheduler)
	cache.SetLogger(log)

	converter := convert.New()
	reconciler := reconcile.New(resolver, cache, converter, reconcile.Options{
		StateFallback: cfg.Topics.StateFallback,
		FilterModes:   cfg.Topics.FilterModes,
	})

	authService := auth.NewService(auth.Config{
		Secret:    cfg.Security.JWT.Secret,
		CodeTTL:   minutes(cfg.Security.JWT.CodeTTL),
		TokenTTL:  minutes(cfg.Security.JWT.AccessTokenTTL),
		DialogURI: cfg.Skill.DialogURI,
		Client: auth.Client{
			AppID:        cfg.Skill.AppID,
			ClientID:     cfg.Skill.ClientID,
			ClientSecret: cfg.Skill.ClientSecret,
		},
	}, cat)

	influxClient, err := connectInflux(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	hub := api.NewHub(cfg.WebSocket, log)

	anonymous := notify.NewAnonymousRegistry(cfg.AnonymousTTL())
	aggOpts := []notify.AggregatorOption{
		notify.WithScheduler(scheduler),
		notify.WithWindow(cfg.DebounceWindow()),
		notify.WithBroadcaster(hub),
		notify.WithLogger(log),
	}
	if influxClient != nil {
		aggOpts = append(aggOpts, notify.WithRecorder(influxClient))
	}
	skill := notify.NewSkillClient(cfg.Skill.CallbackBaseURL, cfg.Skill.ID, cfg.Skill.Token, cfg.SkillTimeout())
	aggregator := notify.NewAggregator(skill, notify.NewSnapshotLog(store), anonymous, aggOpts...)

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

	notifyEnabled := skill.Configured()
	if !notifyEnabled {
		log.Warn("skill id or token missing, state notifications disabled")
	}

	b := bridge.New(bridge.Deps{
		Catalog:       cat,
		Resolver:      resolver,
		Cache:         cache,
		Reconciler:    reconciler,
		Converter:     converter,
		Aggregator:    aggregator,
		Anonymous:     anonymous,
		Relevance:     notify.Relevance{StateKeys: true},
		Publisher:     mqttClient,
		Notify:        notifyEnabled,
		QoS:           byte(cfg.MQTT.QoS),
		FollowUpDelay: cfg.FollowUpDelay(),
		Scheduler:     scheduler,
		Logger:        log,
	})

	if subErr := mqttClient.Subscribe(b.SubscribeTopic(), byte(cfg.MQTT.QoS), b.HandleMessage); subErr != nil {
		return fmt.Errorf("subscribing to %s: %w", b.SubscribeTopic(), subErr)
	}

	server, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Auth:    authService,
		Devices: b,
		Hub:     hub,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	aggregator.Stop()
	cache.Stop()

	log.Info("alicebridge stopped")
	return nil
}

// openDatabase opens SQLite and applies migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// connectInflux returns nil when telemetry is disabled.
func connectInflux(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// getConfigPath returns the configuration file path.
// Uses ALICEBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ALICEBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (nil unless the sqlite store is used)
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (nil if disabled)
//
// Returns:
//   - error: The first failing component, wrapped with its name
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

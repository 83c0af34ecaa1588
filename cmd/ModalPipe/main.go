package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BTreeMap/ModalPipe/internal/api"
	"github.com/BTreeMap/ModalPipe/internal/gate"
	"github.com/BTreeMap/ModalPipe/internal/page"
	"github.com/BTreeMap/ModalPipe/internal/registry"
	"github.com/BTreeMap/ModalPipe/internal/scheduler"
	"github.com/BTreeMap/ModalPipe/internal/store"
	"github.com/BTreeMap/ModalPipe/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ModalPipe state data
	DefaultStateDir = "/var/lib/modalpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "modalpipe.db"
	// DefaultViewportWidth is the simulated viewport width when the host
	// adapter does not report one
	DefaultViewportWidth = 1280
)

func main() {
	logLevel := initializeLogger()

	config := loadEnvironmentConfig()

	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	frequencyStore, err := buildFrequencyStore(flags)
	if err != nil {
		slog.Error("Failed to build frequency store", "error", err)
		os.Exit(1)
	}
	defer frequencyStore.Close()

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.ScheduleSweep(frequencyStore); err != nil {
		slog.Error("Failed to schedule frequency sweep", "error", err)
		os.Exit(1)
	}

	markup, err := loadModalMarkup(*flags.modalsFile)
	if err != nil {
		slog.Error("Failed to load modal definitions", "error", err, "file", *flags.modalsFile)
		os.Exit(1)
	}

	host := page.NewHeadlessHost(*flags.viewportWidth, markup)
	bus := page.NewBus()
	policy := gate.NewPolicy(frequencyStore)
	reg := registry.New(host, bus, frequencyStore, policy)
	defer reg.Teardown()

	registered := reg.Discover()
	slog.Info("Bootstrapping ModalPipe", "modals_registered", registered, "db_driver", *flags.dbDriver, "api_addr", *flags.apiAddr)

	if err := api.Run(reg, bus, host, api.WithAddr(*flags.apiAddr), api.WithLogLevel(logLevel)); err != nil {
		slog.Error("ModalPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ModalPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DBDriver      string
	DBDSN         string
	RedisAddr     string
	RedisPassword string
	StateDir      string
	APIAddr       string
	ModalsFile    string
	ViewportWidth int
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDriver      *string
	dbDSN         *string
	redisAddr     *string
	redisPassword *string
	apiAddr       *string
	modalsFile    *string
	viewportWidth *int
}

// initializeLogger sets up structured logging. The returned level var is
// shared with the API server so the debug query parameter can flip it.
func initializeLogger() *slog.LevelVar {
	level := new(slog.LevelVar)
	if util.ParseBoolEnv("MODALPIPE_DEBUG", false) {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return level
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DBDriver:      os.Getenv("MODALPIPE_DB_DRIVER"),
		DBDSN:         os.Getenv("MODALPIPE_DB_DSN"),
		RedisAddr:     os.Getenv("MODALPIPE_REDIS_ADDR"),
		RedisPassword: os.Getenv("MODALPIPE_REDIS_PASSWORD"),
		StateDir:      os.Getenv("MODALPIPE_STATE_DIR"),
		APIAddr:       os.Getenv("API_ADDR"),
		ModalsFile:    os.Getenv("MODALPIPE_MODALS_FILE"),
		ViewportWidth: util.ParseIntEnv("MODALPIPE_VIEWPORT_WIDTH", DefaultViewportWidth),
	}

	if config.DBDSN == "" {
		config.DBDSN = os.Getenv("DATABASE_URL")
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No MODALPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DBDriver == "" {
		config.DBDriver = "sqlite3"
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}
	return config
}

// parseCommandLineFlags parses command line flags with environment config as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "Directory for ModalPipe state data"),
		dbDriver:      flag.String("db-driver", config.DBDriver, "Durable store driver: sqlite3, postgres, or redis"),
		dbDSN:         flag.String("db-dsn", config.DBDSN, "Database DSN (file path for sqlite3, URL for postgres)"),
		redisAddr:     flag.String("redis-addr", config.RedisAddr, "Redis address for the redis driver"),
		redisPassword: flag.String("redis-password", config.RedisPassword, "Redis password for the redis driver"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API listen address"),
		modalsFile:    flag.String("modals-file", config.ModalsFile, "JSON file with modal markup attribute maps"),
		viewportWidth: flag.Int("viewport-width", config.ViewportWidth, "Simulated host viewport width in pixels"),
	}
	flag.Parse()
	return flags
}

// ensureDirectoriesExist creates the state directory when the SQLite driver
// will write into it.
func ensureDirectoriesExist(flags Flags) error {
	if *flags.dbDriver != "sqlite3" {
		return nil
	}
	return os.MkdirAll(*flags.stateDir, store.DefaultDirPermissions)
}

// buildFrequencyStore assembles the scoped store: in-memory session
// partition plus the configured durable partition.
func buildFrequencyStore(flags Flags) (store.FrequencyStore, error) {
	session := store.NewInMemoryStore()

	var durable store.FrequencyStore
	var err error
	switch *flags.dbDriver {
	case "postgres":
		durable, err = store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	case "redis":
		durable = store.NewRedisStore(
			store.WithRedisAddr(*flags.redisAddr),
			store.WithRedisPassword(*flags.redisPassword),
		)
	default:
		dsn := *flags.dbDSN
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
		}
		durable, err = store.NewSQLiteStore(store.WithDSN(dsn))
	}
	if err != nil {
		return nil, err
	}
	return store.NewScopedStore(session, durable), nil
}

// loadModalMarkup reads modal attribute maps from a JSON file. An empty
// path yields no modals; the API register endpoint can add them later.
func loadModalMarkup(path string) ([]page.Markup, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var attrs []map[string]string
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, err
	}
	markup := make([]page.Markup, 0, len(attrs))
	for _, m := range attrs {
		markup = append(markup, page.Markup{Attributes: m})
	}
	slog.Debug("Loaded modal markup", "file", path, "count", len(markup))
	return markup, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted by CLUBEVENTS_STORAGE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const envPrefix = "CLUBEVENTS_"

// Config captures environment driven configuration values for the club events service.
type Config struct {
	HTTPPort       int
	StorageDriver  string
	SQLiteDSN      string
	PostgresDSN    string
	TokenSecret    string
	TokenTTL       time.Duration
	RequestTimeout time.Duration
	EventCacheSize int
	StaticDir      string
	LogLevel       slog.Level
	// AdminEmail and AdminPassword, when both set, bootstrap an administrator at startup.
	AdminEmail    string
	AdminPassword string
}

// Load parses configuration values from the current process environment.
//
// A dotenv file is read first: CLUBEVENTS_ENV_FILE when set, otherwise ./.env
// if it exists. Variables already present in the environment take precedence.
// Missing and invalid entries are collected and reported in one error.
func Load() (Config, error) {
	if err := loadDotenv(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPPort:       8080,
		StorageDriver:  DriverSQLite,
		SQLiteDSN:      "file:clubevents.db",
		TokenTTL:       24 * time.Hour,
		RequestTimeout: 15 * time.Second,
		EventCacheSize: 256,
		LogLevel:       slog.LevelInfo,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if portValue := env("HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, envPrefix+"HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := strings.ToLower(env("STORAGE_DRIVER")); driver != "" {
		switch driver {
		case DriverSQLite, DriverPostgres, DriverMemory:
			cfg.StorageDriver = driver
		default:
			invalid = append(invalid, envPrefix+"STORAGE_DRIVER")
		}
	}

	if dsn := env("SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.PostgresDSN = env("POSTGRES_DSN")
	if cfg.StorageDriver == DriverPostgres && cfg.PostgresDSN == "" {
		missing = append(missing, envPrefix+"POSTGRES_DSN")
	}

	if secret := env("TOKEN_SECRET"); secret == "" {
		missing = append(missing, envPrefix+"TOKEN_SECRET")
	} else {
		cfg.TokenSecret = secret
	}

	if ttl, ok := parsePositiveDuration("TOKEN_TTL", &invalid); ok {
		cfg.TokenTTL = ttl
	}
	if timeout, ok := parsePositiveDuration("REQUEST_TIMEOUT", &invalid); ok {
		cfg.RequestTimeout = timeout
	}

	if sizeValue := env("EVENT_CACHE_SIZE"); sizeValue != "" {
		size, err := strconv.Atoi(sizeValue)
		if err != nil || size < 0 {
			invalid = append(invalid, envPrefix+"EVENT_CACHE_SIZE")
		} else {
			cfg.EventCacheSize = size
		}
	}

	cfg.StaticDir = env("STATIC_DIR")

	cfg.AdminEmail = env("ADMIN_EMAIL")
	cfg.AdminPassword = env("ADMIN_PASSWORD")
	switch {
	case cfg.AdminEmail != "" && cfg.AdminPassword == "":
		missing = append(missing, envPrefix+"ADMIN_PASSWORD")
	case cfg.AdminEmail == "" && cfg.AdminPassword != "":
		missing = append(missing, envPrefix+"ADMIN_EMAIL")
	}

	if levelValue := env("LOG_LEVEL"); levelValue != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, envPrefix+"LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func loadDotenv() error {
	if path := env("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

func parsePositiveDuration(name string, invalid *[]string) (time.Duration, bool) {
	value := env(name)
	if value == "" {
		return 0, false
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		*invalid = append(*invalid, envPrefix+name)
		return 0, false
	}
	return d, true
}

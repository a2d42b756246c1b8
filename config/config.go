// Package config reads service settings from the environment. A .env file in
// the working directory (or the file named by ENV_FILE) is loaded first;
// variables already set in the environment win.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Manideep9308/task-flow-sub000/storage"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendTable = "table"

	AuthNone  = ""
	AuthHS256 = "hs256"
	AuthJWKS  = "jwks"
)

type Config struct {
	ListenAddr      string
	Debug           bool
	JSONLogs        bool
	ShutdownTimeout time.Duration
	Heartbeat       time.Duration
	DeduperTTL      time.Duration

	Storage   StorageConfig
	Auth      AuthConfig
	Persister storage.PersisterOptions
	Publisher storage.PublisherOptions
}

type StorageConfig struct {
	Backend          string
	SnapshotPath     string
	SeedPath         string
	RedisConn        string
	RedisKey         string
	ConnectionString string
	TasksTable       string
	Partition        string
	ChangesQueue     string
}

type AuthConfig struct {
	Mode     string
	Secret   string
	Domain   string
	Audience string
	Issuer   string
	CacheTTL time.Duration
}

// JWKSURL is the key set location of the configured Auth0 domain.
func (a AuthConfig) JWKSURL() string {
	return fmt.Sprintf("https://%s/.well-known/jwks.json", a.Domain)
}

// PublishChanges reports whether change events go to a storage queue.
func (c *Config) PublishChanges() bool {
	return c.Storage.ChangesQueue != ""
}

// Load reads and validates the configuration.
func Load() (*Config, error) {
	if err := loadDotEnv(cmp.Or(os.Getenv("ENV_FILE"), ".env")); err != nil {
		return nil, err
	}

	var err error
	c := &Config{
		ListenAddr: listenAddr(),
		JSONLogs:   strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
		Storage: StorageConfig{
			Backend:          strings.ToLower(cmp.Or(os.Getenv("STORAGE_BACKEND"), BackendFile)),
			SnapshotPath:     cmp.Or(os.Getenv("SNAPSHOT_PATH"), "data/board.json"),
			SeedPath:         os.Getenv("SEED_PATH"),
			RedisConn:        os.Getenv("REDIS_CONNECTION_STRING"),
			RedisKey:         os.Getenv("REDIS_SNAPSHOT_KEY"),
			ConnectionString: os.Getenv("STORAGE_CONNECTION_STRING"),
			TasksTable:       os.Getenv("TASKS_TABLE"),
			Partition:        os.Getenv("TASKS_PARTITION"),
			ChangesQueue:     os.Getenv("CHANGES_QUEUE"),
		},
		Auth: AuthConfig{
			Mode:     strings.ToLower(os.Getenv("AUTH_MODE")),
			Secret:   os.Getenv("AUTH_SECRET"),
			Domain:   os.Getenv("AUTH0_DOMAIN"),
			Audience: os.Getenv("AUTH0_AUDIENCE"),
			Issuer:   os.Getenv("AUTH_ISSUER"),
		},
	}
	if c.Debug, err = envBool("DEBUG", false); err != nil {
		return nil, err
	}
	if c.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if c.Heartbeat, err = envDuration("SSE_HEARTBEAT", 15*time.Second); err != nil {
		return nil, err
	}
	if c.DeduperTTL, err = envDuration("DEDUPER_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if c.Auth.CacheTTL, err = envDuration("JWKS_CACHE_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if c.Persister.SaveTimeout, err = envDuration("SAVE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if c.Persister.RetryDelay, err = envDuration("SAVE_RETRY_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if c.Persister.MaxRetryDelay, err = envDuration("SAVE_MAX_RETRY_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	if c.Publisher.Workers, err = envInt("PUBLISH_WORKERS", 4); err != nil {
		return nil, err
	}
	if c.Publisher.Buffer, err = envInt("PUBLISH_BUFFER", 100); err != nil {
		return nil, err
	}
	if c.Publisher.Timeout, err = envDuration("PUBLISH_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if c.Publisher.HandoffTimeout, err = envDuration("PUBLISH_HANDOFF_TIMEOUT", 50*time.Millisecond); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.SnapshotPath == "" {
			return errors.New("missing SNAPSHOT_PATH")
		}
	case BackendRedis:
		if c.Storage.RedisConn == "" {
			return errors.New("missing REDIS_CONNECTION_STRING for redis storage")
		}
	case BackendTable:
		if c.Storage.ConnectionString == "" || c.Storage.TasksTable == "" {
			return errors.New("missing storage config: STORAGE_CONNECTION_STRING and TASKS_TABLE are required for table storage")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q: expected file, redis or table", c.Storage.Backend)
	}
	if c.Storage.ChangesQueue != "" && c.Storage.ConnectionString == "" {
		return errors.New("CHANGES_QUEUE requires STORAGE_CONNECTION_STRING")
	}

	switch c.Auth.Mode {
	case AuthNone:
	case AuthHS256:
		if c.Auth.Secret == "" {
			return errors.New("missing AUTH_SECRET for hs256 auth")
		}
	case AuthJWKS:
		if c.Auth.Domain == "" || c.Auth.Audience == "" {
			return errors.New("missing Auth0 config: AUTH0_DOMAIN and AUTH0_AUDIENCE are required for jwks auth")
		}
		if c.Auth.Issuer == "" {
			c.Auth.Issuer = "https://" + c.Auth.Domain + "/"
		}
	default:
		return fmt.Errorf("invalid AUTH_MODE %q: expected hs256 or jwks", c.Auth.Mode)
	}

	if c.Publisher.Workers <= 0 {
		return errors.New("invalid PUBLISH_WORKERS: must be greater than zero")
	}
	if c.Publisher.Buffer < 0 {
		return errors.New("invalid PUBLISH_BUFFER: must not be negative")
	}
	if c.DeduperTTL <= 0 {
		return errors.New("invalid DEDUPER_TTL: must be greater than zero")
	}
	return nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// listenAddr honours the Azure Functions custom handler port.
func listenAddr() string {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		return v
	}
	if v, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok && v != "" {
		return ":" + v
	}
	return ":8080"
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

package config

import (
	"fmt"
	"strings"
)

// FlagBackend selects where shared session flags live.
type FlagBackend string

const (
	// FlagBackendMemory keeps flags in-process (single controller, tests).
	FlagBackendMemory FlagBackend = "memory"
	// FlagBackendFile keeps flags in a JSON file shared by local processes.
	FlagBackendFile FlagBackend = "file"
	// FlagBackendRedis keeps flags in Redis, shared across hosts.
	FlagBackendRedis FlagBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for FlagBackend.
func (b *FlagBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "file", "redis":
		*b = FlagBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid FlagBackend: %q (valid options: memory, file, redis)", v)
	}
}

// FlagsConfig configures the shared flag store.
type FlagsConfig struct {
	Backend FlagBackend `env:"FLAGS_BACKEND" envDefault:"file"`

	// FilePath is the JSON file used by the file backend.
	FilePath string `env:"FLAGS_FILE" envDefault:".onehub/flags.json"`

	// QuotaBytes caps the summed size of keys and values (0 = unlimited).
	QuotaBytes int `env:"FLAGS_QUOTA_BYTES" envDefault:"5242880"`

	// KeyPrefix namespaces Redis keys and the pub/sub channel.
	KeyPrefix string `env:"FLAGS_KEY_PREFIX" envDefault:"onehub:flags:"`

	Redis RedisConfig `envPrefix:"REDIS_"`
}

// Sanitize applies guardrails to flag store configuration values.
func (f *FlagsConfig) Sanitize() {
	if f.Backend == "" {
		f.Backend = FlagBackendFile
	}
	if f.FilePath = strings.TrimSpace(f.FilePath); f.FilePath == "" {
		f.FilePath = ".onehub/flags.json"
	}
	if f.QuotaBytes < 0 {
		f.QuotaBytes = 0
	}
	if f.KeyPrefix == "" {
		f.KeyPrefix = "onehub:flags:"
	}
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"banter/cmd/internal/chat"
	"banter/cmd/internal/push"
)

// Config contains all runtime configuration. Values come from built-in
// defaults, then an optional YAML file (BANTER_CONFIG), then environment
// variables; later layers win.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// AnonymousSlots is the size of the anonymous identity pool [1..N].
	AnonymousSlots int

	// MaxMessageLength is the push payload ceiling in bytes.
	MaxMessageLength int

	// SendQueueSize bounds each channel connection's outbound queue.
	SendQueueSize int

	// ChannelWriteTimeout is the per-frame write deadline on channels.
	ChannelWriteTimeout time.Duration

	// RegistrySerialize wraps every registry fetch-mutate-store cycle in
	// a mutex. Turning it off restores the raw last-write-wins behavior
	// of the shared store, where concurrent cycles can lose updates.
	RegistrySerialize bool

	// CookieName is the dev identity provider's cookie.
	CookieName string
}

func defaultConfig() Config {
	return Config{
		HTTPAddr: "0.0.0.0:8080",
		LogLevel: "info",

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,

		DBMaxConns: 10,
		DBMinConns: 0,

		AnonymousSlots:      chat.DefaultSlots,
		MaxMessageLength:    push.DefaultMaxMessageLength,
		SendQueueSize:       64,
		ChannelWriteTimeout: 5 * time.Second,

		RegistrySerialize: true,
		CookieName:        "banter_user",
	}
}

// fileConfig is the YAML shape of the optional config file. Durations use
// the env variables; the file covers the values people actually tune.
// Absent fields leave the previous layer untouched.
type fileConfig struct {
	HTTPAddr          *string `yaml:"http_addr"`
	LogLevel          *string `yaml:"log_level"`
	DatabaseURL       *string `yaml:"database_url"`
	AnonymousSlots    *int    `yaml:"anonymous_slots"`
	MaxMessageLength  *int    `yaml:"max_message_length"`
	SendQueueSize     *int    `yaml:"send_queue_size"`
	RegistrySerialize *bool   `yaml:"registry_serialize"`
	CookieName        *string `yaml:"cookie_name"`
}

// LoadConfig resolves the effective configuration.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := strings.TrimSpace(os.Getenv("BANTER_CONFIG")); path != "" {
		if err := applyConfigFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if cfg.AnonymousSlots <= 0 || cfg.MaxMessageLength <= 0 {
		return Config{}, fmt.Errorf("invalid config: slots=%d max_message_length=%d",
			cfg.AnonymousSlots, cfg.MaxMessageLength)
	}
	return cfg, nil
}

func applyConfigFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.HTTPAddr != nil {
		cfg.HTTPAddr = *fc.HTTPAddr
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.DatabaseURL != nil {
		cfg.DatabaseURL = *fc.DatabaseURL
	}
	if fc.AnonymousSlots != nil {
		cfg.AnonymousSlots = *fc.AnonymousSlots
	}
	if fc.MaxMessageLength != nil {
		cfg.MaxMessageLength = *fc.MaxMessageLength
	}
	if fc.SendQueueSize != nil {
		cfg.SendQueueSize = *fc.SendQueueSize
	}
	if fc.RegistrySerialize != nil {
		cfg.RegistrySerialize = *fc.RegistrySerialize
	}
	if fc.CookieName != nil {
		cfg.CookieName = *fc.CookieName
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = envString("BANTER_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = envString("BANTER_LOG_LEVEL", cfg.LogLevel)

	cfg.ReadHeaderTimeout = envDuration("BANTER_HTTP_READ_HEADER_TIMEOUT", cfg.ReadHeaderTimeout)
	cfg.ReadTimeout = envDuration("BANTER_HTTP_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = envDuration("BANTER_HTTP_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = envDuration("BANTER_HTTP_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.MaxHeaderBytes = envInt("BANTER_HTTP_MAX_HEADER_BYTES", cfg.MaxHeaderBytes)

	cfg.DatabaseURL = envString("BANTER_DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMaxConns = envInt32("BANTER_DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.DBMinConns = envInt32("BANTER_DB_MIN_CONNS", cfg.DBMinConns)

	cfg.AnonymousSlots = envInt("BANTER_ANONYMOUS_SLOTS", cfg.AnonymousSlots)
	cfg.MaxMessageLength = envInt("BANTER_MAX_MESSAGE_LENGTH", cfg.MaxMessageLength)
	cfg.SendQueueSize = envInt("BANTER_SEND_QUEUE", cfg.SendQueueSize)
	cfg.ChannelWriteTimeout = envDuration("BANTER_CHANNEL_WRITE_TIMEOUT", cfg.ChannelWriteTimeout)

	cfg.RegistrySerialize = envBool("BANTER_REGISTRY_SERIALIZE", cfg.RegistrySerialize)
	cfg.CookieName = envString("BANTER_COOKIE_NAME", cfg.CookieName)
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt32(key string, def int32) int32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

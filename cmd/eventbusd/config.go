package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/eventbus"
)

// Config is the daemon configuration: the engine settings plus the
// process-level wiring around them.
type Config struct {
	Engine eventbus.Config

	// RedisURL selects the Redis store and channel. Empty runs a single
	// in-memory instance.
	RedisURL string

	AdminAddr  string
	AdminToken string
	LogLevel   slog.Level
}

type configFile struct {
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Admin struct {
		Addr  string `yaml:"addr"`
		Token string `yaml:"token"`
	} `yaml:"admin"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Engine struct {
		InstanceID      string        `yaml:"instance_id"`
		MaxRetries      *int          `yaml:"max_retries"`
		RetryDelay      time.Duration `yaml:"retry_delay"`
		RetryBackoff    string        `yaml:"retry_backoff"`
		MaxRetryDelay   time.Duration `yaml:"max_retry_delay"`
		Concurrency     int           `yaml:"concurrency"`
		QueueSize       int           `yaml:"queue_size"`
		EventTTL        time.Duration `yaml:"event_ttl"`
		DLQMaxSize      int           `yaml:"dlq_max_size"`
		ChannelName     string        `yaml:"channel_name"`
		KeyPrefix       string        `yaml:"key_prefix"`
		Codec           string        `yaml:"codec"`
		SweepSchedule   *string       `yaml:"sweep_schedule"`
		SweepRetention  time.Duration `yaml:"sweep_retention"`
		HandlerTimeout  time.Duration `yaml:"handler_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"engine"`
}

// LoadConfig applies defaults, then the YAML file at path (a missing file
// is skipped), then EVENTBUS_* environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		Engine:    eventbus.DefaultConfig(),
		AdminAddr: ":8085",
		LogLevel:  slog.LevelInfo,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Engine.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.RedisURL, f.Redis.URL)
	setString(&cfg.AdminAddr, f.Admin.Addr)
	setString(&cfg.AdminToken, f.Admin.Token)
	if f.Log.Level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(f.Log.Level)); err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}
	}

	e := &cfg.Engine
	fe := f.Engine
	setString(&e.InstanceID, fe.InstanceID)
	if fe.MaxRetries != nil {
		e.MaxRetries = *fe.MaxRetries
	}
	setDuration(&e.RetryDelay, fe.RetryDelay)
	setString(&e.RetryBackoff, fe.RetryBackoff)
	setDuration(&e.MaxRetryDelay, fe.MaxRetryDelay)
	setInt(&e.Concurrency, fe.Concurrency)
	setInt(&e.QueueSize, fe.QueueSize)
	setDuration(&e.EventTTL, fe.EventTTL)
	setInt(&e.DLQMaxSize, fe.DLQMaxSize)
	setString(&e.ChannelName, fe.ChannelName)
	setString(&e.KeyPrefix, fe.KeyPrefix)
	setString(&e.Codec, fe.Codec)
	if fe.SweepSchedule != nil {
		e.SweepSchedule = *fe.SweepSchedule
	}
	setDuration(&e.SweepRetention, fe.SweepRetention)
	setDuration(&e.HandlerTimeout, fe.HandlerTimeout)
	setDuration(&e.ShutdownTimeout, fe.ShutdownTimeout)
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.RedisURL = envString("EVENTBUS_REDIS_URL", cfg.RedisURL)
	cfg.AdminAddr = envString("EVENTBUS_ADMIN_ADDR", cfg.AdminAddr)
	cfg.AdminToken = envString("EVENTBUS_ADMIN_TOKEN", cfg.AdminToken)
	if raw := os.Getenv("EVENTBUS_LOG_LEVEL"); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			return fmt.Errorf("EVENTBUS_LOG_LEVEL: %w", err)
		}
	}

	e := &cfg.Engine
	e.InstanceID = envString("EVENTBUS_INSTANCE_ID", e.InstanceID)
	e.RetryBackoff = envString("EVENTBUS_RETRY_BACKOFF", e.RetryBackoff)
	e.ChannelName = envString("EVENTBUS_CHANNEL_NAME", e.ChannelName)
	e.KeyPrefix = envString("EVENTBUS_KEY_PREFIX", e.KeyPrefix)
	e.Codec = envString("EVENTBUS_CODEC", e.Codec)
	if raw, ok := os.LookupEnv("EVENTBUS_SWEEP_SCHEDULE"); ok {
		e.SweepSchedule = raw
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"EVENTBUS_MAX_RETRIES", &e.MaxRetries},
		{"EVENTBUS_CONCURRENCY", &e.Concurrency},
		{"EVENTBUS_QUEUE_SIZE", &e.QueueSize},
		{"EVENTBUS_DLQ_MAX_SIZE", &e.DLQMaxSize},
	}
	for _, v := range ints {
		if err := envInt(v.name, v.dst); err != nil {
			return err
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"EVENTBUS_RETRY_DELAY", &e.RetryDelay},
		{"EVENTBUS_MAX_RETRY_DELAY", &e.MaxRetryDelay},
		{"EVENTBUS_EVENT_TTL", &e.EventTTL},
		{"EVENTBUS_SWEEP_RETENTION", &e.SweepRetention},
		{"EVENTBUS_HANDLER_TIMEOUT", &e.HandlerTimeout},
		{"EVENTBUS_SHUTDOWN_TIMEOUT", &e.ShutdownTimeout},
	}
	for _, v := range durations {
		if err := envDuration(v.name, v.dst); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func envString(name, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		return raw
	}
	return fallback
}

func envInt(name string, dst *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = v
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = v
	return nil
}

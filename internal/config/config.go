package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	QueueSize      int      `mapstructure:"queue_size"`
	QueueWorkers   int      `mapstructure:"queue_workers"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type ArchiveConfig struct {
	Retention time.Duration `mapstructure:"retention"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	InProcess bool          `mapstructure:"in_process"`
}

type PresenceConfig struct {
	TypingTimeout time.Duration `mapstructure:"typing_timeout"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
}

type HistoryConfig struct {
	PageSize int    `mapstructure:"page_size"`
	Timezone string `mapstructure:"timezone"`
}

type WSConfig struct {
	PingInterval  time.Duration `mapstructure:"ping_interval"`
	WriteDeadline time.Duration `mapstructure:"write_deadline"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	MaxFrameBytes int64         `mapstructure:"max_frame_bytes"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type CatalogConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Presence PresenceConfig `mapstructure:"presence"`
	History  HistoryConfig  `mapstructure:"history"`
	WS       WSConfig       `mapstructure:"ws"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Log      LogConfig      `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.queue_size", 100)
	v.SetDefault("server.queue_workers", 10)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("store.driver", "dynamodb")

	v.SetDefault("archive.retention", 30*24*time.Hour)
	v.SetDefault("archive.interval", time.Hour)
	v.SetDefault("archive.batch_size", 1000)
	v.SetDefault("archive.in_process", false)

	v.SetDefault("presence.typing_timeout", 10*time.Second)
	v.SetDefault("presence.redis_prefix", "chat")

	v.SetDefault("history.page_size", 30)
	v.SetDefault("history.timezone", "UTC")

	v.SetDefault("ws.ping_interval", 30*time.Second)
	v.SetDefault("ws.write_deadline", 10*time.Second)
	v.SetDefault("ws.send_buffer", 64)
	v.SetDefault("ws.max_frame_bytes", 512*1024)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "chat.events")

	v.SetDefault("catalog.url", "")
	v.SetDefault("catalog.timeout", 3*time.Second)

	v.SetDefault("log.development", false)
	v.SetDefault("log.level", "info")
}

// Load reads defaults, then the optional YAML file at path, then CHAT_*
// environment overrides (CHAT_ARCHIVE_RETENTION=720h and so on).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "dynamodb", "mongo", "memory":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Archive.Retention <= 0 {
		return fmt.Errorf("config: archive.retention must be positive")
	}
	if c.Archive.Interval <= 0 {
		return fmt.Errorf("config: archive.interval must be positive")
	}
	if c.Archive.BatchSize <= 0 {
		c.Archive.BatchSize = 1000
	}
	if c.Presence.TypingTimeout <= 0 {
		return fmt.Errorf("config: presence.typing_timeout must be positive")
	}
	if c.History.PageSize <= 0 || c.History.PageSize > 100 {
		c.History.PageSize = 30
	}
	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 64
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves history.timezone used for day grouping.
func (c *Config) Location() (*time.Location, error) {
	if c.History.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.History.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: history.timezone: %w", err)
	}
	return loc, nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Storage struct {
		Type string `yaml:"type"` // "memory" or "clickhouse"
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EgressTopic  string   `yaml:"egress_topic"`
		IngestTopic  string   `yaml:"ingest_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Scheduler struct {
		Interval     time.Duration `yaml:"interval"`
		CycleTimeout time.Duration `yaml:"cycle_timeout"`
	} `yaml:"scheduler"`
	Connectors struct {
		Seismic struct {
			Enabled      bool    `yaml:"enabled"`
			URL          string  `yaml:"url"`
			MinMagnitude float64 `yaml:"min_magnitude"`
		} `yaml:"seismic"`
		Health struct {
			Enabled     bool   `yaml:"enabled"`
			URL         string `yaml:"url"`
			MinNewCases int64  `yaml:"min_new_cases"`
		} `yaml:"health"`
		Solar struct {
			Enabled bool    `yaml:"enabled"`
			URL     string  `yaml:"url"`
			MinKp   float64 `yaml:"min_kp"`
		} `yaml:"solar"`
		News struct {
			Enabled     bool     `yaml:"enabled"`
			URL         string   `yaml:"url"`
			Topics      []string `yaml:"topics"`
			MinArticles int      `yaml:"min_articles"`
		} `yaml:"news"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"connectors"`
	Hub struct {
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
		SendBuffer        int           `yaml:"send_buffer"`
	} `yaml:"hub"`
	Ingest struct {
		Secret string `yaml:"secret"`
	} `yaml:"ingest"`
	Gateway struct {
		StandardDailyQuota int64 `yaml:"standard_daily_quota"`
		Credentials        []struct {
			Token    string `yaml:"token"`
			Identity string `yaml:"identity"`
			Tier     string `yaml:"tier"`
		} `yaml:"credentials"`
	} `yaml:"gateway"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("INGEST_SECRET"); v != "" {
		c.Ingest.Secret = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Storage.Type == "" {
		return fmt.Errorf("storage.type is required")
	}
	if c.Storage.Type != "memory" && c.Storage.Type != "clickhouse" {
		return fmt.Errorf("storage.type must be 'memory' or 'clickhouse', got '%s'", c.Storage.Type)
	}
	if c.Ingest.Secret == "" {
		return fmt.Errorf("ingest.secret is required")
	}
	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = 5 * time.Minute
	}
	if c.Scheduler.CycleTimeout <= 0 {
		c.Scheduler.CycleTimeout = 60 * time.Second
	}
	if c.Connectors.Timeout <= 0 {
		c.Connectors.Timeout = 20 * time.Second
	}
	if c.Hub.HeartbeatInterval <= 0 {
		c.Hub.HeartbeatInterval = 30 * time.Second
	}
	if c.Hub.SendBuffer <= 0 {
		c.Hub.SendBuffer = 64
	}
	if c.Gateway.StandardDailyQuota <= 0 {
		c.Gateway.StandardDailyQuota = 500
	}
	return nil
}

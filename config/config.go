package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracking TrackingConfig `yaml:"tracking"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                      string `yaml:"host"`
	Port                      int    `yaml:"port"`
	TrackingChangedTopicName  string `yaml:"tracking_changed_topic_name"`
	OrderCompletedTopicName   string `yaml:"order_completed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ProviderConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	LiveRequests bool   `yaml:"live_requests"`
}

type TrackingConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	WorkerHTTPAddr     string `yaml:"worker_http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	// "5min" | "15min" | "30min" | "hourly"; невалидное значение -> 15min.
	SyncInterval  string `yaml:"sync_interval"`
	SyncBatchSize int    `yaml:"sync_batch_size"`

	PublicRateLimit          int `yaml:"public_rate_limit"`
	PublicRateWindowSeconds  int `yaml:"public_rate_window_seconds"`

	AllowMultipleTracking *bool `yaml:"allow_multiple_tracking"`

	AfterShip  ProviderConfig `yaml:"aftership"`
	Shiprocket ProviderConfig `yaml:"shiprocket"`

	SampleProviderEnabled bool `yaml:"sample_provider_enabled"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

// SyncIntervalDuration maps the configured schedule key to a duration.
func (t TrackingConfig) SyncIntervalDuration() time.Duration {
	switch t.SyncInterval {
	case "5min":
		return 5 * time.Minute
	case "30min":
		return 30 * time.Minute
	case "hourly":
		return time.Hour
	case "15min":
		return 15 * time.Minute
	default:
		return 15 * time.Minute
	}
}

// SyncBatchSizeClamped returns the batch size clamped to [1,100], default 10.
func (t TrackingConfig) SyncBatchSizeClamped() int {
	size := t.SyncBatchSize
	if size == 0 {
		size = 10
	}
	if size < 1 {
		size = 1
	}
	if size > 100 {
		size = 100
	}
	return size
}

// PublicRateLimitClamped returns max lookup attempts per window, [1,200], default 20.
func (t TrackingConfig) PublicRateLimitClamped() int {
	limit := t.PublicRateLimit
	if limit == 0 {
		limit = 20
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	return limit
}

// PublicRateWindow returns the lookup window, floor 60s, default 900s.
func (t TrackingConfig) PublicRateWindow() time.Duration {
	sec := t.PublicRateWindowSeconds
	if sec == 0 {
		sec = 900
	}
	if sec < 60 {
		sec = 60
	}
	return time.Duration(sec) * time.Second
}

// MultipleTrackingEnabled defaults to true when unset.
func (t TrackingConfig) MultipleTrackingEnabled() bool {
	if t.AllowMultipleTracking == nil {
		return true
	}
	return *t.AllowMultipleTracking
}

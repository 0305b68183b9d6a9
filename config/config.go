package config

import (
	"time"

	"healthmon/internals/domain"
)

type DefaultsConfig struct {
	Host               string        `mapstructure:"host" validate:"required,hostname_rfc1123|ip"`
	Interval           int           `mapstructure:"interval" validate:"gt=0"`
	DownAlertThreshold int           `mapstructure:"down_alert_threshold" validate:"gte=1"`
	ProbeTimeout       time.Duration `mapstructure:"probe_timeout" validate:"gt=0"`
}

type HistoryConfig struct {
	MaxEntries    int           `mapstructure:"max_entries" validate:"gt=0"`
	RetentionDays int           `mapstructure:"retention_days" validate:"gt=0"`
	PruneInterval time.Duration `mapstructure:"prune_interval" validate:"gt=0"`
	UptimeWindow  time.Duration `mapstructure:"uptime_window" validate:"gt=0"`
	GraphPoints   int           `mapstructure:"graph_points" validate:"gt=0"`
}

type StorageConfig struct {
	Driver    string        `mapstructure:"driver" validate:"oneof=file sqlite postgres redis none"`
	Path      string        `mapstructure:"path" validate:"required_if=Driver file,required_if=Driver sqlite"`
	DSN       string        `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	RedisURL  string        `mapstructure:"redis_url" validate:"required_if=Driver redis"`
	QueueSize int           `mapstructure:"queue_size" validate:"gt=0"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	WatchFile bool          `mapstructure:"watch_file"`
	MaxConns  int32         `mapstructure:"max_conns" validate:"gte=0"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type WebhookConfig struct {
	URL    string `mapstructure:"url" validate:"omitempty,url"`
	Secret string `mapstructure:"secret"`
}

type RabbitMQConfig struct {
	URL        string `mapstructure:"url" validate:"omitempty,url"`
	Exchange   string `mapstructure:"exchange" validate:"required_with=URL"`
	RoutingKey string `mapstructure:"routing_key"`
}

type AlertConfig struct {
	Workers    int            `mapstructure:"workers" validate:"gt=0"`
	QueueSize  int            `mapstructure:"queue_size" validate:"gt=0"`
	Timeout    time.Duration  `mapstructure:"timeout" validate:"gt=0"`
	RatePerMin int            `mapstructure:"rate_per_minute" validate:"gt=0"`
	Burst      int            `mapstructure:"burst" validate:"gt=0"`
	Webhook    WebhookConfig  `mapstructure:"webhook"`
	Discord    WebhookConfig  `mapstructure:"discord"`
	Slack      WebhookConfig  `mapstructure:"slack"`
	RabbitMQ   RabbitMQConfig `mapstructure:"rabbitmq"`
}

type HTTPConfig struct {
	Addr       string        `mapstructure:"addr" validate:"required"`
	AuthSecret string        `mapstructure:"auth_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	StreamTick time.Duration `mapstructure:"stream_tick" validate:"gt=0"`
}

type Config struct {
	Env         string           `mapstructure:"env" validate:"required"`
	ServiceName string           `mapstructure:"service_name" validate:"required"`
	Defaults    DefaultsConfig   `mapstructure:"defaults"`
	History     HistoryConfig    `mapstructure:"history"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Alerts      AlertConfig      `mapstructure:"alerts"`
	HTTP        HTTPConfig       `mapstructure:"http"`
	Services    []domain.Service `mapstructure:"services"`
}

// ServiceDefaults is the subset of Config consumed by service normalization.
func (c *Config) ServiceDefaults() domain.Defaults {
	return domain.Defaults{
		Host:               c.Defaults.Host,
		IntervalSec:        c.Defaults.Interval,
		DownAlertThreshold: c.Defaults.DownAlertThreshold,
	}
}

// Retention is HISTORY_RETENTION_DAYS as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

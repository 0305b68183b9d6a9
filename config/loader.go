package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"healthmon/pkg/apperror"
)

// LoadConfig reads path (yaml) on top of defaults and environment overrides.
// An empty path runs on defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	const op string = "config.load"

	if err := loadDotEnv(); err != nil {
		return nil, apperror.New(apperror.Configuration, op, fmt.Errorf("load .env: %w", err))
	}

	v := viper.New()

	// default first
	setDefaults(v)

	// Env Config
	v.SetEnvPrefix("HEALTHMON")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// File Config
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, apperror.New(apperror.Configuration, op, fmt.Errorf("read config: %w", err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperror.New(apperror.Configuration, op, fmt.Errorf("unmarshal config: %w", err))
	}

	// Validate
	if err := validateConfig(&cfg); err != nil {
		return nil, apperror.New(apperror.Configuration, op, err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("service_name", "healthmon")

	v.SetDefault("defaults.host", "localhost")
	v.SetDefault("defaults.interval", 10)
	v.SetDefault("defaults.down_alert_threshold", 3)
	v.SetDefault("defaults.probe_timeout", "5s")

	v.SetDefault("history.max_entries", 1000)
	v.SetDefault("history.retention_days", 30)
	v.SetDefault("history.prune_interval", "1m")
	v.SetDefault("history.uptime_window", "24h")
	v.SetDefault("history.graph_points", 60)

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", "data")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.queue_size", 1024)
	v.SetDefault("storage.timeout", "5s")
	v.SetDefault("storage.watch_file", false)
	v.SetDefault("storage.max_conns", 10)
	v.SetDefault("storage.key_prefix", "healthmon")

	v.SetDefault("alerts.workers", 4)
	v.SetDefault("alerts.queue_size", 256)
	v.SetDefault("alerts.timeout", "10s")
	v.SetDefault("alerts.rate_per_minute", 60)
	v.SetDefault("alerts.burst", 10)
	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.webhook.secret", "")
	v.SetDefault("alerts.discord.url", "")
	v.SetDefault("alerts.slack.url", "")
	v.SetDefault("alerts.rabbitmq.url", "")
	v.SetDefault("alerts.rabbitmq.exchange", "")
	v.SetDefault("alerts.rabbitmq.routing_key", "healthmon.alert")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.auth_secret", "")
	v.SetDefault("http.token_ttl", "24h")
	v.SetDefault("http.stream_tick", "5s")
}

func validateConfig(cfg *Config) error {

	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return formatValidationErrors(ve)
		}
		return err
	}
	return nil
}

func formatValidationErrors(ve validator.ValidationErrors) error {
	var sb strings.Builder
	sb.WriteString("config validation failed:\n")

	for _, fe := range ve {
		fmt.Fprintf(&sb, "- field '%s' failed on '%s'\n", fe.Namespace(), fe.Tag())
	}
	return errors.New(sb.String())
}

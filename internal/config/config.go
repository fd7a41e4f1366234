// Package config содержит логику чтения конфигурации сервиса кофейни.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress   = "localhost:8080"
	defaultNotifyTopic  = "coffee.notifications"
	defaultPollInterval = 15 * time.Second
)

// Config содержит параметры конфигурации сервиса кофейни.
type Config struct {
	RunAddress   string        `env:"RUN_ADDRESS"`
	DatabaseURI  string        `env:"DATABASE_URI"`
	RedisAddress string        `env:"REDIS_ADDRESS"`
	KafkaBrokers []string      `env:"KAFKA_BROKERS" envSeparator:","`
	NotifyTopic  string        `env:"NOTIFY_TOPIC"`
	PollInterval time.Duration `env:"POLL_INTERVAL"`
	SeedDemo     bool          `env:"SEED_DEMO_ACCOUNTS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg

	var brokers string
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for local snapshot")
	flag.StringVar(&brokers, "k", "", "comma separated kafka brokers for notifications")
	flag.StringVar(&cfg.NotifyTopic, "t", defaultNotifyTopic, "kafka topic for notifications")
	flag.DurationVar(&cfg.PollInterval, "p", defaultPollInterval, "ready orders poll interval")
	flag.BoolVar(&cfg.SeedDemo, "demo", false, "create demo customer, barista and admin accounts")

	flag.Parse()

	cfg.KafkaBrokers = splitList(brokers)

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.RedisAddress != "" {
		cfg.RedisAddress = envCfg.RedisAddress
	}
	if len(envCfg.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = splitList(strings.Join(envCfg.KafkaBrokers, ","))
	}
	if envCfg.NotifyTopic != "" {
		cfg.NotifyTopic = envCfg.NotifyTopic
	}
	if envCfg.PollInterval != 0 {
		cfg.PollInterval = envCfg.PollInterval
	}
	if envCfg.SeedDemo {
		cfg.SeedDemo = true
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.NotifyTopic == "" {
		cfg.NotifyTopic = defaultNotifyTopic
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}

package core

import (
	"fmt"
	"strings"
	"time"
)

type OutboxConfig struct {
	BatchSize      int           `koanf:"batch_size" mapstructure:"batch_size"`
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
}

type ReputationConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Outbox      OutboxConfig     `koanf:"outbox" mapstructure:"outbox"`
	Reputation  ReputationConfig `koanf:"reputation" mapstructure:"reputation"`
}

func DefaultConfig() Config {
	dispatcher := DefaultOutboxDispatcherConfig()
	return Config{
		ServiceName: "bookswap",
		Outbox: OutboxConfig{
			BatchSize:      dispatcher.BatchSize,
			MaxAttempts:    dispatcher.MaxAttempts,
			InitialBackoff: dispatcher.InitialBackoff,
			MaxBackoff:     dispatcher.MaxBackoff,
		},
		Reputation: ReputationConfig{
			CacheTTL: time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Outbox.BatchSize < 0 {
		return fmt.Errorf("core: outbox.batch_size must not be negative")
	}
	if c.Outbox.MaxAttempts < 0 {
		return fmt.Errorf("core: outbox.max_attempts must not be negative")
	}
	if c.Outbox.MaxBackoff > 0 && c.Outbox.InitialBackoff > c.Outbox.MaxBackoff {
		return fmt.Errorf("core: outbox.initial_backoff must not exceed outbox.max_backoff")
	}
	if c.Reputation.CacheTTL < 0 {
		return fmt.Errorf("core: reputation.cache_ttl must not be negative")
	}
	return nil
}

// DispatcherConfig projects the outbox settings onto the dispatcher.
func (c Config) DispatcherConfig() OutboxDispatcherConfig {
	return OutboxDispatcherConfig{
		BatchSize:      c.Outbox.BatchSize,
		MaxAttempts:    c.Outbox.MaxAttempts,
		InitialBackoff: c.Outbox.InitialBackoff,
		MaxBackoff:     c.Outbox.MaxBackoff,
	}
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/logger"
)

// Config defines the Redis connection configuration
type Config struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolsize"`
	MinIdleConns int           `mapstructure:"minidleconns"`
	DialTimeout  time.Duration `mapstructure:"dialtimeout"`
}

// DefaultConfig returns the default Redis configuration
func DefaultConfig() *Config {
	return &Config{
		Host:        "localhost",
		Port:        6379,
		DB:          0,
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	}
}

// Validate validates the Redis configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("redis host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("redis port must be between 1 and 65535")
	}
	if c.DB < 0 {
		return errors.New("redis db must be >= 0")
	}
	return nil
}

// Addr returns the host:port address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// New creates a Redis client and verifies connectivity
func New(cfg *Config, log *logger.Logger) (*redis.Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis configuration: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info("redis client initialized",
		zap.String("addr", cfg.Addr()),
		zap.Int("db", cfg.DB))

	return client, nil
}

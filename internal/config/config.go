package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes" validate:"gt=0"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format" validate:"oneof=console json"`
	DB                DBConfig      `mapstructure:"db" yaml:"db"`
}

// DBConfig holds backing store connection parameters.
type DBConfig struct {
	Driver       string `mapstructure:"driver" yaml:"driver" validate:"oneof=postgres sqlite"`
	Host         string `mapstructure:"host" yaml:"host" validate:"required_if=Driver postgres"`
	Port         int    `mapstructure:"port" yaml:"port" validate:"required_if=Driver postgres,gte=0,lte=65535"`
	Name         string `mapstructure:"name" yaml:"name" validate:"required_if=Driver postgres"`
	User         string `mapstructure:"user" yaml:"user" validate:"required_if=Driver postgres"`
	Password     string `mapstructure:"password" yaml:"password"`
	SSLMode      string `mapstructure:"sslmode" yaml:"sslmode"`
	Path         string `mapstructure:"path" yaml:"path" validate:"required_if=Driver sqlite"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns" validate:"gte=0"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":9000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		MaxMessageBytes:   1 << 20,
		LogLevel:          "info",
		LogFormat:         "console",
		DB: DBConfig{
			Driver:       DriverPostgres,
			Host:         "localhost",
			Port:         5432,
			Name:         "chatdb",
			User:         "chatuser",
			Password:     "chatpass",
			SSLMode:      "disable",
			Path:         "pollchat.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
	}
}

var validate = validator.New()

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	c.DB.updateFrom(other.DB)
}

func (d *DBConfig) updateFrom(other DBConfig) {
	if other.Driver != "" {
		d.Driver = other.Driver
	}
	if other.Host != "" {
		d.Host = other.Host
	}
	if other.Port != 0 {
		d.Port = other.Port
	}
	if other.Name != "" {
		d.Name = other.Name
	}
	if other.User != "" {
		d.User = other.User
	}
	if other.Password != "" {
		d.Password = other.Password
	}
	if other.SSLMode != "" {
		d.SSLMode = other.SSLMode
	}
	if other.Path != "" {
		d.Path = other.Path
	}
	if other.MaxOpenConns != 0 {
		d.MaxOpenConns = other.MaxOpenConns
	}
	if other.MaxIdleConns != 0 {
		d.MaxIdleConns = other.MaxIdleConns
	}
}

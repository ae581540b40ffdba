// Package config loads the gateway configuration from a TOML file.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultJWTExpiresIn = "24h"
	DefaultPGHost       = "127.0.0.1"
	DefaultPGPort       = 5432
	DefaultPGUser       = "postgres"
	DefaultPGDatabase   = "relay"
	DefaultPGSSLMode    = "disable"
	DefaultEngineURL    = "http://127.0.0.1:8090"
	DefaultStorageURL   = "http://127.0.0.1:8091"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Engine   EngineConfig   `toml:"engine"`
	Storage  StorageConfig  `toml:"storage"`
	Gateway  GatewayConfig  `toml:"gateway"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type EngineConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type StorageConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// GatewayConfig tunes conversation gateway behavior shared by all adapters.
type GatewayConfig struct {
	// ReplyTimeoutSeconds bounds how long an adapter polls for a reply
	// before giving up on pushing it back to the platform.
	ReplyTimeoutSeconds int `toml:"reply_timeout_seconds"`
	// PairingTTLMinutes is how long a pairing code stays redeemable.
	PairingTTLMinutes int `toml:"pairing_ttl_minutes"`
}

// ReplyTimeout returns the adapter reply-polling bound.
func (c GatewayConfig) ReplyTimeout() time.Duration {
	if c.ReplyTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.ReplyTimeoutSeconds) * time.Second
}

// PairingTTL returns the pairing code lifetime.
func (c GatewayConfig) PairingTTL() time.Duration {
	if c.PairingTTLMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.PairingTTLMinutes) * time.Minute
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Engine: EngineConfig{
			BaseURL:        DefaultEngineURL,
			TimeoutSeconds: 30,
		},
		Storage: StorageConfig{
			BaseURL:        DefaultStorageURL,
			TimeoutSeconds: 60,
		},
		Gateway: GatewayConfig{
			ReplyTimeoutSeconds: 120,
			PairingTTLMinutes:   60,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

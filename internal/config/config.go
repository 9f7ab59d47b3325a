// Package config reads the roster client configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding the configuration file.
const (
	EnvRPCEndpoint    = "ROSTER_RPC_ENDPOINT"
	EnvWalletPath     = "ROSTER_WALLET_PATH"
	EnvWalletPassword = "ROSTER_WALLET_PASSWORD"
	EnvAuthorizeReads = "ROSTER_AUTHORIZE_READS"
)

// Config is the roster client configuration.
type Config struct {
	RPC struct {
		Endpoint       string        `yaml:"endpoint"`
		DialTimeout    time.Duration `yaml:"dial_timeout"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"rpc"`

	Wallet struct {
		Path string `yaml:"path"`
		// Default wallet account is used when empty.
		Address string `yaml:"address"`
		// Password is asked interactively when empty. Required for serve.
		Password string `yaml:"password"`
	} `yaml:"wallet"`

	Operation struct {
		Timeout        time.Duration `yaml:"timeout"`
		AuthorizeReads bool          `yaml:"authorize_reads"`
	} `yaml:"operation"`

	HTTP struct {
		Listen string `yaml:"listen"`
	} `yaml:"http"`

	Logger struct {
		Level string `yaml:"level"`
	} `yaml:"logger"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Default returns configuration with default values.
func Default() Config {
	var c Config

	c.RPC.Endpoint = "http://localhost:30333"
	c.RPC.DialTimeout = 15 * time.Second
	c.RPC.RequestTimeout = 15 * time.Second
	c.Wallet.Path = "wallet.json"
	c.Operation.Timeout = 2 * time.Minute
	c.HTTP.Listen = ":8080"
	c.Logger.Level = "info"
	c.Metrics.Enabled = true

	return c
}

// Load reads configuration from the YAML file at path. Missing fields keep
// their default values. Environment overrides are applied afterwards.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return c, nil
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (Config, error) {
	c := Default()

	err := yaml.Unmarshal(data, &c)
	if err != nil {
		return Config{}, err
	}

	err = applyEnv(&c)
	if err != nil {
		return Config{}, err
	}

	return c, c.Validate()
}

func applyEnv(c *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvRPCEndpoint)); v != "" {
		c.RPC.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWalletPath)); v != "" {
		c.Wallet.Path = v
	}
	if v, ok := os.LookupEnv(EnvWalletPassword); ok {
		c.Wallet.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAuthorizeReads)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAuthorizeReads, err)
		}
		c.Operation.AuthorizeReads = b
	}
	return nil
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	if c.RPC.Endpoint == "" {
		return errors.New("missing RPC endpoint")
	}

	u, err := url.Parse(c.RPC.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid RPC endpoint: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported RPC endpoint scheme %q", u.Scheme)
	}

	if c.RPC.DialTimeout < 0 || c.RPC.RequestTimeout < 0 {
		return errors.New("negative RPC timeout")
	}

	if c.Wallet.Path == "" {
		return errors.New("missing wallet path")
	}

	if c.Operation.Timeout <= 0 {
		return fmt.Errorf("non-positive operation timeout %s", c.Operation.Timeout)
	}

	_, err = zapcore.ParseLevel(c.Logger.Level)
	if err != nil {
		return fmt.Errorf("invalid logger level: %w", err)
	}

	return nil
}

// LogLevel returns configured logging level.
func (c Config) LogLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.Logger.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Package config loads the bridge configuration: built-in defaults, then an
// optional YAML file, then CAPTURE_BRIDGE_* environment variables.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yourorg/capture-bridge/internal/circuitbreaker"
	"github.com/yourorg/capture-bridge/internal/policy"
)

// EnvPrefix prefixes every environment override, e.g.
// CAPTURE_BRIDGE_SERVER_HTTP_ADDR for server.http_addr.
const EnvPrefix = "CAPTURE_BRIDGE"

// Config is the complete bridge configuration.
type Config struct {
	Server     ServerConfig          `mapstructure:"server" yaml:"server"`
	Log        LogConfig             `mapstructure:"log" yaml:"log"`
	Gateway    GatewayConfig         `mapstructure:"gateway" yaml:"gateway"`
	Currencies map[string]int        `mapstructure:"currencies" yaml:"currencies"`
	Tokens     TokensConfig          `mapstructure:"tokens" yaml:"tokens"`
	Storage    StorageConfig         `mapstructure:"storage" yaml:"storage"`
	Breaker    circuitbreaker.Config `mapstructure:"breaker" yaml:"breaker"`
	Policy     PolicyConfig          `mapstructure:"policy" yaml:"policy"`
	Tracing    TracingConfig         `mapstructure:"tracing" yaml:"tracing"`
	Schema     SchemaConfig          `mapstructure:"schema" yaml:"schema"`
	Journal    JournalConfig         `mapstructure:"journal" yaml:"journal"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr" yaml:"grpc_addr"`
	Mode     string `mapstructure:"mode" yaml:"mode"` // gin mode: debug, release, test
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json or console
}

// GatewayConfig selects the gateway binding. Only the fields its type reads
// matter.
type GatewayConfig struct {
	Type     string `mapstructure:"type" yaml:"type"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Secret   string `mapstructure:"secret" yaml:"secret"`
}

// Options converts the section into the factory's options map.
func (g GatewayConfig) Options() map[string]any {
	return map[string]any{
		"type":     g.Type,
		"apiKey":   g.APIKey,
		"baseUrl":  g.BaseURL,
		"endpoint": g.Endpoint,
		"secret":   g.Secret,
	}
}

type TokensConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

type StorageConfig struct {
	Driver        string        `mapstructure:"driver" yaml:"driver"` // memory, redis or postgres
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
	RedisTTL      time.Duration `mapstructure:"redis_ttl" yaml:"redis_ttl"`
	PostgresDSN   string        `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

type PolicyConfig struct {
	Rules []policy.PolicyRule `mapstructure:"rules" yaml:"rules,omitempty"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// SchemaConfig overrides the embedded request schemas with files.
type SchemaConfig struct {
	CreatePaymentPath string `mapstructure:"create_payment_path" yaml:"create_payment_path"`
	CapturePath       string `mapstructure:"capture_path" yaml:"capture_path"`
}

type JournalConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// DefaultConfig returns a configuration that runs the Dummy gateway in
// memory.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: ":8080", GRPCAddr: ":9090", Mode: "release"},
		Log:    LogConfig{Level: "info", Format: "json"},
		Gateway: GatewayConfig{
			Type: "Dummy",
		},
		Currencies: map[string]int{"USD": 2, "EUR": 2, "GBP": 2, "CHF": 2, "JPY": 0},
		Tokens:     TokensConfig{BaseURL: "http://localhost:8080"},
		Storage:    StorageConfig{Driver: "memory", RedisAddr: "localhost:6379", RedisTTL: 24 * time.Hour},
		Breaker: circuitbreaker.Config{
			FailureThreshold:         3,
			ResetTimeout:             30 * time.Second,
			HalfOpenSuccessThreshold: 1,
		},
		Journal: JournalConfig{Capacity: 10000},
	}
}

// Load builds the configuration. path may be empty; a missing file is an
// error only when path was given.
func Load(path string) (*Config, error) {
	base, err := Render(DefaultConfig())
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("config: read defaults: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	// viper folds map keys to lower case.
	currencies := make(map[string]int, len(cfg.Currencies))
	for code, exp := range cfg.Currencies {
		currencies[strings.ToUpper(code)] = exp
	}
	cfg.Currencies = currencies
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot fall back to a default.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("config: storage.redis_addr is required for the redis driver")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Gateway.Type == "" {
		return fmt.Errorf("config: gateway.type is required")
	}
	if c.Tokens.BaseURL == "" {
		return fmt.Errorf("config: tokens.base_url is required")
	}
	if len(c.Currencies) == 0 {
		return fmt.Errorf("config: at least one currency is required")
	}
	return nil
}

// Render returns cfg as YAML.
func Render(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: render: %w", err)
	}
	return out, nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	out, err := Render(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

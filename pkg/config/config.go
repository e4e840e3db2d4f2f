// Package config loads babel configuration from an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dasmlab/babel/pkg/gateway"
	"github.com/dasmlab/babel/pkg/model"
	"github.com/dasmlab/babel/pkg/translation"
)

// EnvPrefix prefixes every environment override, e.g. BABEL_SERVER_PORT.
const EnvPrefix = "BABEL"

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
	// GRPCPort serves the gRPC health service when non-zero.
	GRPCPort int `mapstructure:"grpc_port" yaml:"grpc_port"`
}

// ModelConfig holds model provider settings.
type ModelConfig struct {
	Engine  string        `mapstructure:"engine" yaml:"engine"`
	Name    string        `mapstructure:"name" yaml:"name"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// GatewayConfig holds request and response limits.
type GatewayConfig struct {
	MaxTextLength     int `mapstructure:"max_text_length" yaml:"max_text_length"`
	MaxLanguageLength int `mapstructure:"max_language_length" yaml:"max_language_length"`
	MaxHistory        int `mapstructure:"max_history" yaml:"max_history"`
	MaxSuggestions    int `mapstructure:"max_suggestions" yaml:"max_suggestions"`
}

// ClientConfig holds settings for gateway clients.
type ClientConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config is the top-level configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Model   ModelConfig   `mapstructure:"model" yaml:"model"`
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
	Client  ClientConfig  `mapstructure:"client" yaml:"client"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	limits := gateway.DefaultLimits()
	return &Config{
		Server: ServerConfig{Port: 8080},
		Model: ModelConfig{
			Engine:  string(model.EngineResponses),
			Name:    model.DefaultModel,
			BaseURL: model.DefaultBaseURL,
		},
		Gateway: GatewayConfig{
			MaxTextLength:     limits.MaxTextLength,
			MaxLanguageLength: limits.MaxLanguageLength,
			MaxHistory:        limits.MaxHistory,
			MaxSuggestions:    limits.MaxSuggestions,
		},
		Client: ClientConfig{
			Endpoint: "http://localhost:8080/api/ai",
			Timeout:  30 * time.Second,
			CacheTTL: translation.DefaultTTL,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from the YAML file at path, then applies
// environment overrides. A missing file or empty path yields the defaults.
// OPENAI_API_KEY and OPENAI_MODEL are honored alongside the BABEL_ names.
func Load(path string) (*Config, error) {
	d := Default()

	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.grpc_port", d.Server.GRPCPort)
	v.SetDefault("model.engine", d.Model.Engine)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", d.Model.BaseURL)
	v.SetDefault("model.timeout", d.Model.Timeout)
	v.SetDefault("gateway.max_text_length", d.Gateway.MaxTextLength)
	v.SetDefault("gateway.max_language_length", d.Gateway.MaxLanguageLength)
	v.SetDefault("gateway.max_history", d.Gateway.MaxHistory)
	v.SetDefault("gateway.max_suggestions", d.Gateway.MaxSuggestions)
	v.SetDefault("client.endpoint", d.Client.Endpoint)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.cache_ttl", d.Client.CacheTTL)
	v.SetDefault("log.level", d.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("model.api_key", EnvPrefix+"_MODEL_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}
	if err := v.BindEnv("model.name", EnvPrefix+"_MODEL_NAME", "OPENAI_MODEL"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Model.APIKey = strings.TrimSpace(cfg.Model.APIKey)
	cfg.Model.Name = strings.TrimSpace(cfg.Model.Name)
	if cfg.Model.Name == "" {
		cfg.Model.Name = model.DefaultModel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort)
	}
	if _, err := model.ParseEngineType(c.Model.Engine); err != nil {
		return fmt.Errorf("model.engine: %w", err)
	}
	if c.Model.Timeout < 0 || c.Client.Timeout < 0 || c.Client.CacheTTL < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// Limits returns the gateway limits.
func (c *Config) Limits() gateway.Limits {
	return gateway.Limits{
		MaxTextLength:     c.Gateway.MaxTextLength,
		MaxLanguageLength: c.Gateway.MaxLanguageLength,
		MaxHistory:        c.Gateway.MaxHistory,
		MaxSuggestions:    c.Gateway.MaxSuggestions,
	}
}

// ProviderConfig returns the model provider settings.
func (c *Config) ProviderConfig() (model.Config, error) {
	engine, err := model.ParseEngineType(c.Model.Engine)
	if err != nil {
		return model.Config{}, err
	}
	return model.Config{
		Engine:  engine,
		APIKey:  c.Model.APIKey,
		BaseURL: c.Model.BaseURL,
		Timeout: c.Model.Timeout,
	}, nil
}

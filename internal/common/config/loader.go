// internal/common/config/loader.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env, configs/config.yaml and configs/config.<env>.yaml, then
// applies environment overrides, defaults and validation.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v, env)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v, os.Getenv("APP_ENVIRONMENT"))
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	for _, key := range []string{
		"api.base_url", "api.timeout", "api.retry_count", "api.debug",
		"auth.token_key", "auth.token_store", "auth.token_file",
		"redis.address", "redis.password", "redis.db", "redis.prefix",
		"realtime.transport", "realtime.websocket_url", "realtime.redis_channel",
		"realtime.simulator_interval", "realtime.simulator_probability",
		"realtime.event_catalog",
		"logging.level", "logging.format", "logging.output",
		"metrics.address",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

func finish(v *viper.Viper, env string) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = env
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "marketplace-console"
	}

	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30000
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if cfg.Auth.TokenKey == "" {
		cfg.Auth.TokenKey = "token"
	}
	if cfg.Auth.TokenStore == "" {
		cfg.Auth.TokenStore = TokenStoreFile
	}
	if cfg.Auth.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.Auth.TokenFile = filepath.Join(home, ".marketplace", "token.json")
	}

	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "marketplace"
	}

	if cfg.Realtime.Transport == "" {
		cfg.Realtime.Transport = TransportSimulated
	}
	if cfg.Realtime.RedisChannel == "" {
		cfg.Realtime.RedisChannel = "marketplace:events"
	}
	if cfg.Realtime.SimulatorInterval == 0 {
		cfg.Realtime.SimulatorInterval = 8000
	}
	if cfg.Realtime.SimulatorProbability == 0 {
		cfg.Realtime.SimulatorProbability = 0.15
	}
	if cfg.Realtime.ReconnectInitial == 0 {
		cfg.Realtime.ReconnectInitial = 1000
	}
	if cfg.Realtime.ReconnectMax == 0 {
		cfg.Realtime.ReconnectMax = 30000
	}

	if cfg.Approval.FreezePeriod == 0 {
		cfg.Approval.FreezePeriod = 600000
	}
	if cfg.Approval.ChecklistTick == 0 {
		cfg.Approval.ChecklistTick = 1000
	}

	if cfg.Messaging.PollInterval == 0 {
		cfg.Messaging.PollInterval = 15000
	}
	if cfg.Messaging.TypingExpiry == 0 {
		cfg.Messaging.TypingExpiry = 3000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", cfg.API.BaseURL)
	}
	if cfg.API.RetryCount < 0 {
		return fmt.Errorf("api.retry_count must not be negative")
	}

	switch cfg.Auth.TokenStore {
	case TokenStoreFile:
	case TokenStoreRedis:
		if cfg.Redis.Address == "" {
			return fmt.Errorf("redis.address is required for the redis token store")
		}
	default:
		return fmt.Errorf("auth.token_store must be file or redis, got %q", cfg.Auth.TokenStore)
	}

	switch cfg.Realtime.Transport {
	case TransportSimulated, TransportNone:
	case TransportWebSocket:
		if cfg.Realtime.WebSocketURL == "" {
			return fmt.Errorf("realtime.websocket_url is required for the websocket transport")
		}
	case TransportRedis:
		if cfg.Redis.Address == "" {
			return fmt.Errorf("redis.address is required for the redis transport")
		}
	default:
		return fmt.Errorf("realtime.transport %q is not supported", cfg.Realtime.Transport)
	}

	if cfg.Realtime.SimulatorProbability < 0 || cfg.Realtime.SimulatorProbability > 1 {
		return fmt.Errorf("realtime.simulator_probability must be within [0,1]")
	}
	if cfg.Realtime.ReconnectMax < cfg.Realtime.ReconnectInitial {
		return fmt.Errorf("realtime.reconnect_max must be >= realtime.reconnect_initial")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

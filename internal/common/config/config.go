// internal/common/config/config.go
package config

import "time"

// Config is the main console configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	API       APIConfig       `mapstructure:"api"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// APIConfig describes the REST collaborator.
type APIConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	RetryCount int    `mapstructure:"retry_count"`
	Debug      bool   `mapstructure:"debug"`
}

// AuthConfig controls where the bearer token is persisted.
type AuthConfig struct {
	TokenKey   string `mapstructure:"token_key"`
	TokenStore string `mapstructure:"token_store"` // "file" or "redis"
	TokenFile  string `mapstructure:"token_file"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// RealtimeConfig selects and tunes the event source feeding the registry.
type RealtimeConfig struct {
	Transport            string  `mapstructure:"transport"` // simulated, websocket, redis, none
	WebSocketURL         string  `mapstructure:"websocket_url"`
	RedisChannel         string  `mapstructure:"redis_channel"`
	SimulatorInterval    int     `mapstructure:"simulator_interval"` // milliseconds
	SimulatorProbability float64 `mapstructure:"simulator_probability"`
	ReconnectInitial     int     `mapstructure:"reconnect_initial"` // milliseconds
	ReconnectMax         int     `mapstructure:"reconnect_max"`     // milliseconds
	EventCatalog         string  `mapstructure:"event_catalog"`
}

type ApprovalConfig struct {
	FreezePeriod  int `mapstructure:"freeze_period"`  // milliseconds
	ChecklistTick int `mapstructure:"checklist_tick"` // milliseconds
}

type MessagingConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // milliseconds
	TypingExpiry int `mapstructure:"typing_expiry"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// Transport names.
const (
	TransportSimulated = "simulated"
	TransportWebSocket = "websocket"
	TransportRedis     = "redis"
	TransportNone      = "none"
)

// Token store names.
const (
	TokenStoreFile  = "file"
	TokenStoreRedis = "redis"
)

func (c APIConfig) TimeoutDuration() time.Duration {
	return GetDuration(c.Timeout)
}

func (c ApprovalConfig) FreezeDuration() time.Duration {
	return GetDuration(c.FreezePeriod)
}

func (c ApprovalConfig) TickDuration() time.Duration {
	return GetDuration(c.ChecklistTick)
}

func (c MessagingConfig) PollDuration() time.Duration {
	return GetDuration(c.PollInterval)
}

func (c MessagingConfig) TypingDuration() time.Duration {
	return GetDuration(c.TypingExpiry)
}

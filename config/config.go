package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port              string
	Environment       string
	AllowedOrigins    []string
	JWTSecret         string
	BroadcastInterval time.Duration
	SendBuffer        int
	MaxMessageBytes   int
	ICE               ICEConfig
	Redis             RedisConfig
	Database          DatabaseConfig
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	// DSN is a postgres:// URL. Empty disables session history.
	DSN string
}

func (d DatabaseConfig) Enabled() bool {
	return d.DSN != ""
}

// SetDefaults registers every key with its default and binds it to the
// matching environment variable (port -> PORT, redis.host -> REDIS_HOST).
func SetDefaults(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("allowed_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("jwt_secret", "change-me-in-production")
	v.SetDefault("online_broadcast_interval", 5*time.Second)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("max_message_bytes", 64<<10)

	v.SetDefault("ice_servers_json", "")
	v.SetDefault("stun_urls", defaultSTUN)
	v.SetDefault("turn_urls", "")
	v.SetDefault("turn_username", "")
	v.SetDefault("turn_credential", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.dsn", "")
}

// Load reads configuration from v. Call SetDefaults on v first.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:              v.GetString("port"),
		Environment:       strings.ToLower(strings.TrimSpace(v.GetString("environment"))),
		AllowedOrigins:    splitCommaSeparated(v.GetString("allowed_origins")),
		JWTSecret:         v.GetString("jwt_secret"),
		BroadcastInterval: v.GetDuration("online_broadcast_interval"),
		SendBuffer:        v.GetInt("send_buffer"),
		MaxMessageBytes:   v.GetInt("max_message_bytes"),
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			DSN: strings.TrimSpace(v.GetString("database.dsn")),
		},
	}

	servers, err := parseICEServersFromValues(
		v.GetString("ice_servers_json"),
		v.GetString("stun_urls"),
		v.GetString("turn_urls"),
		v.GetString("turn_username"),
		v.GetString("turn_credential"),
	)
	if err != nil {
		return nil, err
	}
	cfg.ICE.Servers = servers

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.BroadcastInterval <= 0 {
		return fmt.Errorf("ONLINE_BROADCAST_INTERVAL must be positive, got %s", c.BroadcastInterval)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	if c.MaxMessageBytes < 1024 {
		return fmt.Errorf("MAX_MESSAGE_BYTES must be at least 1024, got %d", c.MaxMessageBytes)
	}
	if c.IsProduction() && c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

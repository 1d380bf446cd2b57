package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cheildo/nexus-clash-matchmaking/internal/matchmaking"
)

type Config struct {
	HTTPServer  HTTPServerConfig   `mapstructure:"http_server"`
	GRPCServer  GRPCServerConfig   `mapstructure:"grpc_server"`
	Log         LogConfig          `mapstructure:"log"`
	Auth        AuthConfig         `mapstructure:"auth"`
	Redis       RedisConfig        `mapstructure:"redis"`
	Kafka       KafkaConfig        `mapstructure:"kafka"`
	Matchmaking matchmaking.Config `mapstructure:"matchmaking"`
}

type HTTPServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig configures session token verification. An empty secret disables it and
// callers identify themselves in the request payload.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// RedisConfig configures the channels between gateways and the matchmaking service.
// Gateways publish client commands on CommandChannel; the service publishes deliveries
// on RelayChannel.
type RedisConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	RelayChannel   string `mapstructure:"relay_channel"`
	CommandChannel string `mapstructure:"command_channel"`
}

// KafkaConfig configures match lifecycle event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	MatchEventsTopic string   `mapstructure:"match_events_topic"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_server.port", "8080")
	v.SetDefault("http_server.shutdown_timeout", 5*time.Second)
	v.SetDefault("grpc_server.port", "9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.relay_channel", "matchmaking:deliveries")
	v.SetDefault("redis.command_channel", "matchmaking:commands")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.match_events_topic", "match_events")

	d := matchmaking.DefaultConfig()
	v.SetDefault("matchmaking.queue_stale_timeout", d.QueueStaleTimeout)
	v.SetDefault("matchmaking.match_stale_timeout", d.MatchStaleTimeout)
	v.SetDefault("matchmaking.disconnect_grace_window", d.DisconnectGraceWindow)
	v.SetDefault("matchmaking.heartbeat_timeout", d.HeartbeatTimeout)
	v.SetDefault("matchmaking.liveness_probe_interval", d.LivenessProbeInterval)
	v.SetDefault("matchmaking.sweep_interval", d.SweepInterval)
}

// Load reads the named YAML config from the given search paths. Environment variables
// override file values, with "." in keys replaced by "_" (MATCHMAKING_HEARTBEAT_TIMEOUT).
// A missing config file is not an error; defaults and environment apply.
func Load(name string, paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %q: %w", name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Matchmaking = cfg.Matchmaking.WithDefaults()
	return &cfg, nil
}

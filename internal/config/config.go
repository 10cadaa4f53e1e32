package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`

	ConnectRate RateConfig     `mapstructure:"connect_rate"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Presence    PresenceConfig `mapstructure:"presence"`
	Publish     PublishConfig  `mapstructure:"publish"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

// RedisConfig selects the pub/sub backbone. An empty Host runs the
// service as a single process.
type RedisConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
}

func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

type PresenceConfig struct {
	EchoRefresh       bool          `mapstructure:"echo_refresh"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	OriginTTL         time.Duration `mapstructure:"origin_ttl"`
}

type PublishConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default).
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName over the defaults; a missing file is not an
// error. Environment variables override both.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "hanghub-dev-secret")
	v.SetDefault("connect_rate.limit", 30)
	v.SetDefault("connect_rate.interval", "1m")
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "hanghub")
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("presence.echo_refresh", true)
	v.SetDefault("presence.heartbeat_interval", "15s")
	v.SetDefault("presence.origin_ttl", "45s")
	v.SetDefault("publish.initial_interval", "100ms")
	v.SetDefault("publish.max_interval", "5s")

	v.SetEnvPrefix("HANGHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Names used by existing deployments. A bare HOST is exported by many
	// shells and CI runners, so it only counts next to REDIS_ADAPTER_PORT.
	_ = v.BindEnv("redis.port", "HANGHUB_REDIS_PORT", "REDIS_ADAPTER_PORT")
	if os.Getenv("REDIS_ADAPTER_PORT") != "" {
		_ = v.BindEnv("redis.host", "HANGHUB_REDIS_HOST", "HOST")
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.PingPeriod >= cfg.PongWait {
		return nil, fmt.Errorf("ping_period %s must be shorter than pong_wait %s", cfg.PingPeriod, cfg.PongWait)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Bool("redis", cfg.Redis.Enabled()).Msg("config ready")
	return &cfg, nil
}

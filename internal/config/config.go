package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	ReadLimit  int64  `mapstructure:"read_limit"`
	LogLevel   string `mapstructure:"log_level"`

	// room heartbeat
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	PongTimeout  time.Duration `mapstructure:"pong_timeout"`
	ChallengeTTL time.Duration `mapstructure:"challenge_ttl"`
	// PublicOrigin is the scheme://host used in invite URLs; empty derives it per room.
	PublicOrigin string `mapstructure:"public_origin"`
	// TrustedProxies are the IPs or CIDRs whose X-Forwarded-* headers are believed.
	// Empty means the socket peer is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	ConnectLimit    int           `mapstructure:"connect_limit"`
	ConnectInterval time.Duration `mapstructure:"connect_interval"`

	Store StoreConfig `mapstructure:"store"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default).
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName if present; CIPHER_* variables override any key,
// e.g. CIPHER_STORE_DRIVER for store.driver.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("cipher")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("log_level", "info")
	v.SetDefault("ping_period", "30s")
	v.SetDefault("pong_timeout", "60s")
	v.SetDefault("challenge_ttl", "30s")
	v.SetDefault("public_origin", "")
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("connect_limit", 30)
	v.SetDefault("connect_interval", "1m")
	v.SetDefault("store.driver", "bolt")
	v.SetDefault("store.path", "./data/cipher.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_prefix", "cipher:room:")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Err(err).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.PublicOrigin = strings.TrimRight(cfg.PublicOrigin, "/")
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Str("store", cfg.Store.Driver).
		Strs("trusted_proxies", cfg.TrustedProxies).
		Msg("config ready")
	return &cfg, nil
}

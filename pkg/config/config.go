// Package config loads service configuration from file and environment
// via viper. Environment variables use the INVENTORY_ prefix with
// underscores, e.g. INVENTORY_POSTGRES_HOST.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string `mapstructure:"server_port"`
	LogLevel   string `mapstructure:"log_level"`

	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Airtable AirtableConfig `mapstructure:"airtable"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ProxyConfig struct {
	APIKey        string  `mapstructure:"api_key"`
	Endpoint      string  `mapstructure:"endpoint"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	PremiumProxy  bool    `mapstructure:"premium_proxy"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type AirtableConfig struct {
	APIKey        string   `mapstructure:"api_key"`
	BaseID        string   `mapstructure:"base_id"`
	Table         string   `mapstructure:"table"`
	View          string   `mapstructure:"view"`
	ExcludedHosts []string `mapstructure:"excluded_hosts"`
}

type CrawlerConfig struct {
	Workers         int           `mapstructure:"workers"`
	RenderJS        bool          `mapstructure:"render_js"`
	Screenshots     bool          `mapstructure:"screenshots"`
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`

	// Cooldown trips when at least CooldownMinFailures of the last
	// CooldownWindow outcomes failed and they make up half the window.
	CooldownWindow      int           `mapstructure:"cooldown_window"`
	CooldownMinFailures int           `mapstructure:"cooldown_min_failures"`
	CooldownPause       time.Duration `mapstructure:"cooldown_pause"`
}

// Load reads config.yaml from the given directory (when present) plus
// the environment, and applies defaults.
func Load(dir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server_port", "8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "inventory")
	v.SetDefault("postgres.password", "inventory")
	v.SetDefault("postgres.database", "inventory")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("proxy.rate_per_second", 1.0)
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("airtable.table", "Landing Pages")

	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.render_js", true)
	v.SetDefault("crawler.screenshots", false)
	v.SetDefault("crawler.dedup_window", 48*time.Hour)
	v.SetDefault("crawler.page_load_timeout", 60*time.Second)
	v.SetDefault("crawler.cooldown_window", 20)
	v.SetDefault("crawler.cooldown_min_failures", 5)
	v.SetDefault("crawler.cooldown_pause", 5*time.Minute)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("INVENTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Package config loads headlines settings from file, environment and .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HEADLINES_API_KEY.
const EnvPrefix = "HEADLINES"

// Sources accepted by feed.source.
const (
	SourceNewsAPI = "newsapi"
	SourceRSS     = "rss"
)

// Config is the complete application configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Search   SearchConfig   `mapstructure:"search"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// APIConfig configures the NewsAPI client.
type APIConfig struct {
	Key           string        `mapstructure:"key"`
	BaseURL       string        `mapstructure:"base_url" validate:"required,url"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RatePerSecond float64       `mapstructure:"rate_per_second" validate:"gte=0"`
	Burst         int           `mapstructure:"burst" validate:"gte=0"`
}

// FeedConfig selects and sizes the article source.
type FeedConfig struct {
	PageSize int    `mapstructure:"page_size" validate:"gte=1,lte=100"`
	Source   string `mapstructure:"source" validate:"oneof=newsapi rss"`
	RSSURL   string `mapstructure:"rss_url" validate:"required_if=Source rss"`
}

// CacheConfig sizes the optional page cache. Size 0 disables it.
type CacheConfig struct {
	Size int           `mapstructure:"size" validate:"gte=0"`
	TTL  time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// Load reads configuration. cfgFile may be empty, in which case headlines.yaml
// is looked up in the working directory and $HOME/.config/headlines. A .env
// file in the working directory is loaded first if present.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("headlines")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/headlines")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.key", "")
	v.SetDefault("api.base_url", "https://newsapi.org/v2/")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.rate_per_second", 5)
	v.SetDefault("api.burst", 5)

	v.SetDefault("feed.page_size", 10)
	v.SetDefault("feed.source", SourceNewsAPI)
	v.SetDefault("feed.rss_url", "")

	v.SetDefault("cache.size", 0)
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("search.debounce", 500*time.Millisecond)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "headlines.db")

	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

var validate = validator.New()

// Validate checks field constraints. Rules that only matter once a remote
// source is built live in ValidateSource.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// ValidateSource checks what building the configured article source needs.
func (c *Config) ValidateSource() error {
	if c.Feed.Source == SourceNewsAPI && c.API.Key == "" {
		return fmt.Errorf("api.key is required for source %q (set %s_API_KEY)", SourceNewsAPI, EnvPrefix)
	}
	return nil
}

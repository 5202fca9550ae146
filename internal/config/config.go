package config

import (
	"strings"

	"github.com/spf13/viper"
)

// RateLimitPolicy holds the three independently configurable ceilings for
// one limiter instance.
type RateLimitPolicy struct {
	PerMinute int `mapstructure:"per_minute"`
	PerHour   int `mapstructure:"per_hour"`
	Burst     int `mapstructure:"burst"`
}

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	DB            struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Agents struct {
		DefinitionsDir string `mapstructure:"definitions_dir"`
		Watch          bool   `mapstructure:"watch"`
	} `mapstructure:"agents"`
	Executor struct {
		Workers            int `mapstructure:"workers"`
		QueueSize          int `mapstructure:"queue_size"`
		TaskTimeoutSeconds int `mapstructure:"task_timeout_seconds"`
	} `mapstructure:"executor"`
	RateLimit struct {
		RedisEnabled bool            `mapstructure:"redis_enabled"`
		Default      RateLimitPolicy `mapstructure:"default"`
		Auth         RateLimitPolicy `mapstructure:"auth"`
		Read         RateLimitPolicy `mapstructure:"read"`
	} `mapstructure:"rate_limit"`
	Auth struct {
		Issuer       string `mapstructure:"issuer"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_url"`
	} `mapstructure:"auth"`
}

// LoadConfig loads the configuration from a file and the environment.
// A missing config file is not an error; defaults plus environment
// variables are enough to run in dev mode.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// normalize the OIDC issuer url (strip trailing slash if any) so users
	// can paste the full URL from their provider's admin console
	config.Auth.Issuer = strings.TrimRight(strings.TrimSpace(config.Auth.Issuer), "/")

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "DEV")
	viper.SetDefault("dev_mode_bypass", true)

	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.sslmode", "disable")

	viper.SetDefault("redis.addr", "localhost:6379")

	viper.SetDefault("agents.definitions_dir", "agents.d")
	viper.SetDefault("agents.watch", false)

	viper.SetDefault("executor.workers", 4)
	viper.SetDefault("executor.queue_size", 256)
	viper.SetDefault("executor.task_timeout_seconds", 60)

	// Three limiter tiers: default for mutating endpoints, a stricter one
	// for identity-issuing endpoints, a looser one for read-only endpoints.
	viper.SetDefault("rate_limit.redis_enabled", false)
	viper.SetDefault("rate_limit.default.per_minute", 60)
	viper.SetDefault("rate_limit.default.per_hour", 1000)
	viper.SetDefault("rate_limit.default.burst", 10)
	viper.SetDefault("rate_limit.auth.per_minute", 10)
	viper.SetDefault("rate_limit.auth.per_hour", 100)
	viper.SetDefault("rate_limit.auth.burst", 3)
	viper.SetDefault("rate_limit.read.per_minute", 120)
	viper.SetDefault("rate_limit.read.per_hour", 5000)
	viper.SetDefault("rate_limit.read.burst", 20)
}

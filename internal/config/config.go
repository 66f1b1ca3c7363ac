package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN      string
	MaxConns int
}

type AuthConfig struct {
	AccessSecret string
}

type RankingConfig struct {
	BaseURL        string
	MaxAttempts    int
	RequestTimeout time.Duration
	InitialBackoff time.Duration
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Ranking     RankingConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:      v.GetString("DB_DSN"),
			MaxConns: v.GetInt("DB_MAX_CONNS"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Ranking: RankingConfig{
			BaseURL:        v.GetString("RANKING_BASE_URL"),
			MaxAttempts:    v.GetInt("RANKING_MAX_ATTEMPTS"),
			RequestTimeout: v.GetDuration("RANKING_REQUEST_TIMEOUT"),
			InitialBackoff: v.GetDuration("RANKING_INITIAL_BACKOFF"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.Ranking.MaxAttempts == 0 {
		cfg.Ranking.MaxAttempts = 4
	}
	if cfg.Ranking.RequestTimeout == 0 {
		cfg.Ranking.RequestTimeout = 5 * time.Second
	}
	if cfg.Ranking.InitialBackoff == 0 {
		cfg.Ranking.InitialBackoff = 200 * time.Millisecond
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
}

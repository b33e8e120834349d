package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

// Config holds process settings. Values come from defaults, then the YAML
// file named by TOMDASH_CONFIG, then environment variables.
type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	GRPCAddr  string `yaml:"grpc_addr"`
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	PlotlyJS  string `yaml:"plotly_js"`
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`
	JWTTTL    int    `yaml:"jwt_ttl_hours"`
}

const (
	defaultJWTTTLHours = 24
	defaultPlotlyJS    = "https://cdn.plot.ly/plotly-2.35.2.min.js"
)

func defaults() Config {
	return Config{
		HTTPAddr:  ":8080",
		GRPCAddr:  ":9090",
		LogLevel:  "info",
		PlotlyJS:  defaultPlotlyJS,
		JWTSecret: "dev-secret-change-me",
		JWTIssuer: "tomdash",
		JWTTTL:    defaultJWTTTLHours,
	}
}

func LoadConfig() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("TOMDASH_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	overrideString(&cfg.HTTPAddr, "TOMDASH_HTTP_ADDR")
	overrideString(&cfg.GRPCAddr, "TOMDASH_GRPC_ADDR")
	overrideString(&cfg.DBPath, "TOMDASH_DB_PATH")
	overrideString(&cfg.LogLevel, "TOMDASH_LOG_LEVEL")
	overrideString(&cfg.PlotlyJS, "TOMDASH_PLOTLY_JS")
	overrideString(&cfg.JWTSecret, "TOMDASH_JWT_SECRET")
	overrideString(&cfg.JWTIssuer, "TOMDASH_JWT_ISSUER")

	if ttl := strings.TrimSpace(os.Getenv("TOMDASH_JWT_TTL_HOURS")); ttl != "" {
		if n, err := strconv.Atoi(ttl); err == nil {
			cfg.JWTTTL = n
		}
	}
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = defaultJWTTTLHours
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c Config) Auth() AuthConfig {
	return AuthConfig{
		JWTSecret:   c.JWTSecret,
		JWTIssuer:   c.JWTIssuer,
		JWTDuration: time.Duration(c.JWTTTL) * time.Hour,
	}
}

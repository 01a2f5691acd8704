// Package config handles service configuration from a YAML file plus
// environment overrides. Environment always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port        string `yaml:"port"`
	Env         string `yaml:"env"`
	DatabaseURL string `yaml:"databaseUrl"`
	RedisURL    string `yaml:"redisUrl"`

	// DataDir holds the catalogue reference files (cleaning schedules,
	// meter zones, holiday calendar).
	DataDir string `yaml:"dataDir"`

	// UTCOffsetMinutes fixes the jurisdiction clock; all day/hour rule
	// arithmetic happens at this offset, never in system-local time.
	UTCOffsetMinutes int `yaml:"utcOffsetMinutes"`
	SoonThresholdMin int `yaml:"soonThresholdMin"`
	WarnThresholdMin int `yaml:"warnThresholdMin"`

	JWTSecret string `yaml:"jwtSecret"`
	// Token lifetimes in minutes, like every other duration knob here.
	AccessTokenTTLMin  int    `yaml:"accessTokenTtlMin"`
	RefreshTokenTTLMin int    `yaml:"refreshTokenTtlMin"`
	AppleBundleID      string `yaml:"appleBundleId"`

	PushGatewayURL  string `yaml:"pushGatewayUrl"`
	PushMaxAttempts int    `yaml:"pushMaxAttempts"`

	// AdminToken guards the admin endpoints. When empty they are only
	// reachable in development mode.
	AdminToken string `yaml:"adminToken"`

	RateRPS   float64 `yaml:"rateRps"`
	RateBurst int     `yaml:"rateBurst"`
}

// Load reads CONFIG_FILE (if set) and applies environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               "8080",
		Env:                "development",
		DataDir:            "data",
		UTCOffsetMinutes:   -5 * 60, // Eastern standard time
		SoonThresholdMin:   30,
		WarnThresholdMin:   60,
		JWTSecret:          "dev-secret-change-in-production",
		AccessTokenTTLMin:  60,
		RefreshTokenTTLMin: 30 * 24 * 60,
		AppleBundleID:      "com.curbside.app",
		PushGatewayURL:     "https://exp.host/--/api/v2/push/send",
		PushMaxAttempts:    10,
		RateRPS:            5,
		RateBurst:          10,
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.JWTSecret = getEnv("JWT_SECRET_KEY", cfg.JWTSecret)
	cfg.AppleBundleID = getEnv("APPLE_BUNDLE_ID", cfg.AppleBundleID)
	cfg.PushGatewayURL = getEnv("PUSH_GATEWAY_URL", cfg.PushGatewayURL)
	cfg.AdminToken = getEnv("ADMIN_TOKEN", cfg.AdminToken)
	cfg.UTCOffsetMinutes = getIntEnv("UTC_OFFSET_MINUTES", cfg.UTCOffsetMinutes)
	cfg.AccessTokenTTLMin = getIntEnv("ACCESS_TOKEN_TTL_MIN", cfg.AccessTokenTTLMin)
	cfg.RefreshTokenTTLMin = getIntEnv("REFRESH_TOKEN_TTL_MIN", cfg.RefreshTokenTTLMin)
	cfg.PushMaxAttempts = getIntEnv("PUSH_MAX_ATTEMPTS", cfg.PushMaxAttempts)
	cfg.RateBurst = getIntEnv("RATE_BURST", cfg.RateBurst)
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateRPS = f
		}
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// AccessTTL returns the access token lifetime.
func (c *Config) AccessTTL() time.Duration { return time.Duration(c.AccessTokenTTLMin) * time.Minute }

// RefreshTTL returns the refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration { return time.Duration(c.RefreshTokenTTLMin) * time.Minute }

// Location returns the fixed jurisdiction time zone.
func (c *Config) Location() *time.Location {
	name := fmt.Sprintf("UTC%+03d:%02d", c.UTCOffsetMinutes/60, abs(c.UTCOffsetMinutes%60))
	return time.FixedZone(name, c.UTCOffsetMinutes*60)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

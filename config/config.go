package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string   `env:"PORT" envDefault:"5200"`
	DatabaseURL    string   `env:"DATABASE_URL,required,notEmpty"`
	GatewayToken   string   `env:"GAME_SERVICE_TOKEN,required,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	Debug          bool     `env:"DEBUG"`
	Timezone       string   `env:"TIMEZONE" envDefault:"Local"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	GeocoderURL       string `env:"GEOCODER_URL" envDefault:"https://nominatim.openstreetmap.org"`
	GeocoderUserAgent string `env:"GEOCODER_USER_AGENT" envDefault:"wildlife-challenge-service/1.0"`

	ProximityThreshold float64 `env:"PROXIMITY_THRESHOLD_DEG" envDefault:"0.7"`

	RedisURL      string        `env:"REDIS_URL"`
	RegionLockTTL time.Duration `env:"REGION_LOCK_TTL" envDefault:"2m"`

	AMQPURL          string `env:"AMQP_URL"`
	SightingExchange string `env:"SIGHTING_EXCHANGE" envDefault:"wildlife.sightings"`
	SightingQueue    string `env:"SIGHTING_QUEUE" envDefault:"challenge_progress"`
	SightingRouting  string `env:"SIGHTING_ROUTING_KEY" envDefault:"sighting.attributed.#"`

	CloudflareAccountID string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID       string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret   string `env:"R2_ACCESS_KEY_SECRET"`
	R2Bucket            string `env:"R2_BUCKET_NAME"`

	CatalogFile            string        `env:"CATALOG_FILE"`
	CatalogRefreshInterval time.Duration `env:"CATALOG_REFRESH_INTERVAL" envDefault:"10m"`
}

// Load reads an optional .env file, then parses the environment.
// The returned bool reports whether a .env file was found.
func Load() (*Config, bool, error) {
	found := godotenv.Load() == nil

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, found, fmt.Errorf("parse env: %w", err)
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	return &cfg, found, nil
}

// Location resolves Timezone, falling back to the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// R2Enabled reports whether manifest archiving is configured.
func (c *Config) R2Enabled() bool {
	return c.CloudflareAccountID != "" && c.R2Bucket != ""
}

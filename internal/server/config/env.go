package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// parseEnv overlays cfg with values from a .env file (if present) and the
// process environment. A missing .env file is not an error.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	overlay(&cfg.EndpointAddr, "ENDPOINT_ADDR")
	overlay(&cfg.DatabaseDSN, "DATABASE_DSN")
	overlay(&cfg.SecretKey, "SECRET_KEY")
	overlay(&cfg.KeystorePassphrase, "KEYSTORE_PASSPHRASE")
	overlay(&cfg.GeocoderEndpoint, "GEOCODER_ENDPOINT")
	overlay(&cfg.GeocoderAPIKey, "GEOCODER_API_KEY")
	overlay(&cfg.S3RootUser, "S3_ROOT_USER")
	overlay(&cfg.S3RootPassword, "S3_ROOT_PASSWORD")
	overlay(&cfg.S3Bucket, "S3_BUCKET")
	overlay(&cfg.S3Region, "S3_REGION")
	overlay(&cfg.S3BaseEndpoint, "S3_BASE_ENDPOINT")

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults, applies
// ZENO_* environment overrides, and validates the result.
//
// The loading sequence is:
//  1. Parse YAML from path (a missing file is not an error; defaults apply)
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
			}
		case os.IsNotExist(err):
			// Run on defaults plus environment.
		default:
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies ZENO_* environment variables on top of the
// file-based configuration. Secrets are expected to arrive this way.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.HTTPAddr, "ZENO_HTTP_ADDR")
	setString(&cfg.Server.HTTPSAddr, "ZENO_HTTPS_ADDR")
	setDuration(&cfg.Server.UpstreamTimeout, "ZENO_UPSTREAM_TIMEOUT")

	setBool(&cfg.TLS.Enabled, "ZENO_TLS_ENABLED")
	setString(&cfg.TLS.Domain, "ZENO_DOMAIN")
	setBool(&cfg.TLS.ACME.Enabled, "ZENO_ACME_ENABLED")
	setString(&cfg.TLS.ACME.Email, "ZENO_ACME_EMAIL")
	setString(&cfg.TLS.ACME.DirectoryURL, "ZENO_ACME_DIRECTORY_URL")
	setString(&cfg.TLS.ACME.CacheDir, "ZENO_ACME_CACHE_DIR")
	setString(&cfg.TLS.CertFile, "ZENO_TLS_CERT_FILE")
	setString(&cfg.TLS.KeyFile, "ZENO_TLS_KEY_FILE")

	setString(&cfg.Upstreams.AnkrAPIKey, "ZENO_ANKR_API_KEY")
	setString(&cfg.Upstreams.BlastAPIKey, "ZENO_BLAST_API_KEY")

	setBool(&cfg.RateLimit.Enabled, "ZENO_RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.Requests, "ZENO_RATE_LIMIT_REQUESTS")
	setDuration(&cfg.RateLimit.Window, "ZENO_RATE_LIMIT_WINDOW")
	setInt(&cfg.RateLimit.Burst, "ZENO_RATE_LIMIT_BURST")

	setBool(&cfg.Forex.Enabled, "ZENO_FOREX_ENABLED")
	setString(&cfg.Forex.URL, "ZENO_FOREX_URL")
	setString(&cfg.Forex.AppID, "ZENO_OPENEXCHANGE_APP_ID")
	setDuration(&cfg.Forex.RefreshInterval, "ZENO_FOREX_REFRESH_INTERVAL")
	setString(&cfg.Forex.StorePath, "ZENO_FOREX_STORE_PATH")

	setString(&cfg.Telemetry.Logging.Level, "ZENO_LOG_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "ZENO_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

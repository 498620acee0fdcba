package config

import (
	"fmt"
	"net"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for errors that would make the gateway
// misbehave at runtime. It is called after defaults and overrides are applied,
// so zero values it rejects are genuine operator mistakes.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateTLS(&cfg.TLS); err != nil {
		return err
	}
	if err := validateRateLimit(&cfg.RateLimit); err != nil {
		return err
	}
	if err := validateForex(&cfg.Forex); err != nil {
		return err
	}
	return validateTelemetry(&cfg.Telemetry)
}

func validateServer(cfg *ServerConfig) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("server: http_addr must not be empty")
	}
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("server: upstream_timeout must be positive")
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("server: max_body_bytes must be positive")
	}
	return nil
}

func validateTLS(cfg *TLSConfig) error {
	if !cfg.Enabled {
		return nil
	}

	// The process must fail fast when TLS is on but no domain is configured.
	if cfg.Domain == "" {
		return fmt.Errorf("tls: domain is required when tls is enabled")
	}

	if cfg.ACME.Enabled {
		if cfg.ACME.Email == "" {
			return fmt.Errorf("tls: acme.email is required when acme is enabled")
		}
		if cfg.ACME.CacheDir == "" {
			return fmt.Errorf("tls: acme.cache_dir must not be empty")
		}
		if _, err := cron.ParseStandard(cfg.ACME.CheckSchedule); err != nil {
			return fmt.Errorf("tls: invalid acme.check_schedule %q: %w", cfg.ACME.CheckSchedule, err)
		}
		return nil
	}

	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return fmt.Errorf("tls: cert_file and key_file are required when acme is disabled")
	}
	return nil
}

func validateRateLimit(cfg *RateLimitConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Requests <= 0 {
		return fmt.Errorf("rate_limit: requests must be positive")
	}
	if cfg.Window <= 0 {
		return fmt.Errorf("rate_limit: window must be positive")
	}
	if cfg.Burst < 0 {
		return fmt.Errorf("rate_limit: burst must not be negative")
	}
	if cfg.IdleTTL <= 0 {
		return fmt.Errorf("rate_limit: idle_ttl must be positive")
	}
	return nil
}

func validateForex(cfg *ForexConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.URL == "" {
		return fmt.Errorf("forex: url must not be empty")
	}
	if cfg.RefreshInterval <= 0 {
		return fmt.Errorf("forex: refresh_interval must be positive")
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry: invalid logging level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry: invalid logging format %q", cfg.Logging.Format)
	}
	for _, cidr := range cfg.Metrics.AllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("telemetry: invalid metrics cidr %q: %w", cidr, err)
		}
	}
	return nil
}

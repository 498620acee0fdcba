package config

import "time"

// Default values applied to zero-valued fields before validation.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultHTTPSAddr       = ":8443"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxBodyBytes    = 1_000_000

	DefaultACMEDirectoryURL  = "https://acme-v02.api.letsencrypt.org/directory"
	DefaultACMECacheDir      = "certs"
	DefaultACMERenewBefore   = 30 * 24 * time.Hour
	DefaultACMECheckSchedule = "0 3 * * *"

	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = time.Minute
	DefaultRateLimitIdleTTL  = 15 * time.Minute
	DefaultRateLimitSweep    = 2 * time.Minute

	DefaultForexURL      = "https://openexchangerates.org/api/latest.json"
	DefaultForexInterval = time.Hour
	DefaultForexTimeout  = 15 * time.Second
)

// DefaultChains is the chain set registered for each RPC provider.
var DefaultChains = []string{"eth", "bsc", "arbitrum", "optimism", "base", "polygon"}

// ApplyDefaults fills zero-valued fields with their defaults.
// It does not overwrite anything the operator set explicitly.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Server.HTTPSAddr == "" {
		cfg.Server.HTTPSAddr = DefaultHTTPSAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.UpstreamTimeout == 0 {
		cfg.Server.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Content-Type", "Authorization"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = 3600
	}

	if cfg.TLS.ACME.DirectoryURL == "" {
		cfg.TLS.ACME.DirectoryURL = DefaultACMEDirectoryURL
	}
	if cfg.TLS.ACME.CacheDir == "" {
		cfg.TLS.ACME.CacheDir = DefaultACMECacheDir
	}
	if cfg.TLS.ACME.RenewBefore == 0 {
		cfg.TLS.ACME.RenewBefore = DefaultACMERenewBefore
	}
	if cfg.TLS.ACME.CheckSchedule == "" {
		cfg.TLS.ACME.CheckSchedule = DefaultACMECheckSchedule
	}

	if len(cfg.Upstreams.Chains) == 0 {
		cfg.Upstreams.Chains = append([]string(nil), DefaultChains...)
	}

	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = DefaultRateLimitRequests
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = DefaultRateLimitWindow
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = cfg.RateLimit.Requests
	}
	if cfg.RateLimit.IdleTTL == 0 {
		cfg.RateLimit.IdleTTL = DefaultRateLimitIdleTTL
	}
	if cfg.RateLimit.SweepInterval == 0 {
		cfg.RateLimit.SweepInterval = DefaultRateLimitSweep
	}

	if cfg.Forex.URL == "" {
		cfg.Forex.URL = DefaultForexURL
	}
	if cfg.Forex.RefreshInterval == 0 {
		cfg.Forex.RefreshInterval = DefaultForexInterval
	}
	if cfg.Forex.FetchTimeout == 0 {
		cfg.Forex.FetchTimeout = DefaultForexTimeout
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	}
}

// Default returns a fully defaulted configuration with the core
// subsystems switched on.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.RateLimit.Enabled = true
	cfg.Forex.Enabled = true
	cfg.Telemetry.Metrics.Enabled = true
	return cfg
}

// Package config defines the gateway configuration model and its loading,
// defaulting, and validation logic.
//
// Configuration is read from a YAML file, then overridden by ZENO_* environment
// variables, then validated. Environment variables always win so that secrets
// (upstream API keys, the forex app id) never have to live in the file.
package config

import "time"

// Config is the root configuration for the gateway.
type Config struct {
	// Server contains listener and request-handling settings.
	Server ServerConfig `yaml:"server"`

	// TLS contains HTTPS and certificate lifecycle settings.
	TLS TLSConfig `yaml:"tls"`

	// Upstreams contains the RPC and indexer provider credentials.
	Upstreams UpstreamsConfig `yaml:"upstreams"`

	// RateLimit contains per-client admission control settings.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Forex contains the exchange-rate refresher settings.
	Forex ForexConfig `yaml:"forex"`

	// Telemetry contains logging and metrics settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	// HTTPAddr is the plaintext listen address (e.g., ":8080").
	// The plaintext listener is always started: it serves ACME challenges
	// when HTTPS is enabled, and the full gateway when it is not.
	HTTPAddr string `yaml:"http_addr"`

	// HTTPSAddr is the TLS listen address (e.g., ":8443").
	HTTPSAddr string `yaml:"https_addr"`

	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds the graceful drain on shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// UpstreamTimeout bounds a single proxied upstream call.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the size of proxied request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// AllowedHosts is the Host-header allow-list. Requests whose Host is
	// not in this list receive 403. Empty disables the filter.
	AllowedHosts []string `yaml:"allowed_hosts"`

	// CORS configures cross-origin headers on responses.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains cross-origin resource sharing settings.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// TLSConfig contains HTTPS settings. Exactly one of ACME or static cert
// files is used when Enabled is true; plaintext mode ignores all of it.
type TLSConfig struct {
	// Enabled turns the HTTPS listener on.
	Enabled bool `yaml:"enabled"`

	// Domain is the public domain the gateway terminates TLS for.
	// Required when Enabled is true.
	Domain string `yaml:"domain"`

	// ACME configures automated certificate issuance and renewal.
	ACME ACMEConfig `yaml:"acme"`

	// CertFile and KeyFile point at operator-provisioned PEM files.
	// Used when ACME is disabled; the files are watched and reloaded
	// when they change.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ACMEConfig contains settings for the certificate lifecycle manager.
type ACMEConfig struct {
	// Enabled turns automated issuance on. When false and TLS is enabled,
	// CertFile/KeyFile are used instead.
	Enabled bool `yaml:"enabled"`

	// Email is the ACME account contact.
	Email string `yaml:"email"`

	// DirectoryURL is the ACME directory endpoint. Defaults to
	// Let's Encrypt production.
	DirectoryURL string `yaml:"directory_url"`

	// CacheDir is where certificates and the account key are persisted.
	CacheDir string `yaml:"cache_dir"`

	// RenewBefore is how long before expiry renewal starts.
	RenewBefore time.Duration `yaml:"renew_before"`

	// CheckSchedule is the cron expression for the renewal check.
	CheckSchedule string `yaml:"check_schedule"`
}

// UpstreamsConfig contains upstream provider credentials and routing data.
type UpstreamsConfig struct {
	// AnkrAPIKey authenticates requests to rpc.ankr.com. Endpoints for
	// Ankr chains and the multichain indexer are only registered when set.
	AnkrAPIKey string `yaml:"ankr_api_key"`

	// BlastAPIKey authenticates requests to *.blastapi.io.
	BlastAPIKey string `yaml:"blast_api_key"`

	// Chains is the list of chains registered per RPC provider.
	Chains []string `yaml:"chains"`
}

// RateLimitConfig contains per-client-IP admission control settings.
// Admission uses a token bucket: Requests per Window refill rate with
// bursts up to Burst.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Requests is the sustained quota per Window.
	Requests int `yaml:"requests"`

	// Window is the quota window.
	Window time.Duration `yaml:"window"`

	// Burst is the bucket capacity. Defaults to Requests.
	Burst int `yaml:"burst"`

	// IdleTTL is how long an inactive client's bucket is kept.
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// SweepInterval is how often idle buckets are evicted.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ForexConfig contains exchange-rate refresher settings.
type ForexConfig struct {
	Enabled bool `yaml:"enabled"`

	// URL is the quote source endpoint. The app id is appended as the
	// app_id query parameter.
	URL string `yaml:"url"`

	// AppID authenticates against the quote source.
	AppID string `yaml:"app_id"`

	// RefreshInterval is the fetch period.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// StorePath is the SQLite file persisting the last payload across
	// restarts. Empty disables persistence.
	StorePath string `yaml:"store_path"`

	// FetchTimeout bounds a single fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// TelemetryConfig contains logging and metrics settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes all metric names. Empty keeps the bare names
	// (http_requests_total etc.).
	Namespace string `yaml:"namespace"`

	// AllowedCIDRs restricts the scrape endpoint to these networks.
	// Empty allows loopback only; ["0.0.0.0/0"] disables the guard.
	AllowedCIDRs []string `yaml:"allowed_cidrs"`

	// DurationBuckets are the histogram buckets in seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"zeno-hq/gateway/pkg/config"
	"zeno-hq/gateway/pkg/forex"
	"zeno-hq/gateway/pkg/gateway"
	"zeno-hq/gateway/pkg/limits/ratelimit"
	"zeno-hq/gateway/pkg/security/acme"
	tlsreload "zeno-hq/gateway/pkg/security/tls"
	"zeno-hq/gateway/pkg/server"
	"zeno-hq/gateway/pkg/telemetry/health"
	"zeno-hq/gateway/pkg/telemetry/logging"
	"zeno-hq/gateway/pkg/telemetry/metrics"
)

var runFlags struct {
	httpAddr string
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway",
	Long: `Start the gateway with the specified configuration.

The gateway terminates TLS, rate limits per client IP, and proxies RPC and
indexer traffic to the configured upstream providers.

Examples:
  # Start with default config
  zenogate run

  # Start with custom config
  zenogate run --config /etc/zenogate/config.yaml

  # Override the plaintext listen address
  zenogate run --listen 0.0.0.0:8080

  # Validate config without starting
  zenogate run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.httpAddr, "listen", "l", "", "override plaintext listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runFlags.httpAddr != "" {
		cfg.Server.HTTPAddr = runFlags.httpAddr
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	logging.Setup(cfg.Telemetry.Logging,
		cfg.Upstreams.AnkrAPIKey,
		cfg.Upstreams.BlastAPIKey,
		cfg.Forex.AppID,
	)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Zenogate v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	checker := health.New(0)

	// Rate limiter with its idle-bucket sweeper
	limiter := ratelimit.NewIPLimiter(cfg.RateLimit)
	if cfg.RateLimit.Enabled {
		go limiter.Run(ctx)
	}

	// Route table and forwarder
	backends := gateway.NewBackends(cfg.Upstreams, nil)
	forwarder := gateway.NewForwarder(cfg.Server.UpstreamTimeout, cfg.Server.MaxBodyBytes, collector.Gateway(), nil)
	router := gateway.NewRouter(backends, forwarder)
	checker.RegisterCheck("routes", func(ctx context.Context) error {
		if backends.Len() == 0 {
			return fmt.Errorf("no upstream routes configured")
		}
		return nil
	})
	fmt.Printf("✓ Route table built (%d routes)\n", backends.Len())

	// Forex refresher
	forexCache := forex.NewCache()
	forexHandler := forex.NewHandler(forexCache, nil)
	if cfg.Forex.Enabled {
		var store *forex.Store
		if cfg.Forex.StorePath != "" {
			store, err = forex.OpenStore(cfg.Forex.StorePath)
			if err != nil {
				return fmt.Errorf("failed to open forex store: %w", err)
			}
			defer store.Close()
		}

		refresher, err := forex.NewRefresher(cfg.Forex, forexCache, store, collector.Gateway(), nil)
		if err != nil {
			return fmt.Errorf("failed to create forex refresher: %w", err)
		}
		go refresher.Run(ctx)

		checker.RegisterCheck("forex", func(ctx context.Context) error {
			if _, ok := forexCache.Current(); !ok {
				return fmt.Errorf("no forex snapshot yet")
			}
			return nil
		})
		fmt.Println("✓ Forex refresher started")
	}

	// Certificates
	var certProvider server.CertProvider
	var acmeChallenge func(http.Handler) http.Handler
	var ensureCert func(context.Context) error

	if cfg.TLS.Enabled {
		if cfg.TLS.ACME.Enabled {
			manager, err := acme.NewManager(cfg.TLS.Domain, cfg.TLS.ACME, collector.Gateway())
			if err != nil {
				return fmt.Errorf("failed to create certificate manager: %w", err)
			}
			if err := manager.Start(ctx); err != nil {
				return fmt.Errorf("failed to start certificate manager: %w", err)
			}

			certProvider = manager
			acmeChallenge = manager.HTTPHandler
			ensureCert = manager.EnsureCertificate
			checker.RegisterCheck("certificate", func(ctx context.Context) error {
				return manager.Healthy()
			})
			fmt.Printf("✓ Certificate manager started (domain %s)\n", cfg.TLS.Domain)
		} else {
			reloader := tlsreload.NewReloader(cfg.TLS.CertFile, cfg.TLS.KeyFile, nil)
			if err := reloader.Start(ctx); err != nil {
				return fmt.Errorf("failed to load certificates: %w", err)
			}

			certProvider = reloader
			checker.RegisterCheck("certificate", func(ctx context.Context) error {
				return reloader.Healthy()
			})
			fmt.Printf("✓ Certificates loaded (%s)\n", cfg.TLS.CertFile)
		}
	}

	srv, err := server.NewServer(server.Options{
		Config:        cfg,
		Metrics:       collector,
		Limiter:       limiter,
		Router:        router,
		Forex:         forexHandler,
		Checker:       checker,
		CertProvider:  certProvider,
		ACMEChallenge: acmeChallenge,
		Version:       Version,
		Commit:        GitCommit,
		BuildTime:     BuildDate,
	})
	if err != nil {
		return err
	}

	// The initial ACME order needs the plaintext listener up to answer
	// challenges, so it runs after Start. Failures keep retrying with
	// backoff; handshakes fail closed until a certificate exists.
	if ensureCert != nil {
		go func() {
			if err := ensureCert(ctx); err != nil {
				slog.Error("certificate acquisition failed", "error", err)
			}
		}()
	}

	fmt.Printf("✓ Listening on %s", cfg.Server.HTTPAddr)
	if cfg.TLS.Enabled {
		fmt.Printf(" (https %s)", cfg.Server.HTTPSAddr)
	}
	fmt.Println("\n\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}

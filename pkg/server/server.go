package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"zeno-hq/gateway/pkg/config"
	"zeno-hq/gateway/pkg/forex"
	"zeno-hq/gateway/pkg/gateway"
	"zeno-hq/gateway/pkg/gateway/middleware"
	"zeno-hq/gateway/pkg/limits/ratelimit"
	"zeno-hq/gateway/pkg/telemetry/health"
	"zeno-hq/gateway/pkg/telemetry/metrics"
)

// CertProvider resolves the certificate per TLS handshake. Both the
// ACME manager and the static reloader satisfy it.
type CertProvider interface {
	GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error)
}

// Options holds the wired components the server serves.
type Options struct {
	Config  *config.Config
	Metrics *metrics.Collector
	Limiter *ratelimit.IPLimiter
	Router  *gateway.Router
	Forex   *forex.Handler
	Checker *health.Checker

	// CertProvider is required when TLS is enabled.
	CertProvider CertProvider

	// ACMEChallenge wraps the plaintext handler to answer HTTP-01
	// challenges. Nil when ACME is disabled.
	ACMEChallenge func(fallback http.Handler) http.Handler

	Version   string
	Commit    string
	BuildTime string
}

// Server runs the gateway's listeners and drains them on shutdown.
type Server struct {
	opts Options
	cfg  *config.Config

	httpServer   *http.Server
	httpsServer  *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server from wired components.
func NewServer(opts Options) (*Server, error) {
	if opts.Config.TLS.Enabled && opts.CertProvider == nil {
		return nil, fmt.Errorf("tls is enabled but no certificate provider is wired")
	}
	return &Server{
		opts:         opts,
		cfg:          opts.Config,
		shutdownChan: make(chan struct{}),
	}, nil
}

// Start starts the listeners and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler, err := s.setupRoutes()
	if err != nil {
		return err
	}

	errChan := make(chan error, 2)

	if s.cfg.TLS.Enabled {
		s.httpsServer = s.newHTTPServer(s.cfg.Server.HTTPSAddr, handler)
		s.httpsServer.TLSConfig = &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: s.opts.CertProvider.GetCertificate,
		}

		s.httpServer = s.newHTTPServer(s.cfg.Server.HTTPAddr, s.plaintextHandler())

		go func() {
			slog.Info("starting https listener", "address", s.cfg.Server.HTTPSAddr, "domain", s.cfg.TLS.Domain)
			if err := s.httpsServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				errChan <- fmt.Errorf("https server error: %w", err)
			}
		}()
	} else {
		s.httpServer = s.newHTTPServer(s.cfg.Server.HTTPAddr, handler)
	}

	go func() {
		slog.Info("starting http listener",
			"address", s.cfg.Server.HTTPAddr,
			"tls_enabled", s.cfg.TLS.Enabled,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.Shutdown(context.Background())
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests on both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.cfg.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		for _, srv := range []*http.Server{s.httpsServer, s.httpServer} {
			if srv == nil {
				continue
			}
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during listener shutdown", "error", err)
				shutdownErr = fmt.Errorf("listener shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway stopped")
	})

	return shutdownErr
}

func (s *Server) newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}
}

// setupRoutes builds the gateway mux and middleware chain.
func (s *Server) setupRoutes() (http.Handler, error) {
	mux := http.NewServeMux()

	s.opts.Router.Register(mux)

	if s.cfg.Forex.Enabled {
		mux.HandleFunc("/forex", s.opts.Forex.ServeRates)
		mux.HandleFunc("/forex/raw", s.opts.Forex.ServeRaw)
	}

	mux.HandleFunc("/health", health.LivenessHandler())
	mux.HandleFunc("/ready", s.opts.Checker.ReadinessHandler())
	mux.HandleFunc("/version", health.VersionHandler(s.opts.Version, s.opts.Commit, s.opts.BuildTime))

	var handler http.Handler = mux

	if s.cfg.Telemetry.Metrics.Enabled {
		mux.Handle("/metrics", s.opts.Metrics.Handler())

		guard, err := middleware.MetricsGuard(s.cfg.Telemetry.Metrics.AllowedCIDRs)
		if err != nil {
			return nil, err
		}
		handler = guard(handler)
	}

	if s.cfg.RateLimit.Enabled {
		handler = middleware.RateLimit(s.opts.Limiter, s.opts.Metrics.Gateway())(handler)
	}

	handler = middleware.CORS(s.cfg.Server.CORS)(handler)
	handler = middleware.HostFilter(s.cfg.Server.AllowedHosts)(handler)

	if s.cfg.Telemetry.Metrics.Enabled {
		handler = middleware.Metrics(s.opts.Metrics.Gateway())(handler)
	}

	handler = middleware.Logging(handler)
	handler = middleware.ClientIP(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)

	return handler, nil
}

// plaintextHandler serves the plaintext listener while HTTPS carries
// the gateway: ACME challenges are answered, everything else is
// redirected.
func (s *Server) plaintextHandler() http.Handler {
	redirect := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		target := "https://" + host
		if _, port, err := net.SplitHostPort(s.cfg.Server.HTTPSAddr); err == nil && port != "443" {
			target += ":" + port
		}
		target += r.URL.RequestURI()

		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})

	if s.opts.ACMEChallenge != nil {
		return s.opts.ACMEChallenge(redirect)
	}
	return redirect
}

// Handler returns the assembled gateway handler, for tests.
func (s *Server) Handler() (http.Handler, error) {
	return s.setupRoutes()
}

// IsRunning reports whether Start has been called and not yet drained.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

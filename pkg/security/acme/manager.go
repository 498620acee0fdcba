package acme

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"zeno-hq/gateway/pkg/config"

	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/acme"
)

// Renewals receives certificate order outcomes, satisfied by the metrics
// collector.
type Renewals interface {
	RecordACMERenewal(result string)
}

// Manager owns the TLS certificate for a single domain.
//
// TLS handshakes call GetCertificate, which never hands out an expired
// certificate: once the certificate is past expiry and renewal keeps
// failing, handshakes fail closed until an order succeeds.
type Manager struct {
	domain       string
	email        string
	directoryURL string
	renewBefore  time.Duration
	schedule     string

	cache      *DirCache
	challenges *challengeStore

	mu     sync.RWMutex
	client *acme.Client
	cert   *tls.Certificate // Leaf is always populated
	state  State

	// inFlight keeps a scheduled check and EnsureCertificate from
	// running concurrent order flows against the CA.
	inFlight atomic.Bool

	cron    *cron.Cron
	metrics Renewals
	logger  *slog.Logger

	// Retry policy for failed orders.
	retryBase     time.Duration
	retryMax      time.Duration
	retryAttempts int

	// now is replaceable in tests to drive expiry logic.
	now func() time.Time
}

// NewManager creates a certificate lifecycle manager for domain.
// metrics may be nil.
func NewManager(domain string, cfg config.ACMEConfig, metrics Renewals) (*Manager, error) {
	if domain == "" {
		return nil, fmt.Errorf("acme: domain must not be empty")
	}

	cache, err := NewDirCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	return &Manager{
		domain:        domain,
		email:         cfg.Email,
		directoryURL:  cfg.DirectoryURL,
		renewBefore:   cfg.RenewBefore,
		schedule:      cfg.CheckSchedule,
		cache:         cache,
		challenges:    newChallengeStore(),
		state:         StateUninitialized,
		cron:          cron.New(),
		metrics:       metrics,
		logger:        slog.Default().With("component", "acme"),
		retryBase:     time.Minute,
		retryMax:      time.Hour,
		retryAttempts: 5,
		now:           time.Now,
	}, nil
}

// Start loads any cached certificate and schedules the recurring renewal
// check. It does not place an order; call EnsureCertificate for that once
// the plaintext listener is serving challenges.
func (m *Manager) Start(ctx context.Context) error {
	cert, err := m.cache.LoadCertificate(m.domain)
	switch {
	case err == nil:
		m.mu.Lock()
		m.cert = cert
		m.state = StateValid
		m.mu.Unlock()
		m.logger.Info("loaded cached certificate",
			"domain", m.domain,
			"not_after", cert.Leaf.NotAfter.Format(time.RFC3339),
		)
	case errors.Is(err, os.ErrNotExist):
		// First run for this domain.
	default:
		return err
	}

	if _, err := m.cron.AddFunc(m.schedule, func() { m.checkAndRenew(ctx) }); err != nil {
		return fmt.Errorf("acme: failed to schedule renewal check: %w", err)
	}
	m.cron.Start()

	go func() {
		<-ctx.Done()
		m.cron.Stop()
	}()

	return nil
}

// EnsureCertificate obtains a usable certificate. It returns nil immediately
// when a cached certificate is valid, otherwise it places an ACME order,
// retrying with backoff a bounded number of times. A failed bootstrap leaves
// the manager in StateFailed; the scheduled renewal check retries later.
//
// The caller must already be serving HTTPHandler on the plaintext listener,
// or the CA's challenge fetch cannot succeed.
func (m *Manager) EnsureCertificate(ctx context.Context) error {
	m.mu.RLock()
	usable := m.cert != nil && m.now().Before(m.cert.Leaf.NotAfter)
	m.mu.RUnlock()
	if usable {
		return nil
	}

	if !m.inFlight.CompareAndSwap(false, true) {
		return fmt.Errorf("acme: an order for %q is already in flight", m.domain)
	}
	defer m.inFlight.Store(false)

	m.setState(StatePending)
	if err := m.obtainWithRetry(ctx); err != nil {
		m.setState(StateFailed)
		return err
	}
	return nil
}

// GetCertificate implements tls.Config.GetCertificate. It returns the
// current certificate, or an error when none is valid (handshake fails
// closed).
func (m *Manager) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cert == nil {
		return nil, fmt.Errorf("acme: no certificate available for %q", m.domain)
	}
	if !m.now().Before(m.cert.Leaf.NotAfter) {
		return nil, fmt.Errorf("acme: certificate for %q expired %s",
			m.domain, m.cert.Leaf.NotAfter.Format(time.RFC3339))
	}
	return m.cert, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Healthy reports whether a valid certificate is loaded, for readiness
// checks.
func (m *Manager) Healthy() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cert == nil {
		return fmt.Errorf("no certificate obtained (state %s)", m.state)
	}
	if !m.now().Before(m.cert.Leaf.NotAfter) {
		return fmt.Errorf("certificate expired (state %s)", m.state)
	}
	return nil
}

// needsRenewal reports whether expiry falls inside the renewal window.
func (m *Manager) needsRenewal() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cert == nil {
		return true
	}
	return m.now().After(m.cert.Leaf.NotAfter.Add(-m.renewBefore))
}

// checkAndRenew is the scheduled renewal check. Cron runs each firing in its
// own goroutine, so a check that is still retrying must not be joined by the
// next one.
func (m *Manager) checkAndRenew(ctx context.Context) {
	if !m.needsRenewal() {
		return
	}

	if !m.inFlight.CompareAndSwap(false, true) {
		m.logger.Warn("renewal already in progress, skipping check", "domain", m.domain)
		return
	}
	defer m.inFlight.Store(false)

	m.setState(StateRenewing)
	m.logger.Info("certificate inside renewal window, renewing", "domain", m.domain)

	if err := m.obtainWithRetry(ctx); err != nil {
		m.logger.Error("certificate renewal failed", "domain", m.domain, "error", err)

		// Keep serving the previous certificate until it truly expires;
		// only then do handshakes fail closed.
		m.mu.Lock()
		if m.cert == nil || !m.now().Before(m.cert.Leaf.NotAfter) {
			m.state = StateFailed
		} else {
			m.state = StateValid
		}
		m.mu.Unlock()
	}
}

// obtainWithRetry runs orders with exponential backoff. Attempts are bounded
// so one invocation cannot block forever; callers surface the failure and the
// scheduled check tries again later.
func (m *Manager) obtainWithRetry(ctx context.Context) error {
	delay := m.retryBase

	var err error
	for attempt := 1; attempt <= m.retryAttempts; attempt++ {
		err = m.obtain(ctx)
		if err == nil {
			if m.metrics != nil {
				m.metrics.RecordACMERenewal("success")
			}
			return nil
		}

		if m.metrics != nil {
			m.metrics.RecordACMERenewal("failure")
		}
		m.logger.Warn("certificate order failed, backing off",
			"domain", m.domain,
			"attempt", attempt,
			"retry_in", delay.String(),
			"error", err,
		)

		if attempt == m.retryAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("acme: gave up ordering certificate for %q: %w", m.domain, err)
		}

		delay *= 2
		if delay > m.retryMax {
			delay = m.retryMax
		}
	}

	return fmt.Errorf("acme: ordering certificate for %q failed after %d attempts: %w",
		m.domain, m.retryAttempts, err)
}

// obtain runs one complete ACME order: authorize, answer the HTTP-01
// challenge, finalize, persist, and swap the certificate in.
func (m *Manager) obtain(ctx context.Context) error {
	client, err := m.acmeClient(ctx)
	if err != nil {
		return err
	}

	order, err := client.AuthorizeOrder(ctx, acme.DomainIDs(m.domain))
	if err != nil {
		return fmt.Errorf("authorize order: %w", err)
	}

	for _, authzURL := range order.AuthzURLs {
		if err := m.fulfillAuthorization(ctx, client, authzURL); err != nil {
			return err
		}
	}

	order, err = client.WaitOrder(ctx, order.URI)
	if err != nil {
		return fmt.Errorf("wait order: %w", err)
	}

	certKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate certificate key: %w", err)
	}

	csr, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: m.domain},
		DNSNames: []string{m.domain},
	}, certKey)
	if err != nil {
		return fmt.Errorf("create csr: %w", err)
	}

	der, _, err := client.CreateOrderCert(ctx, order.FinalizeURL, csr, true)
	if err != nil {
		return fmt.Errorf("finalize order: %w", err)
	}

	leaf, err := x509.ParseCertificate(der[0])
	if err != nil {
		return fmt.Errorf("parse issued certificate: %w", err)
	}

	if err := m.cache.PutCertificate(m.domain, der, certKey); err != nil {
		return err
	}

	cert := &tls.Certificate{
		Certificate: der,
		PrivateKey:  certKey,
		Leaf:        leaf,
	}

	m.mu.Lock()
	m.cert = cert
	m.state = StateValid
	m.mu.Unlock()

	m.logger.Info("certificate issued",
		"domain", m.domain,
		"not_after", leaf.NotAfter.Format(time.RFC3339),
	)
	return nil
}

// fulfillAuthorization answers the HTTP-01 challenge for one authorization.
func (m *Manager) fulfillAuthorization(ctx context.Context, client *acme.Client, authzURL string) error {
	authz, err := client.GetAuthorization(ctx, authzURL)
	if err != nil {
		return fmt.Errorf("get authorization: %w", err)
	}
	if authz.Status == acme.StatusValid {
		return nil
	}

	var challenge *acme.Challenge
	for _, c := range authz.Challenges {
		if c.Type == "http-01" {
			challenge = c
			break
		}
	}
	if challenge == nil {
		return fmt.Errorf("authorization for %q offers no http-01 challenge", m.domain)
	}

	keyAuth, err := client.HTTP01ChallengeResponse(challenge.Token)
	if err != nil {
		return fmt.Errorf("challenge response: %w", err)
	}

	path := client.HTTP01ChallengePath(challenge.Token)
	m.challenges.put(path, keyAuth)
	defer m.challenges.delete(path)

	if _, err := client.Accept(ctx, challenge); err != nil {
		return fmt.Errorf("accept challenge: %w", err)
	}
	if _, err := client.WaitAuthorization(ctx, authz.URI); err != nil {
		return fmt.Errorf("wait authorization: %w", err)
	}
	return nil
}

// acmeClient lazily builds the ACME client and registers the account.
func (m *Manager) acmeClient(ctx context.Context) (*acme.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	accountKey, err := m.cache.AccountKey()
	if err != nil {
		return nil, err
	}

	client := &acme.Client{
		Key:          accountKey,
		DirectoryURL: m.directoryURL,
	}

	account := &acme.Account{}
	if m.email != "" {
		account.Contact = []string{"mailto:" + m.email}
	}
	if _, err := client.Register(ctx, account, acme.AcceptTOS); err != nil &&
		!errors.Is(err, acme.ErrAccountAlreadyExists) {
		return nil, fmt.Errorf("register account: %w", err)
	}

	m.client = client
	return client, nil
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

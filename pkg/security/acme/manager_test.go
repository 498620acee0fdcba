package acme

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zeno-hq/gateway/pkg/config"
)

func testACMEConfig(t *testing.T) config.ACMEConfig {
	t.Helper()
	return config.ACMEConfig{
		Enabled:       true,
		Email:         "ops@example.com",
		DirectoryURL:  "https://acme.invalid/directory",
		CacheDir:      t.TempDir(),
		RenewBefore:   30 * 24 * time.Hour,
		CheckSchedule: "0 3 * * *",
	}
}

// selfSignedCert issues a throwaway certificate for domain expiring at
// notAfter.
func selfSignedCert(t *testing.T, domain string, notAfter time.Time) ([][]byte, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{domain},
		NotBefore:    notAfter.Add(-90 * 24 * time.Hour),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}

	return [][]byte{der}, key
}

func managerWithCert(t *testing.T, notAfter time.Time, now time.Time) *Manager {
	t.Helper()

	cfg := testACMEConfig(t)
	m, err := NewManager("gw.example.com", cfg, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	m.now = func() time.Time { return now }

	der, key := selfSignedCert(t, "gw.example.com", notAfter)
	leaf, err := x509.ParseCertificate(der[0])
	if err != nil {
		t.Fatalf("Failed to parse test certificate: %v", err)
	}
	m.cert = &tls.Certificate{Certificate: der, PrivateKey: key, Leaf: leaf}
	m.state = StateValid

	return m
}

func TestDirCache_CertificateRoundTrip(t *testing.T) {
	cache, err := NewDirCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirCache failed: %v", err)
	}

	notAfter := time.Now().Add(60 * 24 * time.Hour)
	der, key := selfSignedCert(t, "gw.example.com", notAfter)

	if err := cache.PutCertificate("gw.example.com", der, key); err != nil {
		t.Fatalf("PutCertificate failed: %v", err)
	}

	cert, err := cache.LoadCertificate("gw.example.com")
	if err != nil {
		t.Fatalf("LoadCertificate failed: %v", err)
	}
	if cert.Leaf == nil {
		t.Fatal("Loaded certificate should have a parsed leaf")
	}
	if got := cert.Leaf.DNSNames[0]; got != "gw.example.com" {
		t.Errorf("Expected DNS name gw.example.com, got %q", got)
	}
	if !cert.Leaf.NotAfter.Equal(notAfter.Truncate(time.Second)) {
		t.Errorf("NotAfter mismatch: got %v, want %v", cert.Leaf.NotAfter, notAfter.Truncate(time.Second))
	}
}

func TestDirCache_LoadMissing(t *testing.T) {
	cache, err := NewDirCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirCache failed: %v", err)
	}

	if _, err := cache.LoadCertificate("gw.example.com"); err == nil {
		t.Fatal("Expected error for missing cache entry")
	}
}

func TestDirCache_AccountKeyPersists(t *testing.T) {
	dir := t.TempDir()

	cache, err := NewDirCache(dir)
	if err != nil {
		t.Fatalf("NewDirCache failed: %v", err)
	}

	first, err := cache.AccountKey()
	if err != nil {
		t.Fatalf("AccountKey failed: %v", err)
	}

	// A second cache over the same directory loads the same key.
	cache2, err := NewDirCache(dir)
	if err != nil {
		t.Fatalf("NewDirCache failed: %v", err)
	}
	second, err := cache2.AccountKey()
	if err != nil {
		t.Fatalf("AccountKey reload failed: %v", err)
	}

	if first.D.Cmp(second.D) != 0 {
		t.Error("Account key should persist across restarts")
	}
}

func TestManager_NeedsRenewal(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		notAfter time.Time
		want     bool
	}{
		{"expires in 29 days", now.Add(29 * 24 * time.Hour), true},
		{"expires in 45 days", now.Add(45 * 24 * time.Hour), false},
		{"already expired", now.Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := managerWithCert(t, tt.notAfter, now)
			if got := m.needsRenewal(); got != tt.want {
				t.Errorf("needsRenewal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_GetCertificate(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid cert is served", func(t *testing.T) {
		m := managerWithCert(t, now.Add(60*24*time.Hour), now)
		cert, err := m.GetCertificate(nil)
		if err != nil {
			t.Fatalf("GetCertificate failed: %v", err)
		}
		if cert == nil {
			t.Fatal("Expected a certificate")
		}
	})

	t.Run("expired cert fails closed", func(t *testing.T) {
		m := managerWithCert(t, now.Add(-time.Hour), now)
		if _, err := m.GetCertificate(nil); err == nil {
			t.Fatal("Expected handshake to fail closed on expired certificate")
		}
	})

	t.Run("no cert fails closed", func(t *testing.T) {
		m, err := NewManager("gw.example.com", testACMEConfig(t), nil)
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		if _, err := m.GetCertificate(nil); err == nil {
			t.Fatal("Expected error before any certificate exists")
		}
	})
}

func TestManager_StartLoadsCachedCertificate(t *testing.T) {
	cfg := testACMEConfig(t)

	cache, err := NewDirCache(cfg.CacheDir)
	if err != nil {
		t.Fatalf("NewDirCache failed: %v", err)
	}
	der, key := selfSignedCert(t, "gw.example.com", time.Now().Add(60*24*time.Hour))
	if err := cache.PutCertificate("gw.example.com", der, key); err != nil {
		t.Fatalf("PutCertificate failed: %v", err)
	}

	m, err := NewManager("gw.example.com", cfg, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if m.State() != StateValid {
		t.Errorf("Expected state valid after loading cache, got %s", m.State())
	}

	// A cached valid certificate short-circuits EnsureCertificate.
	if err := m.EnsureCertificate(ctx); err != nil {
		t.Errorf("EnsureCertificate should be a no-op with a cached cert: %v", err)
	}
}

func TestManager_HTTPHandler(t *testing.T) {
	m, err := NewManager("gw.example.com", testACMEConfig(t), nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	m.challenges.put("/.well-known/acme-challenge/tok123", "tok123.keyauth")

	fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := m.HTTPHandler(fallback)

	t.Run("serves registered token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/.well-known/acme-challenge/tok123", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		body, _ := io.ReadAll(rec.Body)
		if string(body) != "tok123.keyauth" {
			t.Errorf("Expected key authorization, got %q", body)
		}
	})

	t.Run("unknown token is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/.well-known/acme-challenge/other", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("other paths reach fallback", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("Expected fallback response, got %d", rec.Code)
		}
	})
}

// failureCounter records order outcomes for retry assertions.
type failureCounter struct {
	failures  int
	successes int
}

func (f *failureCounter) RecordACMERenewal(result string) {
	if result == "success" {
		f.successes++
	} else {
		f.failures++
	}
}

// brokenDirectory serves an ACME directory endpoint that always errors, so
// every order attempt fails without leaving the test process.
func brokenDirectory(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "directory unavailable", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestManager_RenewalFailureIsBounded(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("expired cert enters failed state", func(t *testing.T) {
		m := managerWithCert(t, now.Add(-time.Hour), now)
		m.directoryURL = brokenDirectory(t)
		m.retryBase = time.Millisecond
		m.retryAttempts = 2
		counter := &failureCounter{}
		m.metrics = counter

		done := make(chan struct{})
		go func() {
			m.checkAndRenew(context.Background())
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("checkAndRenew should give up after bounded attempts")
		}

		if m.State() != StateFailed {
			t.Errorf("Expected failed state with an expired certificate, got %s", m.State())
		}
		if counter.failures != 2 {
			t.Errorf("Expected 2 recorded failures, got %d", counter.failures)
		}
	})

	t.Run("valid cert keeps serving after failed renewal", func(t *testing.T) {
		m := managerWithCert(t, now.Add(20*24*time.Hour), now)
		m.directoryURL = brokenDirectory(t)
		m.retryBase = time.Millisecond
		m.retryAttempts = 2

		m.checkAndRenew(context.Background())

		if m.State() != StateValid {
			t.Errorf("Expected valid state while the old certificate holds, got %s", m.State())
		}
		if _, err := m.GetCertificate(nil); err != nil {
			t.Errorf("Old certificate should still be served: %v", err)
		}
	})
}

func TestManager_SingleOrderInFlight(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	m := managerWithCert(t, now.Add(-time.Hour), now)
	m.inFlight.Store(true)

	if err := m.EnsureCertificate(context.Background()); err == nil {
		t.Fatal("EnsureCertificate should refuse to start a second order flow")
	}

	m.checkAndRenew(context.Background())
	if m.State() != StateValid {
		t.Errorf("A skipped check should not change state, got %s", m.State())
	}
}

func TestManager_StateString(t *testing.T) {
	states := map[State]string{
		StateUninitialized: "uninitialized",
		StatePending:       "pending",
		StateValid:         "valid",
		StateRenewing:      "renewing",
		StateFailed:        "failed",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval is how long to wait after a file event before
// reloading. Rotation tools write the cert and key as separate files;
// the quiet period lets both land before the pair is loaded.
const debounceInterval = 250 * time.Millisecond

// Reloader serves a certificate pair from disk and reloads it when the
// files change.
type Reloader struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewReloader creates a reloader for the given certificate and key files.
func NewReloader(certFile, keyFile string, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger,
	}
}

// Start loads the initial certificate and begins watching the files for
// changes. Watching stops when ctx is cancelled.
func (r *Reloader) Start(ctx context.Context) error {
	if err := r.reload(); err != nil {
		return fmt.Errorf("loading certificate: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the parent directories rather than the files themselves:
	// rotation tools typically replace files via rename, which would
	// drop a direct file watch.
	dirs := map[string]struct{}{
		filepath.Dir(r.certFile): {},
		filepath.Dir(r.keyFile):  {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watching %q: %w", dir, err)
		}
	}

	go r.watchLoop(ctx, watcher)

	return nil
}

func (r *Reloader) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !r.isWatchedFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				if err := r.reload(); err != nil {
					r.logger.Error("Certificate reload failed",
						"error", err,
						"cert_file", r.certFile,
					)
					return
				}
				r.logCertificate("Certificate reloaded")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("Certificate watcher error", "error", err)
		}
	}
}

func (r *Reloader) isWatchedFile(name string) bool {
	return filepath.Clean(name) == filepath.Clean(r.certFile) ||
		filepath.Clean(name) == filepath.Clean(r.keyFile)
}

// reload loads the pair from disk and swaps it in if it parses and the
// leaf is currently valid. The previous pair keeps serving on failure.
func (r *Reloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return err
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("parsing leaf certificate: %w", err)
	}
	cert.Leaf = leaf

	now := time.Now()
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate not valid until %s", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired at %s", leaf.NotAfter.Format(time.RFC3339))
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	return nil
}

// GetCertificate is a tls.Config.GetCertificate callback. It fails the
// handshake when no valid certificate is loaded.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	cert := r.cert
	r.mu.RUnlock()

	if cert == nil {
		return nil, errors.New("tls: no certificate loaded")
	}
	if time.Now().After(cert.Leaf.NotAfter) {
		return nil, fmt.Errorf("tls: certificate expired at %s", cert.Leaf.NotAfter.Format(time.RFC3339))
	}
	return cert, nil
}

// Healthy reports whether a currently valid certificate is loaded.
func (r *Reloader) Healthy() error {
	_, err := r.GetCertificate(nil)
	return err
}

func (r *Reloader) logCertificate(msg string) {
	r.mu.RLock()
	cert := r.cert
	r.mu.RUnlock()
	if cert == nil || cert.Leaf == nil {
		return
	}

	r.logger.Info(msg,
		"subject", cert.Leaf.Subject.CommonName,
		"issuer", cert.Leaf.Issuer.CommonName,
		"expires_at", cert.Leaf.NotAfter.Format(time.RFC3339),
	)
}

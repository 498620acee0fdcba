package acme

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// DirCache persists certificates and the ACME account key under a directory,
// keyed by domain:
//
//	<dir>/<domain>.crt  certificate chain, PEM
//	<dir>/<domain>.key  private key, PEM (EC)
//	<dir>/account.key   ACME account key, PEM (EC)
//
// Writes go through a temp file and rename so a crash mid-write never leaves
// a torn certificate on disk.
type DirCache struct {
	dir string
}

// NewDirCache creates the cache directory if needed.
func NewDirCache(dir string) (*DirCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create certificate cache dir %q: %w", dir, err)
	}
	return &DirCache{dir: dir}, nil
}

// PutCertificate persists the certificate chain and key for domain.
func (c *DirCache) PutCertificate(domain string, der [][]byte, key *ecdsa.PrivateKey) error {
	var certPEM []byte
	for _, b := range der {
		certPEM = append(certPEM, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: b})...)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := c.writeFile(domain+".key", keyPEM, 0o600); err != nil {
		return err
	}
	return c.writeFile(domain+".crt", certPEM, 0o644)
}

// LoadCertificate loads the cached certificate for domain. A missing cache
// entry returns os.ErrNotExist.
func (c *DirCache) LoadCertificate(domain string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(
		filepath.Join(c.dir, domain+".crt"),
		filepath.Join(c.dir, domain+".key"),
	)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to load cached certificate for %q: %w", domain, err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse cached certificate for %q: %w", domain, err)
	}
	cert.Leaf = leaf

	return &cert, nil
}

// AccountKey loads the ACME account key, generating and persisting a new one
// on first use.
func (c *DirCache) AccountKey() (*ecdsa.PrivateKey, error) {
	path := filepath.Join(c.dir, "account.key")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("account key %q is not PEM", path)
		}
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse account key: %w", err)
		}
		return key, nil

	case os.IsNotExist(err):
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate account key: %w", err)
		}
		der, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal account key: %w", err)
		}
		keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
		if err := c.writeFile("account.key", keyPEM, 0o600); err != nil {
			return nil, err
		}
		return key, nil

	default:
		return nil, fmt.Errorf("failed to read account key: %w", err)
	}
}

func (c *DirCache) writeFile(name string, data []byte, mode os.FileMode) error {
	path := filepath.Join(c.dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("failed to write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %q: %w", tmp, err)
	}
	return nil
}

package acme

import (
	"net/http"
	"strings"
	"sync"
)

const challengePathPrefix = "/.well-known/acme-challenge/"

// challengeStore holds in-flight HTTP-01 challenge responses keyed by the
// well-known path the CA will fetch.
type challengeStore struct {
	mu        sync.RWMutex
	responses map[string]string
}

func newChallengeStore() *challengeStore {
	return &challengeStore{responses: make(map[string]string)}
}

func (s *challengeStore) put(path, keyAuth string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = keyAuth
}

func (s *challengeStore) delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.responses, path)
}

func (s *challengeStore) get(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keyAuth, ok := s.responses[path]
	return keyAuth, ok
}

// HTTPHandler returns a handler that serves ACME HTTP-01 challenge responses
// on the plaintext listener and delegates everything else to fallback.
//
// Mount this as the plaintext listener's root handler:
//
//	httpSrv := &http.Server{Handler: manager.HTTPHandler(gatewayHandler)}
func (m *Manager) HTTPHandler(fallback http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, challengePathPrefix) {
			keyAuth, ok := m.challenges.get(r.URL.Path)
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(keyAuth))
			return
		}

		if fallback == nil {
			http.NotFound(w, r)
			return
		}
		fallback.ServeHTTP(w, r)
	})
}

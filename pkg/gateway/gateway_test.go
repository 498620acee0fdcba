package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"zeno-hq/gateway/pkg/config"
)

func testBackends(t *testing.T, rpcURL, indexerURL string) *Backends {
	t.Helper()
	b := &Backends{
		rpc:     map[string]string{},
		indexer: map[string]string{},
	}
	if rpcURL != "" {
		b.rpc["ankr_eth"] = rpcURL
	}
	if indexerURL != "" {
		b.indexer["ankr"] = indexerURL
	}
	return b
}

func newTestRouter(t *testing.T, backends *Backends) *http.ServeMux {
	t.Helper()
	forwarder := NewForwarder(2*time.Second, 1_000_000, nil, nil)
	mux := http.NewServeMux()
	NewRouter(backends, forwarder).Register(mux)
	return mux
}

func TestNewBackends_BuildsRouteTable(t *testing.T) {
	cfg := config.UpstreamsConfig{
		AnkrAPIKey:  "ankr-key",
		BlastAPIKey: "blast-key",
		Chains:      []string{"eth", "bsc", "arbitrum", "optimism", "base", "polygon"},
	}
	b := NewBackends(cfg, nil)

	// 6 chains per provider plus the multichain indexer.
	if b.Len() != 13 {
		t.Errorf("Expected 13 routes, got %d", b.Len())
	}

	url, ok := b.RPC("ankr", "eth")
	if !ok {
		t.Fatal("ankr_eth should be registered")
	}
	if url != "https://rpc.ankr.com/eth/ankr-key" {
		t.Errorf("Credential should be embedded in the URL, got %s", url)
	}

	url, ok = b.RPC("blast", "arbitrum")
	if !ok {
		t.Fatal("blast_arbitrum should be registered")
	}
	if url != "https://arbitrum-one.blastapi.io/blast-key" {
		t.Errorf("Unexpected Blast URL: %s", url)
	}

	url, ok = b.Indexer("ankr")
	if !ok {
		t.Fatal("indexer ankr should be registered")
	}
	if url != "https://rpc.ankr.com/multichain/ankr-key" {
		t.Errorf("Unexpected indexer URL: %s", url)
	}
}

func TestNewBackends_SkipsProvidersWithoutKeys(t *testing.T) {
	b := NewBackends(config.UpstreamsConfig{Chains: []string{"eth"}}, nil)
	if b.Len() != 0 {
		t.Errorf("Expected no routes without keys, got %d", b.Len())
	}

	b = NewBackends(config.UpstreamsConfig{BlastAPIKey: "k", Chains: []string{"eth"}}, nil)
	if _, ok := b.RPC("ankr", "eth"); ok {
		t.Error("Ankr routes should not exist without an Ankr key")
	}
	if _, ok := b.Indexer("ankr"); ok {
		t.Error("Indexer should not exist without an Ankr key")
	}
	if _, ok := b.RPC("blast", "eth"); !ok {
		t.Error("Blast route should exist with a Blast key")
	}
}

func TestRouter_UnknownRouteIs404WithoutUpstreamCall(t *testing.T) {
	var upstreamCalled atomic.Bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalled.Store(true)
	}))
	defer upstream.Close()

	mux := newTestRouter(t, testBackends(t, upstream.URL, ""))

	for _, path := range []string{"/rpc/ankr/solana", "/rpc/nope/eth", "/indexer/nope"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("POST", path, strings.NewReader("{}")))

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Endpoint not configured") {
			t.Errorf("%s: unexpected body %q", path, rec.Body.String())
		}
	}
	if upstreamCalled.Load() {
		t.Error("Unknown routes must not reach the upstream")
	}
}

func TestForwarder_RelaysVerbatim(t *testing.T) {
	var gotBody atomic.Value
	var gotPath atomic.Value
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody.Store(string(body))
		gotPath.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
	}))
	defer upstream.Close()

	// Mimic a provider URL with the credential as a path suffix.
	mux := newTestRouter(t, testBackends(t, upstream.URL+"/secret-key", ""))

	req := httptest.NewRequest("POST", "/rpc/ankr/eth", strings.NewReader(`{"method":"eth_blockNumber"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"jsonrpc":"2.0","id":1,"result":"0x1"}` {
		t.Errorf("Response body should be relayed verbatim, got %q", rec.Body.String())
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Error("Upstream response headers should be relayed")
	}
	if gotBody.Load() != `{"method":"eth_blockNumber"}` {
		t.Errorf("Request body should be relayed verbatim, got %q", gotBody.Load())
	}
	if gotPath.Load() != "/secret-key" {
		t.Errorf("Upstream should be called at the credential path, got %q", gotPath.Load())
	}
}

func TestForwarder_StripsHopByHopHeaders(t *testing.T) {
	var gotHeaders atomic.Value
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders.Store(r.Header.Clone())
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	forwarder := NewForwarder(2*time.Second, 1_000_000, nil, nil)

	req := httptest.NewRequest("POST", "/rpc/ankr/eth", nil)
	req.Header.Set("Keep-Alive", "timeout=5")
	req.Header.Set("Te", "trailers")
	req.Header.Set("X-Custom", "kept")
	rec := httptest.NewRecorder()
	forwarder.Forward(rec, req, upstream.URL, "ankr_eth")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	headers := gotHeaders.Load().(http.Header)
	if headers.Get("Keep-Alive") != "" || headers.Get("Te") != "" {
		t.Error("Hop-by-hop headers must not reach the upstream")
	}
	if headers.Get("X-Custom") != "kept" {
		t.Error("End-to-end headers should reach the upstream")
	}
}

func TestForwarder_BodyTooLarge(t *testing.T) {
	var upstreamCalled atomic.Bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalled.Store(true)
	}))
	defer upstream.Close()

	forwarder := NewForwarder(2*time.Second, 64, nil, nil)

	req := httptest.NewRequest("POST", "/rpc/ankr/eth", strings.NewReader(strings.Repeat("x", 128)))
	rec := httptest.NewRecorder()
	forwarder.Forward(rec, req, upstream.URL, "ankr_eth")

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rec.Code)
	}
	if upstreamCalled.Load() {
		t.Error("Oversized bodies must not reach the upstream")
	}
}

type recordedError struct {
	backend, kind string
}

type errorRecorder struct {
	errs []recordedError
}

func (e *errorRecorder) RecordUpstreamError(backend, kind string) {
	e.errs = append(e.errs, recordedError{backend, kind})
}

func TestForwarder_ConnectFailureIs502(t *testing.T) {
	rec := httptest.NewRecorder()
	metrics := &errorRecorder{}
	forwarder := NewForwarder(2*time.Second, 1_000_000, metrics, nil)

	// A closed server guarantees a connection error.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := upstream.URL
	upstream.Close()

	forwarder.Forward(rec, httptest.NewRequest("POST", "/rpc/ankr/eth", nil), target, "ankr_eth")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rec.Code)
	}
	if len(metrics.errs) != 1 || metrics.errs[0].kind != "connect" {
		t.Errorf("Expected one connect error recorded, got %+v", metrics.errs)
	}
	// Error bodies carry no internal detail.
	if strings.Contains(rec.Body.String(), target) {
		t.Error("Response body must not leak the upstream address")
	}
}

func TestForwarder_TimeoutIs504(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer upstream.Close()

	metrics := &errorRecorder{}
	forwarder := NewForwarder(50*time.Millisecond, 1_000_000, metrics, nil)

	rec := httptest.NewRecorder()
	forwarder.Forward(rec, httptest.NewRequest("POST", "/rpc/ankr/eth", nil), upstream.URL, "ankr_eth")

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("Expected 504, got %d", rec.Code)
	}
	if len(metrics.errs) != 1 || metrics.errs[0].kind != "timeout" {
		t.Errorf("Expected one timeout error recorded, got %+v", metrics.errs)
	}
}

func TestForwarder_UpstreamStatusPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer upstream.Close()

	forwarder := NewForwarder(2*time.Second, 1_000_000, nil, nil)

	rec := httptest.NewRecorder()
	forwarder.Forward(rec, httptest.NewRequest("POST", "/rpc/ankr/eth", nil), upstream.URL, "ankr_eth")

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Upstream status should pass through, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"rate limited"}` {
		t.Errorf("Upstream error body should pass through, got %q", rec.Body.String())
	}
}

func TestRouter_IndexerRoute(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"blockchains":[]}`))
	}))
	defer upstream.Close()

	mux := newTestRouter(t, testBackends(t, "", upstream.URL))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/indexer/ankr", strings.NewReader("{}")))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"blockchains":[]}` {
		t.Errorf("Unexpected body: %q", rec.Body.String())
	}
}

func TestBlastSubdomains(t *testing.T) {
	tests := map[string]string{
		"eth":      "eth-mainnet",
		"bsc":      "bsc-mainnet",
		"arbitrum": "arbitrum-one",
		"optimism": "optimism-mainnet",
		"base":     "base-mainnet",
		"polygon":  "polygon-mainnet",
	}
	for chain, want := range tests {
		if got := blastSubdomain(chain); got != want {
			t.Errorf("blastSubdomain(%q) = %q, want %q", chain, got, want)
		}
	}

	// Route URLs must parse.
	b := NewBackends(config.UpstreamsConfig{BlastAPIKey: "k", Chains: []string{"eth"}}, nil)
	raw, _ := b.RPC("blast", "eth")
	if _, err := url.Parse(raw); err != nil {
		t.Errorf("Route URL should parse: %v", err)
	}
}

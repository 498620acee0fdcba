package forex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"zeno-hq/gateway/pkg/config"
)

// maxPayloadBytes bounds the upstream response body. Rate documents are
// a few kilobytes; anything near this limit is malformed.
const maxPayloadBytes = 4 << 20

// Updates receives refresh outcomes, satisfied by the metrics collector.
type Updates interface {
	RecordForexUpdate()
	RecordForexFetchError()
}

// rateDocument is the subset of the upstream payload the refresher
// validates and normalizes. The verbatim body is kept alongside.
type rateDocument struct {
	Timestamp int64              `json:"timestamp"`
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
}

// Refresher polls the quote source and keeps the cache current.
type Refresher struct {
	fetchURL string
	interval time.Duration
	client   *http.Client
	cache    *Cache
	store    *Store
	metrics  Updates
	logger   *slog.Logger
}

// NewRefresher creates a refresher feeding cache. store and metrics may
// be nil.
func NewRefresher(cfg config.ForexConfig, cache *Cache, store *Store, metrics Updates, logger *slog.Logger) (*Refresher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing forex url: %w", err)
	}
	q := u.Query()
	q.Set("app_id", cfg.AppID)
	u.RawQuery = q.Encode()

	return &Refresher{
		fetchURL: u.String(),
		interval: cfg.RefreshInterval,
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		cache:    cache,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Run seeds the cache from the store, fetches once immediately, then
// refreshes on the configured interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.seed(ctx)

	if err := r.refresh(ctx); err != nil {
		r.logger.Error("Initial forex fetch failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.refresh(ctx); err != nil {
				r.logger.Error("Forex refresh failed",
					"error", err,
					"stale_since", r.cache.FetchedAt().Format(time.RFC3339),
				)
			}
		}
	}
}

// seed loads the persisted payload so rates are served before the first
// fetch completes.
func (r *Refresher) seed(ctx context.Context) {
	if r.store == nil {
		return
	}

	raw, fetchedAt, err := r.store.Load(ctx)
	if err != nil {
		if err != ErrNoSnapshot {
			r.logger.Warn("Failed to load persisted forex snapshot", "error", err)
		}
		return
	}

	doc, err := parseDocument(raw)
	if err != nil {
		r.logger.Warn("Persisted forex snapshot is malformed, discarding", "error", err)
		return
	}

	r.cache.Store(Snapshot{Timestamp: doc.Timestamp, Rates: doc.Rates}, raw, fetchedAt)
	r.logger.Info("Loaded persisted forex snapshot",
		"fetched_at", fetchedAt.Format(time.RFC3339),
		"rates", len(doc.Rates),
	)
}

// refresh fetches one payload and swaps it in. On any failure the
// previous snapshot keeps serving.
func (r *Refresher) refresh(ctx context.Context) error {
	raw, err := r.fetch(ctx)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordForexFetchError()
		}
		return err
	}

	doc, err := parseDocument(raw)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordForexFetchError()
		}
		return err
	}

	fetchedAt := time.Now()
	r.cache.Store(Snapshot{Timestamp: doc.Timestamp, Rates: doc.Rates}, raw, fetchedAt)

	if r.store != nil {
		if err := r.store.Save(ctx, raw, fetchedAt); err != nil {
			// The in-memory snapshot is already current.
			r.logger.Warn("Failed to persist forex snapshot", "error", err)
		}
	}

	if r.metrics != nil {
		r.metrics.RecordForexUpdate()
	}
	r.logger.Info("Forex snapshot updated",
		"base", doc.Base,
		"rates", len(doc.Rates),
		"timestamp", doc.Timestamp,
	)

	return nil
}

func (r *Refresher) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building forex request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching forex rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forex source returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("reading forex response: %w", err)
	}
	return raw, nil
}

func parseDocument(raw []byte) (rateDocument, error) {
	var doc rateDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return rateDocument{}, fmt.Errorf("parsing forex payload: %w", err)
	}
	if len(doc.Rates) == 0 {
		return rateDocument{}, fmt.Errorf("forex payload has no rates")
	}
	return doc, nil
}

package gateway

import (
	"fmt"
	"log/slog"

	"zeno-hq/gateway/pkg/config"
)

// Backends is the immutable route table mapping route keys to upstream
// URLs with the credential already embedded.
type Backends struct {
	rpc     map[string]string
	indexer map[string]string
}

// NewBackends builds the route table from the configured provider keys.
// Providers with an empty key are skipped, with a warning, rather than
// registered as broken routes.
func NewBackends(cfg config.UpstreamsConfig, logger *slog.Logger) *Backends {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Backends{
		rpc:     make(map[string]string),
		indexer: make(map[string]string),
	}

	if cfg.AnkrAPIKey == "" {
		logger.Warn("Ankr API key is empty, skipping Ankr endpoints")
	} else {
		for _, chain := range cfg.Chains {
			b.rpc["ankr_"+chain] = fmt.Sprintf("https://rpc.ankr.com/%s/%s", chain, cfg.AnkrAPIKey)
		}
		b.indexer["ankr"] = fmt.Sprintf("https://rpc.ankr.com/multichain/%s", cfg.AnkrAPIKey)
	}

	if cfg.BlastAPIKey == "" {
		logger.Warn("Blast API key is empty, skipping Blast endpoints")
	} else {
		for _, chain := range cfg.Chains {
			b.rpc["blast_"+chain] = fmt.Sprintf("https://%s.blastapi.io/%s", blastSubdomain(chain), cfg.BlastAPIKey)
		}
	}

	logger.Info("Backend route table built",
		"rpc_routes", len(b.rpc),
		"indexer_routes", len(b.indexer),
	)

	return b
}

// NewStaticBackends builds a route table from explicit route maps.
// Used for custom endpoint overrides and in tests.
func NewStaticBackends(rpc, indexer map[string]string) *Backends {
	b := &Backends{
		rpc:     make(map[string]string, len(rpc)),
		indexer: make(map[string]string, len(indexer)),
	}
	for k, v := range rpc {
		b.rpc[k] = v
	}
	for k, v := range indexer {
		b.indexer[k] = v
	}
	return b
}

// blastSubdomain maps a chain name to the Blast API hostname prefix.
// Blast uses network-qualified subdomains rather than bare chain names.
func blastSubdomain(chain string) string {
	switch chain {
	case "eth":
		return "eth-mainnet"
	case "bsc":
		return "bsc-mainnet"
	case "arbitrum":
		return "arbitrum-one"
	case "optimism":
		return "optimism-mainnet"
	case "base":
		return "base-mainnet"
	case "polygon":
		return "polygon-mainnet"
	default:
		return chain + "-mainnet"
	}
}

// RPC returns the upstream URL for a provider/chain pair.
func (b *Backends) RPC(provider, chain string) (string, bool) {
	url, ok := b.rpc[provider+"_"+chain]
	return url, ok
}

// Indexer returns the upstream URL for an indexer provider.
func (b *Backends) Indexer(provider string) (string, bool) {
	url, ok := b.indexer[provider]
	return url, ok
}

// Len returns the total number of registered routes.
func (b *Backends) Len() int {
	return len(b.rpc) + len(b.indexer)
}

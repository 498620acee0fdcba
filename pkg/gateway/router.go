package gateway

import (
	"net/http"
)

// Router dispatches proxied routes to the forwarder.
type Router struct {
	backends  *Backends
	forwarder *Forwarder
}

// NewRouter creates a router over the given route table.
func NewRouter(backends *Backends, forwarder *Forwarder) *Router {
	return &Router{backends: backends, forwarder: forwarder}
}

// Register adds the proxied routes to mux.
func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/rpc/{provider}/{chain}", rt.handleRPC)
	mux.HandleFunc("/rpc/{provider}/{chain}/{rest...}", rt.handleRPC)
	mux.HandleFunc("/indexer/{provider}", rt.handleIndexer)
	mux.HandleFunc("/indexer/{provider}/{rest...}", rt.handleIndexer)
}

func (rt *Router) handleRPC(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	chain := r.PathValue("chain")

	target, ok := rt.backends.RPC(provider, chain)
	if !ok {
		http.Error(w, "Endpoint not configured", http.StatusNotFound)
		return
	}

	rt.forwarder.Forward(w, r, target, provider+"_"+chain)
}

func (rt *Router) handleIndexer(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	target, ok := rt.backends.Indexer(provider)
	if !ok {
		http.Error(w, "Endpoint not configured", http.StatusNotFound)
		return
	}

	rt.forwarder.Forward(w, r, target, "indexer_"+provider)
}

// Package forex maintains an in-memory snapshot of exchange rates
// fetched periodically from an upstream quote source.
//
// A background Refresher polls the source on a fixed interval and swaps
// the snapshot atomically, so request handlers never block on the
// network. Failed fetches keep the previous snapshot serving. The last
// successful payload is persisted to SQLite so a restart serves rates
// immediately instead of waiting for the first fetch.
package forex

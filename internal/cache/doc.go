// Package cache holds the single in-memory slot that backs the proxy: the raw
// bytes of the last successful upstream response plus the time they were
// fetched. The slot is replaced atomically after a complete read and is never
// deleted, so a failed refresh always leaves the previous payload available as
// a stale fallback. Freshness classifies an entry as empty, fresh or stale
// against a fixed TTL; the proxy layer decides what to do with each state.
package cache

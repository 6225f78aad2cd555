// Package syncer reconciles the local cache with the remote store.
//
// # Overview
//
// A sync cycle is scoped to one user and one calendar day. The engine
// applies an asymmetric policy:
//
//	Load (read)  — remote wins: a successful remote fetch replaces the
//	               local day partition; a failed fetch falls back to the
//	               cached copy.
//	Push (write) — local wins: the cached partition is treated as the
//	               source of truth, and the remote table is diffed into
//	               agreement (insert missing, update differing, delete
//	               leftovers).
//
// The asymmetry is consistent because every local write is immediately
// followed by a push, and a load is only performed when no local write
// is pending. Surfaces that complete a local write broadcast a refresh
// signal so other surfaces reload; this bounds staleness, it does not
// guarantee linearizability.
//
// # Usage
//
//	store := remote.NewRESTStore(url, key, table)
//	engine := syncer.New(localCache, store, session.UserID, nil, bus)
//
//	// Read today's tasks, preferring the remote copy.
//	tasks, err := engine.Load(ctx, task.Today())
//
//	// Persist an edited partition and push the diff.
//	err = engine.Save(ctx, task.Today(), tasks)
//
// # Error handling
//
// A cycle aborts on the first remote.ErrUnavailable and leaves the cache
// in its last-known-good state. Remote writes are per-record and
// idempotent, so the next cycle re-reconciles whatever was left undone.
// Local storage failures abort the operation before any remote call.
//
// # Concurrency
//
// Two surfaces can push concurrently; coordination is advisory (the
// signal bus) and true same-instant edits may lose one update. That is
// an accepted property of the design, not a defect.
package syncer

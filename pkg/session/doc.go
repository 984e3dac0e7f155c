// Package session manages the lifecycle of remote browser sessions shared by
// many concurrent callers.
//
// A Manager hands out Records by identifier. It reuses live sessions, evicts
// stale ones, and creates the implicit default session on demand. Concurrent
// requests for the default session share a single in-flight creation, which is
// retried once on failure. Teardown of a given identifier is exclusive and
// idempotent, and disconnects reported by the Driver are applied through the
// same lock as caller operations.
//
// # Identifiers
//
// Every Manager owns exactly one default identifier, generated at construction.
// The active identifier is what callers target when they name no session; it is
// always the default identifier or a registered one.
//
// # Example Usage
//
//	mgr := session.NewManager(driver, session.WithPurger(store), session.WithLogger(logger))
//
//	rec, err := mgr.GetOrCreate(ctx, mgr.DefaultID(), true)
//	if errors.Is(err, session.ErrNoSession) {
//	    // no browser available
//	}
//
//	defer mgr.CleanupAll(context.Background())
package session

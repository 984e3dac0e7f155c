package session

import (
	"context"
)

// creation is the single join point for an in-flight default-session creation.
// rec and err are written before done is closed.
type creation struct {
	done chan struct{}
	rec  *Record
	err  error
}

func (c *creation) wait(ctx context.Context) (*Record, error) {
	select {
	case <-c.done:
		return c.rec, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ensureDefault returns the live default session, creating it when it is
// missing, stale or being torn down. Concurrent callers share one creation.
func (m *Manager) ensureDefault(ctx context.Context) (*Record, error) {
	id := m.defaultID

	m.mu.Lock()
	if c := m.inflight; c != nil {
		m.mu.Unlock()
		m.logger.Infof("default session creation already in progress, waiting...")
		return c.wait(ctx)
	}

	existing := m.reg.defaultRecord
	_, cleaning := m.cleaning[id]
	if existing != nil && !cleaning && isLive(existing) {
		m.reg.activeID = id
		m.mu.Unlock()
		return existing, nil
	}

	c := &creation{done: make(chan struct{})}
	m.inflight = c
	m.mu.Unlock()

	switch {
	case existing == nil:
		m.logger.Infof("default session %s not found, creating", id)
	case cleaning:
		// The cleanup owns the old record; the replacement waits for it to finish.
		m.logger.Infof("default session %s is being cleaned up, creating a replacement", id)
		existing = nil
	default:
		m.logger.Warnf("default session %s is stale, recreating", id)
	}

	// The creation outlives any single caller; waiters may still give up on their own ctx.
	go m.createDefault(context.WithoutCancel(ctx), c, existing)
	return c.wait(ctx)
}

// createDefault runs one creation cycle: evict the stale record, wait out any
// running cleanup of the default id, create, retry once on failure, publish the
// result and release the guard.
func (m *Manager) createDefault(ctx context.Context, c *creation, stale *Record) {
	id := m.defaultID

	var (
		rec *Record
		err error
	)
	defer func() {
		m.mu.Lock()
		if err == nil {
			m.reg.put(rec)
			m.reg.activeID = id
		}
		c.rec, c.err = rec, err
		m.inflight = nil
		m.mu.Unlock()
		close(c.done)
	}()

	if stale != nil {
		m.teardown(ctx, id, stale)
	}
	m.awaitCleanup(id)

	rec, err = m.connect(ctx, id, "", 1)
	if err == nil {
		return
	}
	if isConfigurationError(err) {
		m.logger.Errorf("cannot create default session %s: %v", id, err)
		return
	}

	m.logger.Warnf("initial/recreation attempt for default session %s failed: %v", id, err)
	m.logger.Infof("retrying creation of default session %s after error...", id)

	rec, err = m.connect(ctx, id, "", 2)
	if err != nil {
		m.logger.Errorf("failed to recreate default session %s after retry: %v", id, err)
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/browserhub/pkg/logging"
)

// Manager owns every remote browser session of the process and decides, per
// identifier, whether to reuse, create, evict or tear down.
//
// All shared state is guarded by mu. Remote calls (create, close) and artifact
// purges run without holding it.
type Manager struct {
	driver    Driver
	purger    Purger
	logger    *logging.Logger
	contextID string
	now       func() time.Time

	defaultID string

	mu       sync.Mutex
	reg      *registry
	inflight *creation
	cleaning map[string]*cleanup
	creating map[string]struct{}
	nextGen  uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for lifecycle decisions.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithPurger sets the artifact store purged on teardown and disconnect.
func WithPurger(p Purger) Option {
	return func(m *Manager) {
		m.purger = p
	}
}

// WithContextID embeds a Browserbase context id in the default session identifier.
func WithContextID(id string) Option {
	return func(m *Manager) {
		m.contextID = id
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager backed by driver. The default session
// identifier is generated here and never changes.
func NewManager(driver Driver, opts ...Option) *Manager {
	m := &Manager{
		driver:   driver,
		logger:   logging.Discard(),
		now:      time.Now,
		cleaning: make(map[string]*cleanup),
		creating: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	ctxID := m.contextID
	if ctxID == "" {
		ctxID = "default"
	}
	m.defaultID = fmt.Sprintf("browserbase_session_%s_%d_%s", ctxID, m.now().UnixMilli(), uuid.NewString())
	m.reg = newRegistry(m.defaultID)
	return m
}

// DefaultID returns the identifier of the implicit default session.
func (m *Manager) DefaultID() string {
	return m.defaultID
}

// ActiveID returns the identifier targeted by operations that name no session.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg.activeID
}

// SetActive makes id the active session. Only registered identifiers and the
// default identifier are accepted; anything else is logged and ignored.
func (m *Manager) SetActive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.reg.has(id) {
		m.logger.Warnf("set active session failed for non-existent ID: %s", id)
		return false
	}
	m.reg.activeID = id
	return true
}

// GetOrCreate returns the live session for id.
//
// For the default identifier with allowCreate set, the session is created (or
// recreated when stale) on demand; a failure is returned wrapped in ErrNoSession.
// Any other identifier is only looked up: a missing, stale or closing session
// yields ErrNoSession. A returned session becomes the active one.
func (m *Manager) GetOrCreate(ctx context.Context, id string, allowCreate bool) (*Record, error) {
	if id == m.defaultID && allowCreate {
		rec, err := m.ensureDefault(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			m.logger.Errorf("failed to get default session %s, see previous messages for details", id)
			return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
		}
		return rec, nil
	}

	m.mu.Lock()
	if _, busy := m.cleaning[id]; busy {
		m.mu.Unlock()
		m.logger.Warnf("session %s is being cleaned up, treating as absent", id)
		return nil, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	rec := m.reg.get(id)
	if rec == nil {
		m.mu.Unlock()
		m.logger.Warnf("session not found: %s", id)
		return nil, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	if isLive(rec) {
		m.reg.activeID = id
		m.mu.Unlock()
		m.logger.Debugf("using valid session: %s", id)
		return rec, nil
	}
	m.mu.Unlock()

	m.logger.Warnf("found session %s is stale, removing", id)
	m.teardown(ctx, id, rec)
	return nil, fmt.Errorf("%w: %s is stale", ErrNoSession, id)
}

// Active returns the active session, creating the default one if needed.
func (m *Manager) Active(ctx context.Context) (*Record, error) {
	return m.GetOrCreate(ctx, m.ActiveID(), true)
}

// Create starts (or resumes) a named, non-default session and makes it active.
// It never retries: failures are returned to the caller.
func (m *Manager) Create(ctx context.Context, id string, opts CreateOptions) (*Record, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if id == m.defaultID {
		return nil, ErrDefaultID
	}

	m.mu.Lock()
	if _, busy := m.cleaning[id]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("session %q: %w", id, ErrCleanupInProgress)
	}
	if _, busy := m.creating[id]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("session %q: %w", id, ErrCreationInProgress)
	}
	existing := m.reg.get(id)
	if existing != nil && isLive(existing) {
		m.mu.Unlock()
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionExists)
	}
	m.creating[id] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.creating, id)
		m.mu.Unlock()
	}()

	if existing != nil {
		m.logger.Warnf("session %s is stale, replacing", id)
		m.teardown(ctx, id, existing)
	}

	rec, err := m.connect(ctx, id, opts.ResumeRemoteID, 1)
	if err != nil {
		m.logger.Errorf("creating session %s failed: %v", id, err)
		return nil, err
	}

	m.mu.Lock()
	m.reg.put(rec)
	m.reg.activeID = id
	m.mu.Unlock()

	m.logger.Infof("session created and active: %s", id)
	return rec, nil
}

// Cleanup closes the session for id, purges its artifacts and forgets it.
// It is idempotent and returns immediately if id is already being torn down.
// Remote close and purge failures are logged, never returned.
func (m *Manager) Cleanup(ctx context.Context, id string) {
	m.logger.Infof("cleaning up session: %s", id)
	m.teardown(ctx, id, nil)
}

// CleanupAll tears down every registered session concurrently and resets the
// manager to its initial state.
func (m *Manager) CleanupAll(ctx context.Context) {
	m.logger.Infof("closing all sessions...")

	m.mu.Lock()
	records := m.reg.snapshot()
	m.mu.Unlock()

	var wg sync.WaitGroup
	for id, rec := range records {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.logger.Infof("closing session: %s", id)
			m.teardown(ctx, id, rec)
		}()
	}
	wg.Wait()

	m.mu.Lock()
	m.reg.clear()
	m.mu.Unlock()

	m.logger.Infof("all sessions closed and cleared")
}

// Sessions returns metadata for every registered session, oldest first.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]SessionInfo, 0, len(m.reg.records))
	for id, rec := range m.reg.records {
		infos = append(infos, SessionInfo{
			ID:        id,
			RemoteID:  rec.RemoteID,
			DebugURL:  rec.DebugURL,
			CreatedAt: rec.CreatedAt,
			Default:   id == m.defaultID,
			Active:    id == m.reg.activeID,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// connect performs one driver call and turns its result into a record.
func (m *Manager) connect(ctx context.Context, id, resumeRemoteID string, attempt int) (*Record, error) {
	m.mu.Lock()
	m.nextGen++
	gen := m.nextGen
	m.mu.Unlock()

	verb := "creating"
	if resumeRemoteID != "" {
		verb = "resuming"
	}
	m.logger.Infof("%s remote session %s (attempt %d)...", verb, id, attempt)

	h, err := m.driver.Create(ctx, DriverOptions{
		InternalID:     id,
		ResumeRemoteID: resumeRemoteID,
		OnDisconnect:   func() { m.handleDisconnect(id, gen) },
	})
	if err != nil {
		if isConfigurationError(err) {
			return nil, err
		}
		return nil, &CreationError{ID: id, Attempt: attempt, Cause: err}
	}
	if h == nil || h.Conn == nil || h.Page == nil {
		return nil, &CreationError{ID: id, Attempt: attempt, Cause: errors.New("driver returned an incomplete handle")}
	}
	if h.RemoteID == "" {
		m.closeQuietly(ctx, id, h.Conn)
		return nil, &CreationError{ID: id, Attempt: attempt, Cause: errors.New("remote session id was not returned")}
	}

	m.logger.Infof("session %s initialized with remote session: %s", id, h.RemoteID)
	if h.DebugURL != "" {
		m.logger.Infof("live debugger URL for %s: %s", id, h.DebugURL)
	}

	return &Record{
		ID:        id,
		RemoteID:  h.RemoteID,
		Conn:      h.Conn,
		Page:      h.Page,
		DebugURL:  h.DebugURL,
		CreatedAt: m.now(),
		gen:       gen,
	}, nil
}

// cleanup marks a running teardown of one identifier. done is closed once the
// mark is released.
type cleanup struct {
	rec  *Record // nil when no record was registered
	done chan struct{}
}

// teardown is the single path that closes and forgets a session. The cleaning
// mark makes it exclusive per identifier and is released on every exit path.
// When rec is nil the currently registered record for id is torn down.
// It reports false if another teardown of id was already running.
func (m *Manager) teardown(ctx context.Context, id string, rec *Record) bool {
	m.mu.Lock()
	if _, busy := m.cleaning[id]; busy {
		m.mu.Unlock()
		m.logger.Infof("session %s is already being cleaned up, skipping", id)
		return false
	}
	if rec == nil {
		rec = m.reg.get(id)
	}
	cl := &cleanup{rec: rec, done: make(chan struct{})}
	m.cleaning[id] = cl
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.cleaning, id)
		m.mu.Unlock()
		close(cl.done)
	}()

	if rec != nil {
		m.closeQuietly(ctx, id, rec.Conn)
	}
	m.purgeQuietly(ctx, id)
	if rec != nil && rec.RemoteID != "" && rec.RemoteID != id {
		m.purgeQuietly(ctx, rec.RemoteID)
	}

	m.mu.Lock()
	reset := m.reg.forget(id, rec)
	m.mu.Unlock()
	if reset {
		m.logger.Infof("cleaned up active session %s, resetting to default", id)
	}
	return true
}

// handleDisconnect reacts to a connection that dropped on its own. It runs
// under the manager lock and only touches the record generation it was
// registered for.
func (m *Manager) handleDisconnect(id string, gen uint64) {
	m.mu.Lock()
	if cl, busy := m.cleaning[id]; busy && cl.rec != nil && cl.rec.gen == gen {
		// The running teardown forgets this record and purges its artifacts.
		m.mu.Unlock()
		m.logger.Debugf("disconnect of %s during its cleanup", id)
		return
	}
	rec := m.reg.get(id)
	if rec == nil || rec.gen != gen {
		m.mu.Unlock()
		m.logger.Debugf("disconnect of %s ignored, record already replaced or removed", id)
		return
	}
	wasDefault := id == m.defaultID
	reset := m.reg.forget(id, rec)
	m.mu.Unlock()

	m.logger.Warnf("disconnected: %s", id)
	if wasDefault {
		m.logger.Warnf("disconnected (default): %s", id)
	}
	if reset {
		m.logger.Warnf("active session disconnected, resetting to default: %s", id)
	}

	ctx := context.Background()
	m.purgeQuietly(ctx, id)
	if rec.RemoteID != "" && rec.RemoteID != id {
		m.purgeQuietly(ctx, rec.RemoteID)
	}
}

// awaitCleanup blocks until no teardown of id is running.
func (m *Manager) awaitCleanup(id string) {
	for {
		m.mu.Lock()
		cl, busy := m.cleaning[id]
		m.mu.Unlock()
		if !busy {
			return
		}
		m.logger.Infof("waiting for cleanup of %s to finish", id)
		<-cl.done
	}
}

func (m *Manager) closeQuietly(ctx context.Context, id string, conn Connection) {
	if conn == nil {
		return
	}
	m.logger.Infof("closing remote connection for session: %s", id)
	if err := conn.Close(ctx); err != nil {
		m.logger.Warnf("error closing session %s: %v", id, err)
		return
	}
	m.logger.Infof("successfully closed session: %s", id)
}

func (m *Manager) purgeQuietly(ctx context.Context, id string) {
	if m.purger == nil {
		return
	}
	if err := m.purger.Purge(ctx, id); err != nil {
		m.logger.Warnf("failed to clear artifacts for %s: %v", id, err)
	}
}

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(d *stubDriver, p *countingPurger) *Manager {
	return NewManager(d, WithPurger(p), WithContextID("ctx1"))
}

func TestNewManager_DefaultID(t *testing.T) {
	m := newTestManager(&stubDriver{}, newCountingPurger())

	assert.True(t, strings.HasPrefix(m.DefaultID(), "browserbase_session_ctx1_"), m.DefaultID())
	assert.Equal(t, m.DefaultID(), m.ActiveID())
	assert.Empty(t, m.Sessions())

	other := NewManager(&stubDriver{})
	assert.True(t, strings.HasPrefix(other.DefaultID(), "browserbase_session_default_"), other.DefaultID())
	assert.NotEqual(t, m.DefaultID(), other.DefaultID())
}

func TestGetOrCreate_DefaultConcurrentCallersShareOneCreation(t *testing.T) {
	d := &stubDriver{gate: make(chan struct{})}
	m := newTestManager(d, newCountingPurger())
	ctx := context.Background()

	const callers = 20
	var wg sync.WaitGroup
	results := make([]*Record, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = m.GetOrCreate(ctx, m.DefaultID(), true)
		}()
	}

	require.Eventually(t, func() bool { return d.callCount() == 1 }, time.Second, time.Millisecond)
	close(d.gate)
	wg.Wait()

	assert.Equal(t, 1, d.callCount())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestGetOrCreate_DefaultRegistersAndActivates(t *testing.T) {
	d := &stubDriver{}
	m := newTestManager(d, newCountingPurger())

	rec, err := m.GetOrCreate(context.Background(), m.DefaultID(), true)
	require.NoError(t, err)

	assert.Equal(t, m.DefaultID(), rec.ID)
	assert.Equal(t, "R1", rec.RemoteID)
	assert.Equal(t, m.DefaultID(), m.ActiveID())

	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, m.DefaultID(), sessions[0].ID)
	assert.True(t, sessions[0].Default)
	assert.True(t, sessions[0].Active)

	// A live default session is reused
	again, err := m.GetOrCreate(context.Background(), m.DefaultID(), true)
	require.NoError(t, err)
	assert.Same(t, rec, again)
	assert.Equal(t, 1, d.callCount())
}

func TestGetOrCreate_DefaultRetriesOnce(t *testing.T) {
	d := &stubDriver{errs: []error{errors.New("boom"), nil}}
	m := newTestManager(d, newCountingPurger())

	rec, err := m.GetOrCreate(context.Background(), m.DefaultID(), true)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, d.callCount())
	assert.Equal(t, m.DefaultID(), m.ActiveID())
}

func TestGetOrCreate_DefaultFailsAfterRetry(t *testing.T) {
	d := &stubDriver{errs: []error{errors.New("first"), errors.New("second")}}
	m := newTestManager(d, newCountingPurger())

	rec, err := m.GetOrCreate(context.Background(), m.DefaultID(), true)
	assert.Nil(t, rec)
	require.ErrorIs(t, err, ErrNoSession)

	var creationErr *CreationError
	require.ErrorAs(t, err, &creationErr)
	assert.Equal(t, 2, creationErr.Attempt)
	assert.EqualError(t, creationErr.Cause, "second")
	assert.Equal(t, 2, d.callCount())
	assert.Empty(t, m.Sessions())

	// The guard is released: the next request starts a new cycle
	_, err = m.GetOrCreate(context.Background(), m.DefaultID(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, d.callCount())
}

func TestGetOrCreate_DefaultConfigurationErrorNotRetried(t *testing.T) {
	d := &stubDriver{errs: []error{&ConfigurationError{Field: "Browserbase API key"}}}
	m := newTestManager(d, newCountingPurger())

	_, err := m.GetOrCreate(context.Background(), m.DefaultID(), true)
	require.ErrorIs(t, err, ErrNoSession)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Browserbase API key", cfgErr.Field)
	assert.Equal(t, 1, d.callCount())
}

func TestGetOrCreate_DefaultRecreatesStaleSession(t *testing.T) {
	d := &stubDriver{}
	p := newCountingPurger()
	m := newTestManager(d, p)
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, m.DefaultID(), true)
	require.NoError(t, err)

	d.page(0).closed.Store(true)

	second, err := m.GetOrCreate(ctx, m.DefaultID(), true)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, "R2", second.RemoteID)
	assert.Equal(t, 2, d.callCount())
	assert.Equal(t, int32(1), d.conn(0).closeCalls.Load())
	assert.Equal(t, 1, p.count(m.DefaultID()))
	require.Len(t, m.Sessions(), 1)
}

func TestGetOrCreate_WaiterGivesUpOnOwnContext(t *testing.T) {
	d := &stubDriver{gate: make(chan struct{})}
	m := newTestManager(d, newCountingPurger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.GetOrCreate(ctx, m.DefaultID(), true)
		done <- err
	}()

	require.Eventually(t, func() bool { return d.callCount() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// The shared creation still completes and is published
	close(d.gate)
	rec, err := m.GetOrCreate(context.Background(), m.DefaultID(), true)
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, 1, d.callCount())
}

func TestGetOrCreate_NonDefault(t *testing.T) {
	d := &stubDriver{}
	m := newTestManager(d, newCountingPurger())
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		rec, err := m.GetOrCreate(ctx, "missing", true)
		assert.Nil(t, rec)
		assert.ErrorIs(t, err, ErrNoSession)
		assert.Equal(t, 0, d.callCount())
	})

	t.Run("live becomes active", func(t *testing.T) {
		created, err := m.Create(ctx, "research", CreateOptions{})
		require.NoError(t, err)
		require.True(t, m.SetActive(m.DefaultID()))

		rec, err := m.GetOrCreate(ctx, "research", false)
		require.NoError(t, err)
		assert.Same(t, created, rec)
		assert.Equal(t, "research", m.ActiveID())
	})
}

func TestGetOrCreate_StaleSessionIsEvicted(t *testing.T) {
	tests := []struct {
		name  string
		stale func(d *stubDriver)
	}{
		{"connection dropped", func(d *stubDriver) { d.conn(0).connected.Store(false) }},
		{"page closed", func(d *stubDriver) { d.page(0).closed.Store(true) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &stubDriver{}
			p := newCountingPurger()
			m := newTestManager(d, p)
			ctx := context.Background()

			_, err := m.Create(ctx, "a", CreateOptions{})
			require.NoError(t, err)
			require.Equal(t, "a", m.ActiveID())

			tt.stale(d)

			rec, err := m.GetOrCreate(ctx, "a", false)
			assert.Nil(t, rec)
			require.ErrorIs(t, err, ErrNoSession)
			assert.Empty(t, m.Sessions())
			assert.Equal(t, m.DefaultID(), m.ActiveID())
			assert.Equal(t, int32(1), d.conn(0).closeCalls.Load())
			assert.Equal(t, 1, p.count("a"))
		})
	}
}

func TestSetActive(t *testing.T) {
	d := &stubDriver{}
	m := newTestManager(d, newCountingPurger())

	assert.False(t, m.SetActive("nonexistent"))
	assert.Equal(t, m.DefaultID(), m.ActiveID())

	_, err := m.Create(context.Background(), "a", CreateOptions{})
	require.NoError(t, err)

	assert.True(t, m.SetActive(m.DefaultID()))
	assert.Equal(t, m.DefaultID(), m.ActiveID())

	assert.False(t, m.SetActive("nonexistent"))
	assert.Equal(t, m.DefaultID(), m.ActiveID())

	assert.True(t, m.SetActive("a"))
	assert.Equal(t, "a", m.ActiveID())
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("passes resume id to driver", func(t *testing.T) {
		d := &stubDriver{remoteIDs: []string{"bb-existing"}}
		m := newTestManager(d, newCountingPurger())

		rec, err := m.Create(ctx, "resumed", CreateOptions{ResumeRemoteID: "bb-existing"})
		require.NoError(t, err)
		assert.Equal(t, "bb-existing", rec.RemoteID)
		assert.Equal(t, "bb-existing", d.opts[0].ResumeRemoteID)
		assert.Equal(t, "resumed", d.opts[0].InternalID)
		assert.Equal(t, "resumed", m.ActiveID())
	})

	t.Run("failure is returned without retry", func(t *testing.T) {
		d := &stubDriver{errs: []error{errors.New("remote down")}}
		m := newTestManager(d, newCountingPurger())

		rec, err := m.Create(ctx, "a", CreateOptions{})
		assert.Nil(t, rec)
		var creationErr *CreationError
		require.ErrorAs(t, err, &creationErr)
		assert.Equal(t, "a", creationErr.ID)
		assert.Equal(t, 1, creationErr.Attempt)
		assert.Equal(t, 1, d.callCount())
		assert.Empty(t, m.Sessions())
		assert.Equal(t, m.DefaultID(), m.ActiveID())
	})

	t.Run("rejects live duplicate", func(t *testing.T) {
		d := &stubDriver{}
		m := newTestManager(d, newCountingPurger())

		_, err := m.Create(ctx, "a", CreateOptions{})
		require.NoError(t, err)
		_, err = m.Create(ctx, "a", CreateOptions{})
		assert.ErrorIs(t, err, ErrSessionExists)
		assert.Equal(t, 1, d.callCount())
	})

	t.Run("replaces stale session", func(t *testing.T) {
		d := &stubDriver{}
		m := newTestManager(d, newCountingPurger())

		first, err := m.Create(ctx, "a", CreateOptions{})
		require.NoError(t, err)
		d.conn(0).connected.Store(false)

		second, err := m.Create(ctx, "a", CreateOptions{})
		require.NoError(t, err)
		assert.NotSame(t, first, second)
		assert.Equal(t, int32(1), d.conn(0).closeCalls.Load())
		require.Len(t, m.Sessions(), 1)
	})

	t.Run("rejects default and empty ids", func(t *testing.T) {
		m := newTestManager(&stubDriver{}, newCountingPurger())

		_, err := m.Create(ctx, m.DefaultID(), CreateOptions{})
		assert.ErrorIs(t, err, ErrDefaultID)
		_, err = m.Create(ctx, "", CreateOptions{})
		assert.Error(t, err)
	})

	t.Run("incomplete handle is a creation error", func(t *testing.T) {
		d := &stubDriver{remoteIDs: []string{""}}
		m := newTestManager(d, newCountingPurger())

		_, err := m.Create(ctx, "a", CreateOptions{})
		var creationErr *CreationError
		require.ErrorAs(t, err, &creationErr)
		assert.Equal(t, int32(1), d.conn(0).closeCalls.Load())
		assert.Empty(t, m.Sessions())
	})
}

func TestCleanup_ConcurrentCallsTearDownOnce(t *testing.T) {
	d := &stubDriver{}
	p := newCountingPurger()
	m := newTestManager(d, p)
	ctx := context.Background()

	_, err := m.Create(ctx, "a", CreateOptions{})
	require.NoError(t, err)

	conn := d.conn(0)
	conn.closeStarted = make(chan struct{})
	conn.closeGate = make(chan struct{})

	done := make(chan struct{})
	go func() {
		m.Cleanup(ctx, "a")
		close(done)
	}()
	<-conn.closeStarted

	// Teardown in progress: the identifier is unavailable and a second cleanup is a no-op
	m.Cleanup(ctx, "a")
	_, err = m.GetOrCreate(ctx, "a", false)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = m.Create(ctx, "a", CreateOptions{})
	assert.ErrorIs(t, err, ErrCleanupInProgress)

	close(conn.closeGate)
	<-done

	assert.Equal(t, int32(1), conn.closeCalls.Load())
	assert.Equal(t, 1, p.count("a"))
	assert.Empty(t, m.Sessions())
	assert.Equal(t, m.DefaultID(), m.ActiveID())
}

func TestCleanup_DisconnectDuringCleanupIsLeftToTeardown(t *testing.T) {
	d := &stubDriver{}
	p := newCountingPurger()
	m := newTestManager(d, p)
	ctx := context.Background()

	_, err := m.Create(ctx, "a", CreateOptions{})
	require.NoError(t, err)

	conn := d.conn(0)
	conn.closeStarted = make(chan struct{})
	conn.closeGate = make(chan struct{})

	done := make(chan struct{})
	go func() {
		m.Cleanup(ctx, "a")
		close(done)
	}()
	<-conn.closeStarted

	d.disconnect(0)
	assert.Equal(t, 0, p.count("a"))
	assert.Equal(t, 0, p.count("R1"))

	close(conn.closeGate)
	<-done

	assert.Empty(t, m.Sessions())
	assert.Equal(t, m.DefaultID(), m.ActiveID())
	assert.Equal(t, 1, p.count("a"))
	assert.Equal(t, 1, p.count("R1"))
}

func TestGetOrCreate_DefaultWaitsForRunningCleanup(t *testing.T) {
	d := &stubDriver{}
	p := newCountingPurger()
	m := newTestManager(d, p)
	ctx := context.Background()
	id := m.DefaultID()

	first, err := m.GetOrCreate(ctx, id, true)
	require.NoError(t, err)
	require.Equal(t, "R1", first.RemoteID)

	conn := d.conn(0)
	conn.closeStarted = make(chan struct{})
	conn.closeGate = make(chan struct{})

	cleaned := make(chan struct{})
	go func() {
		m.Cleanup(ctx, id)
		close(cleaned)
	}()
	<-conn.closeStarted

	type result struct {
		rec *Record
		err error
	}
	replaced := make(chan result, 1)
	go func() {
		rec, err := m.GetOrCreate(ctx, id, true)
		replaced <- result{rec, err}
	}()

	assert.Never(t, func() bool { return d.callCount() > 1 }, 50*time.Millisecond, 5*time.Millisecond,
		"replacement must not be created while the old record is torn down")

	close(conn.closeGate)
	<-cleaned
	res := <-replaced
	require.NoError(t, res.err)
	assert.Equal(t, "R2", res.rec.RemoteID)

	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "R2", sessions[0].RemoteID)
	assert.True(t, sessions[0].Default)
	assert.True(t, sessions[0].Active)
	assert.Equal(t, id, m.ActiveID())

	// The cleanup purged only the old record's artifacts
	assert.Equal(t, 1, p.count(id))
	assert.Equal(t, 1, p.count("R1"))
	assert.Equal(t, 0, p.count("R2"))

	// The replacement still reacts to its own disconnect
	d.disconnect(1)
	assert.Empty(t, m.Sessions())
	assert.Equal(t, 2, p.count(id))
	assert.Equal(t, 1, p.count("R2"))
}

func TestCleanup_FailuresDoNotBlockStateCleanup(t *testing.T) {
	d := &stubDriver{closeErr: errors.New("close failed")}
	p := newCountingPurger()
	p.err = errors.New("purge failed")
	m := newTestManager(d, p)
	ctx := context.Background()

	_, err := m.GetOrCreate(ctx, m.DefaultID(), true)
	require.NoError(t, err)

	m.Cleanup(ctx, m.DefaultID())
	assert.Empty(t, m.Sessions())
	assert.Equal(t, m.DefaultID(), m.ActiveID())

	// The cleaning mark was released
	m.Cleanup(ctx, m.DefaultID())
	assert.Equal(t, 2, p.count(m.DefaultID()))
}

func TestCleanup_UnknownIDIsNoop(t *testing.T) {
	p := newCountingPurger()
	m := newTestManager(&stubDriver{}, p)

	m.Cleanup(context.Background(), "ghost")
	assert.Empty(t, m.Sessions())
	assert.Equal(t, m.DefaultID(), m.ActiveID())
	assert.Equal(t, 1, p.count("ghost"))
}

func TestCleanup_DefaultThenRecreate(t *testing.T) {
	d := &stubDriver{remoteIDs: []string{"R1", "R2"}}
	m := newTestManager(d, newCountingPurger())
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, m.DefaultID(), true)
	require.NoError(t, err)
	assert.Equal(t, "R1", first.RemoteID)
	assert.Equal(t, m.DefaultID(), m.ActiveID())

	m.Cleanup(ctx, m.DefaultID())

	second, err := m.GetOrCreate(ctx, m.DefaultID(), true)
	require.NoError(t, err)
	assert.Equal(t, "R2", second.RemoteID)
	assert.NotEqual(t, first.RemoteID, second.RemoteID)
	assert.Equal(t, 2, d.callCount())
}

func TestCleanupAll(t *testing.T) {
	d := &stubDriver{closeErr: errors.New("close failed")}
	m := newTestManager(d, newCountingPurger())
	ctx := context.Background()

	_, err := m.GetOrCreate(ctx, m.DefaultID(), true)
	require.NoError(t, err)
	_, err = m.Create(ctx, "a", CreateOptions{})
	require.NoError(t, err)
	_, err = m.Create(ctx, "b", CreateOptions{})
	require.NoError(t, err)
	require.Len(t, m.Sessions(), 3)
	require.Equal(t, "b", m.ActiveID())

	m.CleanupAll(ctx)

	assert.Empty(t, m.Sessions())
	assert.Equal(t, m.DefaultID(), m.ActiveID())
	for i := 0; i < 3; i++ {
		assert.Equal(t, int32(1), d.conn(i).closeCalls.Load())
	}

	// The default session can be created again afterwards
	_, err = m.GetOrCreate(ctx, m.DefaultID(), true)
	require.NoError(t, err)
	assert.Equal(t, 4, d.callCount())
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("active non-default resets active id", func(t *testing.T) {
		d := &stubDriver{remoteIDs: []string{"bb-1"}}
		p := newCountingPurger()
		m := newTestManager(d, p)

		_, err := m.Create(ctx, "a", CreateOptions{})
		require.NoError(t, err)
		require.Equal(t, "a", m.ActiveID())

		d.disconnect(0)

		assert.Equal(t, m.DefaultID(), m.ActiveID())
		assert.Empty(t, m.Sessions())
		assert.Equal(t, 1, p.count("a"))
		assert.Equal(t, 1, p.count("bb-1"))

		// Applying the same disconnect twice is harmless
		d.disconnect(0)
		assert.Equal(t, 1, p.count("a"))
	})

	t.Run("default clears default record", func(t *testing.T) {
		d := &stubDriver{}
		m := newTestManager(d, newCountingPurger())

		_, err := m.GetOrCreate(ctx, m.DefaultID(), true)
		require.NoError(t, err)

		d.disconnect(0)
		assert.Empty(t, m.Sessions())
		assert.Equal(t, m.DefaultID(), m.ActiveID())

		_, err = m.GetOrCreate(ctx, m.DefaultID(), true)
		require.NoError(t, err)
		assert.Equal(t, 2, d.callCount())
	})

	t.Run("late disconnect of replaced record is ignored", func(t *testing.T) {
		d := &stubDriver{}
		m := newTestManager(d, newCountingPurger())

		_, err := m.GetOrCreate(ctx, m.DefaultID(), true)
		require.NoError(t, err)
		m.Cleanup(ctx, m.DefaultID())
		current, err := m.GetOrCreate(ctx, m.DefaultID(), true)
		require.NoError(t, err)

		d.disconnect(0)

		sessions := m.Sessions()
		require.Len(t, sessions, 1)
		assert.Equal(t, current.RemoteID, sessions[0].RemoteID)
	})

	t.Run("inactive session keeps active id", func(t *testing.T) {
		d := &stubDriver{}
		m := newTestManager(d, newCountingPurger())

		_, err := m.Create(ctx, "a", CreateOptions{})
		require.NoError(t, err)
		_, err = m.Create(ctx, "b", CreateOptions{})
		require.NoError(t, err)

		d.disconnect(0)
		assert.Equal(t, "b", m.ActiveID())
		require.Len(t, m.Sessions(), 1)
	})
}

func TestActive_CreatesDefault(t *testing.T) {
	d := &stubDriver{}
	m := newTestManager(d, newCountingPurger())

	rec, err := m.Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.DefaultID(), rec.ID)

	_, err = m.Create(context.Background(), "a", CreateOptions{})
	require.NoError(t, err)
	rec, err = m.Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", rec.ID)
}

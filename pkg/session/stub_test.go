package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type stubConn struct {
	connected  atomic.Bool
	closeCalls atomic.Int32
	closeErr   error

	// closeStarted receives once when Close is entered; closeGate blocks Close until closed
	closeStarted chan struct{}
	closeGate    chan struct{}
	startedOnce  sync.Once
}

func newStubConn() *stubConn {
	c := &stubConn{}
	c.connected.Store(true)
	return c
}

func (c *stubConn) IsConnected() bool { return c.connected.Load() }

func (c *stubConn) Close(ctx context.Context) error {
	c.closeCalls.Add(1)
	if c.closeStarted != nil {
		c.startedOnce.Do(func() { close(c.closeStarted) })
	}
	if c.closeGate != nil {
		<-c.closeGate
	}
	c.connected.Store(false)
	return c.closeErr
}

type stubPage struct {
	closed atomic.Bool
}

func (p *stubPage) IsClosed() bool                  { return p.closed.Load() }
func (p *stubPage) URL() string                     { return "about:blank" }
func (p *stubPage) Content() (string, error)        { return "<html></html>", nil }
func (p *stubPage) Screenshot(bool) ([]byte, error) { return []byte("png"), nil }

// stubDriver counts Create calls and hands out stub connections.
type stubDriver struct {
	mu        sync.Mutex
	calls     int
	errs      []error // consumed in call order; nil entries succeed
	remoteIDs []string
	gate      chan struct{}
	closeErr  error

	conns []*stubConn
	pages []*stubPage
	opts  []DriverOptions
}

func (d *stubDriver) Create(ctx context.Context, opts DriverOptions) (*Handle, error) {
	d.mu.Lock()
	d.calls++
	n := d.calls
	gate := d.gate
	d.opts = append(d.opts, opts)
	var err error
	if len(d.errs) > 0 {
		err = d.errs[0]
		d.errs = d.errs[1:]
	}
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	remoteID := fmt.Sprintf("R%d", n)
	d.mu.Lock()
	if len(d.remoteIDs) > 0 {
		remoteID = d.remoteIDs[0]
		d.remoteIDs = d.remoteIDs[1:]
	}
	conn := newStubConn()
	conn.closeErr = d.closeErr
	page := &stubPage{}
	d.conns = append(d.conns, conn)
	d.pages = append(d.pages, page)
	d.mu.Unlock()

	return &Handle{Conn: conn, Page: page, RemoteID: remoteID, DebugURL: "https://example.test/" + remoteID}, nil
}

func (d *stubDriver) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *stubDriver) conn(i int) *stubConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *stubDriver) page(i int) *stubPage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pages[i]
}

func (d *stubDriver) disconnect(i int) {
	d.mu.Lock()
	opts := d.opts[i]
	d.mu.Unlock()
	opts.OnDisconnect()
}

// countingPurger records Purge calls per identifier.
type countingPurger struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newCountingPurger() *countingPurger {
	return &countingPurger{counts: make(map[string]int)}
}

func (p *countingPurger) Purge(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[id]++
	return p.err
}

func (p *countingPurger) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[id]
}

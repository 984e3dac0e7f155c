package session

import (
	"context"
	"time"
)

// Connection is the live connection to a remote browser.
type Connection interface {
	// IsConnected reports whether the remote browser is still reachable
	IsConnected() bool

	// Close tears down the remote connection. It may fail; callers treat it as best-effort.
	Close(ctx context.Context) error
}

// Page is the active tab of a remote browser.
type Page interface {
	// IsClosed reports whether the page has been closed
	IsClosed() bool

	// URL returns the current page URL
	URL() string

	// Content returns the page HTML
	Content() (string, error)

	// Screenshot captures the page as PNG
	Screenshot(fullPage bool) ([]byte, error)
}

// Handle is what a Driver returns for a successfully created remote session.
type Handle struct {
	Conn     Connection
	Page     Page
	RemoteID string

	// DebugURL is the live debugger URL for the remote session, if the provider offers one
	DebugURL string
}

// DriverOptions configures a single Driver.Create call.
type DriverOptions struct {
	// InternalID is the manager-side identifier, used for logging by the driver
	InternalID string

	// ResumeRemoteID attaches to an existing remote session instead of creating one
	ResumeRemoteID string

	// OnDisconnect is invoked by the driver when the connection drops on its own.
	// It may be called from any goroutine and at most once per Handle.
	OnDisconnect func()
}

// Driver creates remote browser sessions.
type Driver interface {
	Create(ctx context.Context, opts DriverOptions) (*Handle, error)
}

// Purger removes captured artifacts for a session identifier.
// Purging an identifier without artifacts must succeed.
type Purger interface {
	Purge(ctx context.Context, sessionID string) error
}

// Record is one live remote browser session bound to one internal identifier.
type Record struct {
	ID        string
	RemoteID  string
	Conn      Connection
	Page      Page
	DebugURL  string
	CreatedAt time.Time

	// gen distinguishes records that reuse an identifier over time
	gen uint64
}

// CreateOptions configures Create for a named, non-default session.
type CreateOptions struct {
	// ResumeRemoteID resumes an existing remote session by its remote identifier
	ResumeRemoteID string
}

// SessionInfo contains metadata about a registered session.
type SessionInfo struct {
	ID        string
	RemoteID  string
	DebugURL  string
	CreatedAt time.Time
	Default   bool
	Active    bool
}

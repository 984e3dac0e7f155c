// Package browserbase implements session.Driver on top of Browserbase remote
// browsers, attached to with Playwright over CDP.
package browserbase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/browserhub/pkg/config"
	"github.com/entrhq/browserhub/pkg/logging"
	"github.com/entrhq/browserhub/pkg/session"
)

// DebuggerURLFormat is the Browserbase live debugger page for a session id.
const DebuggerURLFormat = "https://www.browserbase.com/sessions/%s"

// releaseTimeout bounds the release of a remote session that could not be attached.
const releaseTimeout = 10 * time.Second

// Driver creates or resumes Browserbase sessions and attaches Playwright to them.
type Driver struct {
	cfg    config.BrowserbaseConfig
	client *Client
	logger *logging.Logger

	// runPlaywright starts the Playwright driver; replaced in tests.
	runPlaywright func() (*playwright.Playwright, error)

	mu         sync.Mutex
	playwright *playwright.Playwright
}

// New creates a driver for cfg. httpClient may be nil.
func New(cfg config.BrowserbaseConfig, logger *logging.Logger, httpClient *http.Client) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Driver{
		cfg:           cfg,
		client:        NewClient(cfg.BaseURL, cfg.APIKey, httpClient),
		logger:        logger,
		runPlaywright: startPlaywright,
	}
}

// startPlaywright installs and runs the Playwright driver. Browsers are not
// installed: every browser is remote.
func startPlaywright() (*playwright.Playwright, error) {
	opts := &playwright.RunOptions{
		SkipInstallBrowsers: true,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	return pw, nil
}

// Initialize starts the Playwright driver. It is called lazily by Create and
// is safe to call again.
func (d *Driver) Initialize() error {
	_, err := d.ensurePlaywright()
	return err
}

func (d *Driver) ensurePlaywright() (*playwright.Playwright, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.playwright != nil {
		return d.playwright, nil
	}
	pw, err := d.runPlaywright()
	if err != nil {
		return nil, err
	}
	d.playwright = pw
	return pw, nil
}

// Shutdown stops the Playwright driver. Sessions should be cleaned up first.
func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.playwright == nil {
		return nil
	}
	pw := d.playwright
	d.playwright = nil
	if err := pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// Create implements session.Driver. A newly created remote session that
// cannot be attached to is released before the error is returned.
func (d *Driver) Create(ctx context.Context, opts session.DriverOptions) (*session.Handle, error) {
	if d.cfg.APIKey == "" {
		return nil, &session.ConfigurationError{Field: "Browserbase API key"}
	}
	if d.cfg.ProjectID == "" {
		return nil, &session.ConfigurationError{Field: "Browserbase project ID"}
	}

	remote, err := d.remoteSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	if remote.ID == "" {
		return nil, fmt.Errorf("browserbase session id and connect URL are required but were not returned")
	}

	handle, err := d.attach(remote, opts)
	if err != nil {
		if opts.ResumeRemoteID == "" {
			d.release(ctx, remote.ID)
		}
		return nil, err
	}
	return handle, nil
}

// attach connects Playwright to a remote session and picks its page.
func (d *Driver) attach(remote *RemoteSession, opts session.DriverOptions) (*session.Handle, error) {
	if remote.ConnectURL == "" {
		return nil, fmt.Errorf("browserbase session id and connect URL are required but were not returned")
	}

	pw, err := d.ensurePlaywright()
	if err != nil {
		return nil, err
	}

	browser, err := pw.Chromium.ConnectOverCDP(remote.ConnectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect over CDP: %w", err)
	}

	page, err := d.activePage(browser)
	if err != nil {
		_ = browser.Close()
		return nil, err
	}

	if opts.OnDisconnect != nil {
		var once sync.Once
		browser.OnDisconnected(func(playwright.Browser) {
			once.Do(opts.OnDisconnect)
		})
	}

	return &session.Handle{
		Conn:     &connection{browser: browser},
		Page:     &pageHandle{page: page},
		RemoteID: remote.ID,
		DebugURL: fmt.Sprintf(DebuggerURLFormat, remote.ID),
	}, nil
}

// release ends a remote session this driver created but could not hand out.
// Errors are logged; the session still times out on the Browserbase side.
func (d *Driver) release(ctx context.Context, remoteID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := d.client.ReleaseSession(ctx, d.cfg.ProjectID, remoteID); err != nil {
		d.logger.Warnf("failed to release browserbase session %s: %v", remoteID, err)
		return
	}
	d.logger.Infof("released browserbase session %s", remoteID)
}

// remoteSession creates a Browserbase session, or looks up the one to resume.
func (d *Driver) remoteSession(ctx context.Context, opts session.DriverOptions) (*RemoteSession, error) {
	if opts.ResumeRemoteID != "" {
		d.logger.Infof("resuming browserbase session %s for %s", opts.ResumeRemoteID, opts.InternalID)
		rs, err := d.client.GetSession(ctx, opts.ResumeRemoteID)
		if err != nil {
			return nil, err
		}
		if rs.Status != StatusRunning {
			return nil, fmt.Errorf("browserbase session %s is not running (status %s)", opts.ResumeRemoteID, rs.Status)
		}
		return rs, nil
	}

	d.logger.Infof("creating browserbase session for %s", opts.InternalID)
	return d.client.CreateSession(ctx, d.createRequest())
}

func (d *Driver) createRequest() CreateSessionRequest {
	req := CreateSessionRequest{
		ProjectID: d.cfg.ProjectID,
		Proxies:   d.cfg.Proxies,
		KeepAlive: d.cfg.KeepAlive,
		BrowserSettings: BrowserSettings{
			Viewport: Viewport{
				Width:  d.cfg.Viewport.Width,
				Height: d.cfg.Viewport.Height,
			},
			AdvancedStealth: d.cfg.AdvancedStealth,
		},
		UserMetadata: map[string]string{"mcp": "true"},
	}
	if req.BrowserSettings.Viewport.Width == 0 {
		req.BrowserSettings.Viewport.Width = config.DefaultViewportWidth
	}
	if req.BrowserSettings.Viewport.Height == 0 {
		req.BrowserSettings.Viewport.Height = config.DefaultViewportHeight
	}
	if d.cfg.Context.ID != "" {
		req.BrowserSettings.Context = &ContextSettings{
			ID:      d.cfg.Context.ID,
			Persist: d.cfg.Context.ShouldPersist(),
		}
	}
	return req
}

// activePage returns the first page of the remote default context, creating
// one if the browser has none, and injects configured cookies into it.
func (d *Driver) activePage(browser playwright.Browser) (playwright.Page, error) {
	var bctx playwright.BrowserContext
	if contexts := browser.Contexts(); len(contexts) > 0 {
		bctx = contexts[0]
	} else {
		created, err := browser.NewContext()
		if err != nil {
			return nil, fmt.Errorf("failed to create context: %w", err)
		}
		bctx = created
	}

	d.addCookies(bctx)

	if pages := bctx.Pages(); len(pages) > 0 {
		return pages[0], nil
	}
	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return page, nil
}

// addCookies injects configured cookies; failures are logged, not returned.
func (d *Driver) addCookies(bctx playwright.BrowserContext) {
	if len(d.cfg.Cookies) == 0 {
		return
	}

	d.logger.Infof("adding %d cookies to browser context", len(d.cfg.Cookies))
	if err := bctx.AddCookies(toPlaywrightCookies(d.cfg.Cookies)); err != nil {
		d.logger.Errorf("error adding cookies to browser context: %v", err)
		return
	}
	d.logger.Infof("successfully added cookies to browser context")
}

var sameSite = map[string]*playwright.SameSiteAttribute{
	"Strict": playwright.SameSiteAttributeStrict,
	"Lax":    playwright.SameSiteAttributeLax,
	"None":   playwright.SameSiteAttributeNone,
}

func toPlaywrightCookies(in []config.CookieConfig) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(in))
	for _, c := range in {
		ck := playwright.OptionalCookie{
			Name:  c.Name,
			Value: c.Value,
		}
		if c.URL != "" {
			ck.URL = playwright.String(c.URL)
		} else {
			ck.Domain = playwright.String(c.Domain)
			path := c.Path
			if path == "" {
				path = "/"
			}
			ck.Path = playwright.String(path)
		}
		if c.Expires > 0 {
			ck.Expires = playwright.Float(c.Expires)
		}
		if c.HTTPOnly {
			ck.HttpOnly = playwright.Bool(true)
		}
		if c.Secure {
			ck.Secure = playwright.Bool(true)
		}
		if s, ok := sameSite[c.SameSite]; ok {
			ck.SameSite = s
		}
		out = append(out, ck)
	}
	return out
}

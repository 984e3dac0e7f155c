package browserbase

import (
	"context"

	"github.com/playwright-community/playwright-go"
)

// connection adapts a Playwright browser to session.Connection.
type connection struct {
	browser playwright.Browser
}

func (c *connection) IsConnected() bool {
	return c.browser.IsConnected()
}

// Close disconnects from the remote browser, which ends the Browserbase session
// unless it was created with keep-alive.
func (c *connection) Close(ctx context.Context) error {
	return c.browser.Close()
}

// pageHandle adapts a Playwright page to session.Page.
type pageHandle struct {
	page playwright.Page
}

func (p *pageHandle) IsClosed() bool {
	return p.page.IsClosed()
}

func (p *pageHandle) URL() string {
	return p.page.URL()
}

func (p *pageHandle) Content() (string, error) {
	return p.page.Content()
}

func (p *pageHandle) Screenshot(fullPage bool) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	})
}

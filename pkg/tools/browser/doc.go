// Package browser exposes remote browser sessions to agents as tools.
//
// Every tool acts through a session.Manager. Tools that are not given a
// session act on the active one; only the default session is created on
// demand, named sessions must be started explicitly.
//
// # Tools
//
//   - start_browser_session: create or resume a named session, or start the default one
//   - list_browser_sessions: list sessions with their debugger URLs
//   - set_active_browser_session: switch the active session
//   - close_browser_session: close a session and purge its screenshots
//   - browser_screenshot: capture the page and store it with the session
//   - list_screenshots: list stored screenshots of a session
//
// # Example Usage
//
//	registry := browser.NewToolRegistry(mgr, store, logger)
//	out, meta, err := registry.Set().Execute(ctx, "browser_screenshot",
//	    tools.BuildArguments("name", "checkout"))
package browser

// Package browser adapts a real headless browser behind a small interface.
//
// # Architecture
//
//   - Driver creates isolated Contexts (proxy + fingerprint + session)
//   - Context opens Pages
//   - Page exposes exactly the operations the crawler needs: navigate,
//     wait, smart-scroll, HTML, screenshot, click, type
//
// The production implementation is RodDriver on go-rod/Chromium. The crawl
// scheduler and the auth workflow depend only on the interfaces, so tests
// drive them with in-memory fakes and never launch a browser.
//
// # Error classification
//
// Navigation failures cross this boundary as *NavigationError with a typed
// Kind (proxy, timeout, transport, other). Classify is the single place that
// inspects raw Chromium error strings; the retry policy in the scheduler
// matches on the Kind exhaustively instead of grepping messages.
package browser

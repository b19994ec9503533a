// Package browser abstracts the automated page session the engine inspects.
//
// The core packages (pagestate, fingerprint, comments, discover) depend only
// on the Session interface. Two implementations are provided:
//
//   - RodSession: a live Chrome tab driven through go-rod with stealth
//     patches and JSON response capture.
//   - Snapshot: a static page snapshot (URL + HTML + captured payloads),
//     used by the HTTP surface and by tests.
//
// Transient DOM failures (stale nodes, missing elements) surface as
// ErrNoMatch or wrapped errors; callers treat them as "locator did not
// match", never as fatal.
package browser

import (
	"context"
	"errors"
)

// ErrNoMatch is returned by QueryOne when a locator matches nothing.
var ErrNoMatch = errors.New("browser: no element matches locator")

// Element is one matched DOM element.
type Element interface {
	// Text returns the element's visible text.
	Text(ctx context.Context) (string, error)

	// Attr returns the value of a named attribute, empty when absent.
	Attr(ctx context.Context, name string) (string, error)
}

// Session is a read-only handle on the current page.
type Session interface {
	// CurrentURL returns the page's current URL.
	CurrentURL() string

	// HTML returns the serialised document.
	HTML(ctx context.Context) (string, error)

	// VisibleText returns the page's rendered text content.
	VisibleText(ctx context.Context) (string, error)

	// QueryOne resolves a locator to a single element. Locators starting
	// with "//" are treated as XPath, everything else as CSS.
	QueryOne(ctx context.Context, locator string) (Element, error)

	// QueryAll resolves a locator to all matching elements. An empty
	// result is not an error.
	QueryAll(ctx context.Context, locator string) ([]Element, error)

	// Payloads returns JSON response bodies captured from the page's own
	// API traffic, in arrival order.
	Payloads() []string
}

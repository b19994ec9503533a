package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodSession drives a live Chrome tab through go-rod.
type RodSession struct {
	page   *rod.Page
	router *rod.HijackRouter

	mu       sync.Mutex
	payloads []string
}

// OpenPage creates a stealth tab, starts JSON response capture, and
// navigates to pageURL.
func OpenPage(ctx context.Context, b *rod.Browser, pageURL string) (*RodSession, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create stealth tab: %w", err)
	}

	s := &RodSession{page: page}
	if err := s.captureJSON(); err != nil {
		page.Close()
		return nil, err
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		// Partial load is still inspectable.
		return s, nil
	}
	return s, nil
}

// captureJSON hijacks XHR/fetch traffic and records JSON response bodies.
// The same comment data often arrives over the page's own API before it is
// rendered, so capture must start before navigation.
func (s *RodSession) captureJSON() error {
	s.router = s.page.HijackRequests()
	handler := func(h *rod.Hijack) {
		if err := h.LoadResponse(http.DefaultClient, true); err != nil {
			return
		}
		ct := h.Response.Headers().Get("Content-Type")
		if !strings.Contains(ct, "application/json") {
			return
		}
		body := h.Response.Body()
		if body == "" {
			return
		}
		s.mu.Lock()
		s.payloads = append(s.payloads, body)
		s.mu.Unlock()
	}
	if err := s.router.Add("*", proto.NetworkResourceTypeXHR, handler); err != nil {
		return fmt.Errorf("browser: hijack xhr: %w", err)
	}
	if err := s.router.Add("*", proto.NetworkResourceTypeFetch, handler); err != nil {
		return fmt.Errorf("browser: hijack fetch: %w", err)
	}
	go s.router.Run()
	return nil
}

// Page exposes the underlying rod page (scrolling, screenshots, admin).
func (s *RodSession) Page() *rod.Page { return s.page }

// CurrentURL returns the tab's current URL, empty on error.
func (s *RodSession) CurrentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// HTML serialises the full document.
func (s *RodSession) HTML(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// VisibleText returns the rendered body text.
func (s *RodSession) VisibleText(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ''`)
	if err != nil {
		return "", fmt.Errorf("browser: get text: %w", err)
	}
	return res.Value.Str(), nil
}

// QueryOne resolves a locator without waiting for it to appear.
func (s *RodSession) QueryOne(ctx context.Context, locator string) (Element, error) {
	p := s.page.Context(ctx).Sleeper(rod.NotFoundSleeper)

	var el *rod.Element
	var err error
	if strings.HasPrefix(locator, "//") {
		el, err = p.ElementX(locator)
	} else {
		el, err = p.Element(locator)
	}
	if err != nil {
		return nil, ErrNoMatch
	}
	return rodElement{el: el}, nil
}

// QueryAll resolves a locator to all current matches.
func (s *RodSession) QueryAll(ctx context.Context, locator string) ([]Element, error) {
	p := s.page.Context(ctx)

	var els rod.Elements
	var err error
	if strings.HasPrefix(locator, "//") {
		els, err = p.ElementsX(locator)
	} else {
		els, err = p.Elements(locator)
	}
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", locator, err)
	}

	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, rodElement{el: el})
	}
	return out, nil
}

// Payloads returns captured JSON bodies.
func (s *RodSession) Payloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.payloads))
	copy(out, s.payloads)
	return out
}

// Close stops capture and closes the tab.
func (s *RodSession) Close() error {
	if s.router != nil {
		s.router.Stop()
	}
	if s.page != nil {
		return s.page.Close()
	}
	return nil
}

type rodElement struct {
	el *rod.Element
}

func (e rodElement) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("browser: element text: %w", err)
	}
	return text, nil
}

func (e rodElement) Attr(ctx context.Context, name string) (string, error) {
	val, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", fmt.Errorf("browser: element attr %q: %w", name, err)
	}
	if val == nil {
		return "", nil
	}
	return *val, nil
}

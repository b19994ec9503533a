// Package fingerprint captures content-agnostic digests of a page's
// structural shape and detects when the target site changes its layout.
//
// A fingerprint is a hash over structural counts and flags only — form,
// input, and button counts, presence of key containers, mobile layout —
// never text, so dynamic copy and localisation cannot trigger false
// positives. Fingerprints are versioned per page category; each change
// links to its predecessor and emits an event to registered listeners.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/driftlab/drift/browser"
)

// Summary is the normalised structural summary a fingerprint hashes over.
type Summary struct {
	FormCount    int             `json:"form_count"`
	InputCount   int             `json:"input_count"`
	InputsByType map[string]int  `json:"inputs_by_type,omitempty"`
	ButtonCount  int             `json:"button_count"`
	Containers   map[string]bool `json:"containers,omitempty"`
	MobileLayout bool            `json:"mobile_layout"`
}

// keyContainers are the structural landmarks whose presence is recorded.
// Detection is presence-only; the selectors themselves never feed the hash.
var keyContainers = map[string]string{
	"nav":         "nav, [role='navigation']",
	"main":        "main, [role='main']",
	"article":     "article",
	"commentList": "article ul, [role='list']",
	"dialog":      "[role='dialog']",
	"loginForm":   "form[id*='login'], form[action*='login']",
}

// Hash returns the digest of the summary: sha256 over a canonical JSON
// serialisation, truncated to 128 bits. encoding/json emits map keys in
// sorted order, so identical summaries always hash identically.
func (s *Summary) Hash() string {
	data, _ := json.Marshal(s)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16])
}

// Canonical returns the serialised form stored alongside the hash.
func (s *Summary) Canonical() string {
	data, _ := json.Marshal(s)
	return string(data)
}

// Capture builds a structural summary from the current page.
func Capture(ctx context.Context, page browser.Session) (*Summary, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: capture: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("fingerprint: parse: %w", err)
	}

	s := &Summary{
		InputsByType: map[string]int{},
		Containers:   map[string]bool{},
	}

	s.FormCount = doc.Find("form").Length()
	doc.Find("input").Each(func(_ int, sel *goquery.Selection) {
		s.InputCount++
		typ, _ := sel.Attr("type")
		if typ == "" {
			typ = "text"
		}
		s.InputsByType[strings.ToLower(typ)]++
	})
	s.ButtonCount = doc.Find("button, [role='button']").Length()

	for name, selector := range keyContainers {
		if doc.Find(selector).Length() > 0 {
			s.Containers[name] = true
		}
	}

	s.MobileLayout = detectMobileLayout(page.CurrentURL(), doc)

	if len(s.InputsByType) == 0 {
		s.InputsByType = nil
	}
	if len(s.Containers) == 0 {
		s.Containers = nil
	}
	return s, nil
}

// detectMobileLayout guesses the served layout class. The target serves a
// distinct mobile shell from m.-prefixed hosts and marks the body on
// responsive cohorts.
func detectMobileLayout(pageURL string, doc *goquery.Document) bool {
	if strings.Contains(pageURL, "://m.") {
		return true
	}
	if cls, ok := doc.Find("body").Attr("class"); ok {
		if strings.Contains(strings.ToLower(cls), "mobile") {
			return true
		}
	}
	return false
}

package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Snapshot is a static page snapshot implementing Session. The HTTP surface
// builds one from a posted page dump; tests build them from fixtures.
type Snapshot struct {
	URL          string   `json:"url"`
	Document     string   `json:"html"`
	Text         string   `json:"text,omitempty"`
	JSONPayloads []string `json:"payloads,omitempty"`

	doc *goquery.Document
}

// parse lazily builds the goquery document.
func (s *Snapshot) parse() (*goquery.Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.Document))
	if err != nil {
		return nil, fmt.Errorf("browser: parse snapshot: %w", err)
	}
	s.doc = doc
	return doc, nil
}

func (s *Snapshot) CurrentURL() string { return s.URL }

func (s *Snapshot) HTML(ctx context.Context) (string, error) {
	return s.Document, nil
}

// VisibleText returns the Text field when set, otherwise the document text
// with script and style content stripped.
func (s *Snapshot) VisibleText(ctx context.Context) (string, error) {
	if s.Text != "" {
		return s.Text, nil
	}
	doc, err := s.parse()
	if err != nil {
		return "", err
	}
	clone := doc.Clone()
	clone.Find("script, style, noscript").Remove()
	return strings.TrimSpace(clone.Text()), nil
}

// QueryOne matches a CSS locator against the static document. XPath
// locators are not supported on snapshots and report no match.
func (s *Snapshot) QueryOne(ctx context.Context, locator string) (Element, error) {
	if strings.HasPrefix(locator, "//") {
		return nil, ErrNoMatch
	}
	doc, err := s.parse()
	if err != nil {
		return nil, err
	}
	sel := doc.Find(locator)
	if sel.Length() == 0 {
		return nil, ErrNoMatch
	}
	return staticElement{sel: sel.First()}, nil
}

func (s *Snapshot) QueryAll(ctx context.Context, locator string) ([]Element, error) {
	if strings.HasPrefix(locator, "//") {
		return nil, nil
	}
	doc, err := s.parse()
	if err != nil {
		return nil, err
	}
	var out []Element
	doc.Find(locator).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, staticElement{sel: sel})
	})
	return out, nil
}

func (s *Snapshot) Payloads() []string { return s.JSONPayloads }

type staticElement struct {
	sel *goquery.Selection
}

func (e staticElement) Text(ctx context.Context) (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e staticElement) Attr(ctx context.Context, name string) (string, error) {
	val, _ := e.sel.Attr(name)
	return val, nil
}

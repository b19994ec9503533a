package comments

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/driftlab/drift/browser"
)

// domContainerSelectors are the structural patterns comment containers
// show up under in rendered markup, regardless of the class-name churn
// above them.
var domContainerSelectors = []string{
	`[data-testid*="comment"]`,
	`[class*="comment"] li`,
	"ul li",
	`[role="listitem"]`,
}

// extractDOM walks rendered markup for containers that pair a profile
// link with an adjacent text node. Weakest structured strategy: it only
// sees what is rendered, and it guesses at which text node is the body.
func (p *Pipeline) extractDOM(ctx context.Context, page browser.Session, contentID string) []Comment {
	raw, err := page.HTML(ctx)
	if err != nil {
		p.logger.Debug("comments: dom stage: page html unavailable", "error", err)
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}

	var found []Comment
	for _, sel := range domContainerSelectors {
		doc.Find(sel).Each(func(_ int, container *goquery.Selection) {
			if c, ok := commentFromContainer(container, contentID); ok {
				found = append(found, c)
			}
		})
		if len(found) > 0 {
			break
		}
	}
	return found
}

// commentFromContainer pairs the container's profile link with the first
// plausible body text node next to it.
func commentFromContainer(container *goquery.Selection, contentID string) (Comment, bool) {
	link := container.Find(`a[href^="/"]`).First()
	author := strings.TrimPrefix(strings.TrimSpace(link.Text()), "@")
	if author == "" || strings.ContainsAny(author, " \n") {
		return Comment{}, false
	}

	body := adjacentBodyText(container, author)
	if len(body) < 1 {
		return Comment{}, false
	}
	if isChrome("", body) {
		return Comment{}, false
	}

	c := Comment{
		ID:         synthesizeID(author, body),
		ContentID:  contentID,
		Author:     author,
		Body:       body,
		Timestamp:  time.Now().UnixMilli(),
		Provenance: ProvenanceDOM,
	}
	return c, true
}

// adjacentBodyText returns the first leaf text node in the container that
// is not the username and not UI chrome.
func adjacentBodyText(container *goquery.Selection, author string) string {
	var body string
	container.Find("span, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true // not a leaf
		}
		text := strings.TrimSpace(s.Text())
		if text == "" || text == author || text == "@"+author {
			return true
		}
		if isChrome("", text) {
			return true
		}
		body = text
		return false
	})
	return body
}

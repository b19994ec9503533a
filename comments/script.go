package comments

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/driftlab/drift/browser"
)

var jsonScriptTypes = map[string]bool{
	"application/json":    true,
	"application/ld+json": true,
}

// inlineJSONRe captures the object literal assigned to a global in inline
// bootstrap scripts (window._sharedData = {...}; and the like).
var inlineJSONRe = regexp.MustCompile(`(?s)=\s*(\{.*\})\s*;?\s*$`)

// extractScript scans embedded structured-data script payloads for the
// same comment shapes the API strategy looks for. Sites that server-side
// render often inline the first page of comments here.
func (p *Pipeline) extractScript(ctx context.Context, page browser.Session, contentID string) []Comment {
	raw, err := page.HTML(ctx)
	if err != nil {
		p.logger.Debug("comments: script stage: page html unavailable", "error", err)
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}

	var found []Comment
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		blob := scriptJSON(s)
		if blob == "" {
			return
		}
		found = append(found, walkPayload(blob, contentID, ProvenanceScript)...)
	})
	return found
}

// scriptJSON pulls a JSON object out of one script element, or "" when
// the script carries none.
func scriptJSON(s *goquery.Selection) string {
	typ, _ := s.Attr("type")
	text := strings.TrimSpace(s.Text())
	if text == "" {
		return ""
	}
	if jsonScriptTypes[typ] {
		return text
	}
	if m := inlineJSONRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

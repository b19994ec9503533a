package comments

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/driftlab/drift/browser"
)

// maxPlausibleTotal guards against mis-parses: a number pulled out of
// unrelated copy. Posts with more comments than this exist, but the
// count is only used to decide whether to keep digging, so a cap is safe.
const maxPlausibleTotal = 10000

// Copy patterns the UI advertises comment totals in.
var expectedTotalRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)view all ([\d.,]+) comments`),
	regexp.MustCompile(`(?i)ver (?:los|las) ([\d.,]+) comentarios`),
	regexp.MustCompile(`(?i)\b([\d.,]+) comments\b`),
	regexp.MustCompile(`(?i)\b([\d.,]+) comentarios\b`),
}

// ExpectedTotal reads the comment count the page itself advertises, from
// visible copy first and the meta description as fallback. Returns 0 when
// no plausible count is found; 0 means "unknown", never "none".
func ExpectedTotal(ctx context.Context, page browser.Session) int {
	if text, err := page.VisibleText(ctx); err == nil {
		if n := parseTotal(text); n > 0 {
			return n
		}
	}
	raw, err := page.HTML(ctx)
	if err != nil {
		return 0
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return 0
	}
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if content, ok := doc.Find(sel).Attr("content"); ok {
			if n := parseTotal(content); n > 0 {
				return n
			}
		}
	}
	return 0
}

func parseTotal(text string) int {
	for _, re := range expectedTotalRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		digits := strings.NewReplacer(",", "", ".", "").Replace(m[1])
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		if n > 0 && n < maxPlausibleTotal {
			return n
		}
	}
	return 0
}

package discover

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxExcerptBytes caps the HTML sent to the model. Cost and latency scale
// with prompt size; anything past this adds noise, not signal.
const maxExcerptBytes = 6000

// excerptPolicy strips scripts, styles, and event handlers while keeping
// the structural attributes selector discovery needs.
var excerptPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"div", "span", "a", "p", "ul", "ol", "li", "form", "input", "textarea",
		"button", "label", "select", "option", "section", "article", "main",
		"nav", "header", "footer", "aside", "h1", "h2", "h3", "h4", "img",
		"svg", "time",
	)
	p.AllowAttrs(
		"id", "class", "role", "aria-label", "aria-labelledby", "data-testid",
		"data-test", "data-qa", "name", "type", "placeholder", "maxlength",
		"autocomplete", "href", "for", "inputmode", "contenteditable",
	).Globally()
	return p
}()

// BuildExcerpt sanitises raw HTML down to structure and caps its length.
func BuildExcerpt(rawHTML string) string {
	clean := excerptPolicy.Sanitize(rawHTML)
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > maxExcerptBytes {
		clean = clean[:maxExcerptBytes]
	}
	return clean
}

const discoverySystem = `You find CSS selectors in HTML from a social media web app whose
markup changes frequently. Given a target element description and an HTML excerpt, return
the most specific selectors that match exactly the target element. Prefer stable attributes
(data-testid, aria-label, name) over class names, and class names over tag structure. Never
return bare tags or role-only selectors. Respond with a JSON object:
{"candidates": ["selector1", "selector2"], "confidence": 0.0-1.0, "notes": "..."}`

// buildPrompt assembles the user message for one discovery attempt.
func buildPrompt(element string, spec ElementSpec, excerpt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target element: %s\n", element)
	fmt.Fprintf(&b, "Description: %s\n", spec.Description)
	fmt.Fprintf(&b, "Must have: %s\n", strings.Join(spec.Required, "; "))
	fmt.Fprintf(&b, "Must NOT be: %s\n", strings.Join(spec.Forbidden, "; "))
	fmt.Fprintf(&b, "\nHTML excerpt:\n%s\n", excerpt)
	b.WriteString("\nReturn up to 5 candidate selectors, most specific first.")
	return b.String()
}

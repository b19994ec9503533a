package discover

import (
	"regexp"
	"strings"
)

// A broad locator is worse than a missing one: it risks interacting with
// the wrong element. Candidates from the model are therefore rejected
// unless they carry at least one high-specificity signal.

// specificAttrs are attribute names precise enough to qualify a selector
// on their own: explicit test identifiers and explicit labels.
var specificAttrs = map[string]bool{
	"data-testid": true,
	"data-test":   true,
	"data-qa":     true,
	"aria-label":  true,
	"name":        true,
	"placeholder": true,
}

// genericAttrs never qualify a selector on their own.
var genericAttrs = map[string]bool{
	"role":     true,
	"tabindex": true,
	"type":     true,
	"class":    true,
	"style":    true,
}

var (
	bareTagRe  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`)
	attrNameRe = regexp.MustCompile(`\[\s*([a-zA-Z-]+)`)
)

// IsTooGeneric reports whether a selector is too broad to trust.
func IsTooGeneric(selector string) bool {
	s := strings.TrimSpace(selector)
	if s == "" || s == "*" || strings.HasPrefix(s, "* ") {
		return true
	}

	// Bare tag names (div, button, a, ...) match far too much.
	if bareTagRe.MatchString(s) {
		return true
	}

	// An ID anchors the selector.
	if strings.Contains(s, "#") {
		return false
	}

	// A class token is a weak but acceptable anchor.
	if containsClassToken(s) {
		return false
	}

	// Attribute-only selectors: at least one attribute must be from the
	// high-specificity allow-list.
	attrs := attrNameRe.FindAllStringSubmatch(s, -1)
	if len(attrs) == 0 {
		// Tag combinations without any qualifier ("form input", "ul > li").
		return true
	}
	for _, m := range attrs {
		name := strings.ToLower(m[1])
		if specificAttrs[name] {
			return false
		}
		if !genericAttrs[name] {
			// Unlisted attributes (e.g. aria-describedby, data-*) are
			// treated as specific enough when explicitly valued.
			if strings.Contains(s, m[1]+"=") {
				return false
			}
		}
	}
	return true
}

// containsClassToken detects a ".class" component outside attribute values.
func containsClassToken(s string) bool {
	depth := 0
	for i, ch := range s {
		switch ch {
		case '[':
			depth++
		case ']':
			depth--
		case '.':
			if depth == 0 && i+1 < len(s) {
				return true
			}
		}
	}
	return false
}

// FilterCandidates splits model-returned selectors into accepted and
// rejected sets, preserving order and dropping duplicates.
func FilterCandidates(candidates []string) (accepted, rejected []string) {
	seen := map[string]bool{}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		if IsTooGeneric(c) {
			rejected = append(rejected, c)
		} else {
			accepted = append(accepted, c)
		}
	}
	return accepted, rejected
}

package comments

import "github.com/driftlab/drift/browser"

// extractAPI walks the structured JSON payloads captured from the page's
// own API traffic. This is the cheapest and most reliable strategy when
// payloads are available: the data is already shaped, no markup guessing.
func (p *Pipeline) extractAPI(page browser.Session, contentID string) []Comment {
	var found []Comment
	for _, raw := range page.Payloads() {
		found = append(found, walkPayload(raw, contentID, ProvenanceAPI)...)
	}
	return found
}

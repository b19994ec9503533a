package comments

import (
	"context"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/driftlab/drift/browser"
	"github.com/driftlab/drift/extract"
	"github.com/driftlab/drift/llm"
)

// Excerpt caps bound prompt cost. Comment sections on the first screen
// fit comfortably inside these.
const (
	maxMarkdownBytes = 6000
	maxVisibleBytes  = 3000
)

const extractionSystem = `You extract user comments from social media page content.
Return ONLY a JSON object of the form:
{"comments": [{"username": "...", "text": "..."}]}
Include only real user comments. Exclude captions, UI labels, menu items,
suggestions, and the post author's own caption. Return {"comments": []} if
there are none.`

type modelAnswer struct {
	Comments []struct {
		Username string `json:"username"`
		Text     string `json:"text"`
	} `json:"comments"`
}

// extractModel is the last-resort strategy: convert the page to bounded
// markdown plus visible text and ask the model for username/text pairs.
// Any failure yields an empty result, never an error.
func (p *Pipeline) extractModel(ctx context.Context, page browser.Session, contentID string) []Comment {
	if !p.client.Available() {
		return nil
	}

	raw, err := page.HTML(ctx)
	if err != nil {
		return nil
	}
	markdown := pageMarkdown(raw)
	visible := extract.MainText(raw)
	if visible == "" {
		visible, _ = page.VisibleText(ctx)
	}
	visible = truncate(visible, maxVisibleBytes)

	var b strings.Builder
	b.WriteString("Page content as markdown:\n\n")
	b.WriteString(markdown)
	if visible != "" {
		b.WriteString("\n\nVisible text:\n\n")
		b.WriteString(visible)
	}

	resp, err := p.client.Complete(ctx, llm.Request{System: extractionSystem, Prompt: b.String()})
	if err != nil {
		p.logger.Warn("comments: model stage failed", "content_id", contentID, "error", err)
		return nil
	}

	var answer modelAnswer
	if err := llm.ParseJSONBlock(resp.Text, &answer); err != nil {
		p.logger.Warn("comments: model stage returned malformed answer", "content_id", contentID, "error", err)
		return nil
	}

	var found []Comment
	for _, item := range answer.Comments {
		author := strings.TrimPrefix(strings.TrimSpace(item.Username), "@")
		body := strings.TrimSpace(item.Text)
		if author == "" || len(body) < 1 {
			continue
		}
		found = append(found, Comment{
			ID:         synthesizeID(author, body),
			ContentID:  contentID,
			Author:     author,
			Body:       body,
			Timestamp:  time.Now().UnixMilli(),
			Provenance: ProvenanceAI,
		})
	}
	return found
}

// pageMarkdown converts raw HTML to truncated markdown. Falls back to the
// raw HTML prefix when conversion fails.
func pageMarkdown(raw string) string {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	md, err := conv.ConvertString(raw)
	if err != nil {
		return truncate(raw, maxMarkdownBytes)
	}
	return truncate(md, maxMarkdownBytes)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

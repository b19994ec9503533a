package comments

import (
	"strconv"
	"strings"
	"time"
)

// Field-extraction rules for the many payload shapes the target ships.
// Each rule lists candidate keys in priority order; the first present and
// well-typed key wins. New provider variants get a key appended here, not
// a new code path.
var (
	textKeys = []string{"text", "comment_text", "body", "content"}
	idKeys   = []string{"pk", "id", "comment_id"}
	timeKeys = []string{"created_at", "created_time", "taken_at", "timestamp", "created_at_utc"}
	likeKeys = []string{"comment_like_count", "like_count", "likes"}

	// userKeys hold a nested user object; userNameKeys apply both to that
	// object and to the comment object itself (flat shapes).
	userKeys     = []string{"user", "owner", "author", "from"}
	userNameKeys = []string{"username", "handle", "screen_name", "name"}
	userIDKeys   = []string{"pk", "id", "user_id"}
)

// chromeTexts and chromeIDs identify UI affordances that share a shape
// with comments (a label plus an id) but are menu items, not content.
var chromeTexts = []string{
	"report", "block", "hide", "mute", "unfollow", "not interested",
	"copy link", "share to", "cancel", "delete", "add a comment",
	"view replies", "view all", "log in", "sign up",
	"denunciar", "bloquear", "ocultar", "cancelar", "eliminar",
}

var chromeIDs = []string{
	"menu", "button", "dialog", "sheet", "nav", "toast", "banner",
}

// buildComment evaluates the comment-likeness predicate against a decoded
// object and, on a match, assembles the canonical record. A match needs
// non-empty text plus an id-like or user-like field, and must not trip
// the UI-chrome filters.
func buildComment(obj map[string]any, contentID, parentID, provenance string) (Comment, bool) {
	body := firstString(obj, textKeys)
	if len(strings.TrimSpace(body)) < 1 {
		return Comment{}, false
	}

	id := firstScalar(obj, idKeys)
	author, authorID := extractUser(obj)
	if id == "" && author == "" {
		return Comment{}, false
	}
	if isChrome(id, body) {
		return Comment{}, false
	}

	c := Comment{
		ContentID:  contentID,
		Author:     author,
		AuthorID:   authorID,
		Body:       strings.TrimSpace(body),
		Timestamp:  extractTimestamp(obj),
		LikeCount:  firstInt(obj, likeKeys),
		ParentID:   parentID,
		Provenance: provenance,
	}
	c.ID = id
	if c.ID == "" {
		c.ID = synthesizeID(c.Author, c.Body)
	}
	return c, true
}

// synthesizeID derives a stable id for records whose provider id is
// missing. Hash-based so re-extraction yields the same id.
func synthesizeID(author, body string) string {
	return "c-" + ContentHash(author, body)[:12]
}

func isChrome(id, text string) bool {
	lt := strings.ToLower(strings.TrimSpace(text))
	for _, bad := range chromeTexts {
		if lt == bad || strings.HasPrefix(lt, bad+" ") {
			return true
		}
	}
	li := strings.ToLower(id)
	for _, bad := range chromeIDs {
		if strings.Contains(li, bad) {
			return true
		}
	}
	return false
}

func extractUser(obj map[string]any) (name, id string) {
	for _, key := range userKeys {
		if nested, ok := obj[key].(map[string]any); ok {
			name = firstString(nested, userNameKeys)
			id = firstScalar(nested, userIDKeys)
			if name != "" || id != "" {
				return name, id
			}
		}
	}
	// Flat shapes carry the handle on the comment object itself.
	return firstString(obj, userNameKeys[:1]), firstScalar(obj, []string{"user_id", "owner_id"})
}

// extractTimestamp returns unix millis. Payload timestamps arrive as unix
// seconds, unix millis, or RFC 3339 strings; anything malformed or absent
// defaults to now rather than failing the record.
func extractTimestamp(obj map[string]any) int64 {
	for _, key := range timeKeys {
		switch v := obj[key].(type) {
		case float64:
			return normalizeEpoch(int64(v))
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t.UnixMilli()
			}
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return normalizeEpoch(n)
			}
		}
	}
	return time.Now().UnixMilli()
}

// normalizeEpoch maps second- and millisecond-resolution epochs to millis.
func normalizeEpoch(n int64) int64 {
	if n <= 0 {
		return time.Now().UnixMilli()
	}
	if n < 1e12 {
		return n * 1000
	}
	return n
}

func firstString(obj map[string]any, keys []string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstScalar stringifies the first present string or numeric value. Ids
// arrive as both JSON strings and numbers depending on the endpoint.
func firstScalar(obj map[string]any, keys []string) string {
	for _, key := range keys {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

func firstInt(obj map[string]any, keys []string) int {
	for _, key := range keys {
		switch v := obj[key].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}

package comments

import "encoding/json"

// maxWalkDepth bounds recursion through decoded payloads. Real comment
// trees sit well inside this; the cap makes the traversal total even on
// pathological or cyclic-looking payloads.
const maxWalkDepth = 15

// replyKeys are the container fields that hold threaded replies under a
// parent comment. Children found through them carry the parent's id.
var replyKeys = []string{
	"replies",
	"child_comments",
	"preview_child_comments",
	"edge_threaded_comments",
	"thread_comments",
}

// walkPayload decodes one raw JSON payload and collects every object in
// it that looks like a comment. Decode failures yield nothing; payloads
// are captured opportunistically and many are not JSON at all.
func walkPayload(raw string, contentID, provenance string) []Comment {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	w := &walker{contentID: contentID, provenance: provenance}
	w.walk(v, 0, "")
	return w.found
}

// walker is a depth-bounded visitor over the tagged JSON value space:
// objects descend key by key, arrays element by element, scalars stop.
type walker struct {
	contentID  string
	provenance string
	found      []Comment
}

func (w *walker) walk(v any, depth int, parentID string) {
	if depth > maxWalkDepth {
		return
	}
	switch val := v.(type) {
	case map[string]any:
		w.walkObject(val, depth, parentID)
	case []any:
		for _, item := range val {
			w.walk(item, depth+1, parentID)
		}
	}
}

func (w *walker) walkObject(obj map[string]any, depth int, parentID string) {
	c, ok := buildComment(obj, w.contentID, parentID, w.provenance)
	if ok {
		w.found = append(w.found, c)
		// Replies hang off the comment that matched; everything below a
		// reply container belongs to this comment's thread.
		for _, key := range replyKeys {
			if children, present := obj[key]; present {
				w.walk(children, depth+1, c.ID)
			}
		}
	}
	for key, child := range obj {
		if ok && isReplyKey(key) {
			continue // already walked with the parent id
		}
		w.walk(child, depth+1, parentID)
	}
}

func isReplyKey(key string) bool {
	for _, k := range replyKeys {
		if key == k {
			return true
		}
	}
	return false
}

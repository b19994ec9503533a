package discover

// ElementSpec describes the element the model is asked to locate: what the
// right element must have and must not have. The table covers the element
// names the workflows actually resolve; unknown names fall back to a
// generic spec built from the name itself.
type ElementSpec struct {
	Description string
	Required    []string
	Forbidden   []string
}

var elementSpecs = map[string]ElementSpec{
	"comment_input": {
		Description: "the text input or textarea where a user types a new comment on a post",
		Required:    []string{"editable (textarea or contenteditable)", "placeholder or aria-label mentioning comments"},
		Forbidden:   []string{"search fields", "message/DM composers", "bio or caption editors"},
	},
	"comment_list": {
		Description: "the container element holding the rendered list of comments under a post",
		Required:    []string{"contains multiple child items with user links and text"},
		Forbidden:   []string{"suggestion lists", "like lists", "navigation menus"},
	},
	"comment_item": {
		Description: "one rendered comment row: an author link plus the comment text",
		Required:    []string{"a profile link", "adjacent visible text that is not the username"},
		Forbidden:   []string{"reply composers", "ads", "menu rows"},
	},
	"like_button": {
		Description: "the button that likes the currently open post",
		Required:    []string{"button or role=button", "label mentioning like"},
		Forbidden:   []string{"comment-level like buttons", "share or save buttons"},
	},
	"view_more_comments": {
		Description: "the control that loads additional comments for the post",
		Required:    []string{"clickable", "label mentioning more comments or view all"},
		Forbidden:   []string{"view-more for captions or bios", "pagination of other surfaces"},
	},
	"post_article": {
		Description: "the main article container of a single post page",
		Required:    []string{"contains the media and the comment section"},
		Forbidden:   []string{"sidebar suggestions", "header or footer"},
	},
}

// specFor returns the spec for a known element name, or a generic fallback.
func specFor(element string) ElementSpec {
	if s, ok := elementSpecs[element]; ok {
		return s
	}
	return ElementSpec{
		Description: "the element named \"" + element + "\" on this page",
		Required:    []string{"visible", "uniquely identifiable"},
		Forbidden:   []string{"unrelated look-alike elements"},
	}
}

package extract

import (
	"strings"
	"testing"
)

func TestMainText_Landmarks(t *testing.T) {
	page := `<html><body>
		<nav>Home Explore Reels</nav>
		<aside class="suggestion-rail">Suggested for you</aside>
		<main>
			<article><p>the post caption with enough words to matter</p></article>
		</main>
		<footer>About Help Press</footer>
	</body></html>`

	got := MainText(page)
	if !strings.Contains(got, "post caption") {
		t.Fatalf("missing content: %q", got)
	}
	for _, chrome := range []string{"Explore", "Suggested", "About Help"} {
		if strings.Contains(got, chrome) {
			t.Errorf("chrome leaked into content: %q", chrome)
		}
	}
}

func TestMainText_DensityFallback(t *testing.T) {
	// No semantic landmarks: the dense paragraph must win over the
	// link-heavy list.
	page := `<html><body>
		<div class="navbar"><a href="/a">one</a><a href="/b">two</a><a href="/c">three</a></div>
		<div><p>` + strings.Repeat("actual readable content here ", 10) + `</p></div>
	</body></html>`

	got := MainText(page)
	if !strings.Contains(got, "actual readable content") {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "one") {
		t.Errorf("navigation links leaked: %q", got)
	}
}

func TestMainText_Unparseable(t *testing.T) {
	if got := MainText(""); got != "" {
		t.Fatalf("empty input: %q", got)
	}
}

func TestMainText_SkipsScripts(t *testing.T) {
	page := `<html><body><main><p>visible words live here for a while</p>
		<script>var hidden = "secret";</script></main></body></html>`
	got := MainText(page)
	if strings.Contains(got, "secret") {
		t.Fatalf("script text leaked: %q", got)
	}
}

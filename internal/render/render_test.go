package render

import (
	"bytes"
	"strings"
	"testing"
)

// TestDocumentLinks tests raw href extraction.
func TestDocumentLinks(t *testing.T) {
	t.Parallel()

	t.Run("returns hrefs in document order without resolving", func(t *testing.T) {
		t.Parallel()

		htmlContent := `<html><body>
			<a href="/docs">Docs</a>
			<a href="https://other.example.com/">Other</a>
			<a href="guide#install">Install</a>
			<a href="/docs">Docs again</a>
			<a name="anchor">No href</a>
		</body></html>`

		doc, err := Parse(strings.NewReader(htmlContent), "text/html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := doc.Links()
		want := []string{"/docs", "https://other.example.com/", "guide#install", "/docs"}
		if len(got) != len(want) {
			t.Fatalf("expected %d links, got %d: %v", len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("link %d: got %q, expected %q", i, got[i], want[i])
			}
		}
	})

	t.Run("page without anchors", func(t *testing.T) {
		t.Parallel()

		doc, err := Parse(strings.NewReader("<p>nothing here</p>"), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if links := doc.Links(); len(links) != 0 {
			t.Errorf("expected no links, got %v", links)
		}
	})
}

// TestDocumentTitle tests title extraction.
func TestDocumentTitle(t *testing.T) {
	t.Parallel()

	doc, err := Parse(strings.NewReader("<html><head><title>\n  Stream   Docs </title></head><body></body></html>"), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := doc.Title(); got != "Stream Docs" {
		t.Errorf("got %q, expected %q", got, "Stream Docs")
	}
}

// TestParse_Charset verifies non-UTF-8 bodies are decoded.
func TestParse_Charset(t *testing.T) {
	t.Parallel()

	// "café" in ISO-8859-1.
	body := []byte("<html><body><p>caf\xe9</p></body></html>")
	doc, err := Parse(bytes.NewReader(body), "text/html; charset=iso-8859-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md := doc.Markdown(); md != "café" {
		t.Errorf("got %q, expected %q", md, "café")
	}
}

// TestDocumentMarkdown tests the HTML to Markdown conversion.
func TestDocumentMarkdown(t *testing.T) {
	t.Parallel()

	render := func(t *testing.T, htmlContent string) string {
		t.Helper()
		doc, err := Parse(strings.NewReader(htmlContent), "text/html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return doc.Markdown()
	}

	t.Run("headings use ATX style", func(t *testing.T) {
		t.Parallel()

		got := render(t, "<h1>Upgrading</h1><h3>Workers</h3><p>Body text.</p>")
		want := "# Upgrading\n\n### Workers\n\nBody text."
		if got != want {
			t.Errorf("got %q, expected %q", got, want)
		}
	})

	t.Run("inline formatting and links", func(t *testing.T) {
		t.Parallel()

		got := render(t, `<p>Read <a href="/guide">the guide</a> and <strong>restart</strong> with <code>kill -HUP</code>.</p>`)
		want := "Read [the guide](/guide) and **restart** with `kill -HUP`."
		if got != want {
			t.Errorf("got %q, expected %q", got, want)
		}
	})

	t.Run("lists", func(t *testing.T) {
		t.Parallel()

		got := render(t, "<ul><li>one</li><li>two</li></ul><ol><li>first</li><li>second</li></ol>")
		want := "- one\n- two\n\n1. first\n2. second"
		if got != want {
			t.Errorf("got %q, expected %q", got, want)
		}
	})

	t.Run("nested list is indented", func(t *testing.T) {
		t.Parallel()

		got := render(t, "<ul><li>parent<ul><li>child</li></ul></li></ul>")
		if !strings.Contains(got, "- parent\n  - child") {
			t.Errorf("expected nested list, got %q", got)
		}
	})

	t.Run("preformatted text keeps its layout", func(t *testing.T) {
		t.Parallel()

		got := render(t, "<pre><code>line one\n    indented</code></pre>")
		want := "```\nline one\n    indented\n```"
		if got != want {
			t.Errorf("got %q, expected %q", got, want)
		}
	})

	t.Run("script and style are dropped", func(t *testing.T) {
		t.Parallel()

		got := render(t, "<script>alert(1)</script><style>p{}</style><p>visible</p>")
		if got != "visible" {
			t.Errorf("got %q, expected %q", got, "visible")
		}
	})

	t.Run("blockquote", func(t *testing.T) {
		t.Parallel()

		got := render(t, "<blockquote><p>quoted</p></blockquote>")
		if got != "> quoted" {
			t.Errorf("got %q, expected %q", got, "> quoted")
		}
	})

	t.Run("image", func(t *testing.T) {
		t.Parallel()

		got := render(t, `<p><img src="/arch.png" alt="Architecture"></p>`)
		if got != "![Architecture](/arch.png)" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("table", func(t *testing.T) {
		t.Parallel()

		got := render(t, `<table>
			<thead><tr><th>Plan</th><th>Price</th></tr></thead>
			<tbody><tr><td>Basic</td><td>$10</td></tr><tr><td>Pro</td><td>$20</td></tr></tbody>
		</table>`)
		for _, cell := range []string{"Plan", "Price", "Basic", "$10", "Pro", "$20"} {
			if !strings.Contains(got, cell) {
				t.Errorf("expected table to contain %q, got %q", cell, got)
			}
		}
		if !strings.Contains(got, "|") {
			t.Errorf("expected Markdown table, got %q", got)
		}
		if strings.Index(got, "Plan") > strings.Index(got, "Basic") {
			t.Errorf("expected header before body rows, got %q", got)
		}
	})

	t.Run("table rows wider than the header", func(t *testing.T) {
		t.Parallel()

		got := render(t, `<table><tr><td>a</td></tr><tr><td>b</td><td>c</td><td>d</td></tr></table>`)
		for _, cell := range []string{"a", "b", "c", "d"} {
			if !strings.Contains(got, cell) {
				t.Errorf("expected table to contain %q, got %q", cell, got)
			}
		}
		lines := strings.Split(strings.TrimSpace(got), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header, separator and one row, got %q", got)
		}
		if strings.Count(lines[0], "|") != strings.Count(lines[2], "|") {
			t.Errorf("expected header as wide as the widest row, got %q", got)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		if got := render(t, "<html><body></body></html>"); got != "" {
			t.Errorf("expected empty markdown, got %q", got)
		}
	})
}

// TestHTMLRenderer tests the Render entry point.
func TestHTMLRenderer(t *testing.T) {
	t.Parallel()

	t.Run("html response", func(t *testing.T) {
		t.Parallel()

		page, err := NewHTMLRenderer().Render(strings.NewReader(
			`<html><head><title>Home</title></head><body><h1>Home</h1><a href="/a">A</a></body></html>`),
			"text/html; charset=utf-8")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Title != "Home" {
			t.Errorf("expected title Home, got %q", page.Title)
		}
		if !strings.HasPrefix(page.Markdown, "# Home") {
			t.Errorf("unexpected markdown %q", page.Markdown)
		}
		if len(page.Links) != 1 || page.Links[0] != "/a" {
			t.Errorf("unexpected links %v", page.Links)
		}
	})

	t.Run("plain text passes through", func(t *testing.T) {
		t.Parallel()

		page, err := NewHTMLRenderer().Render(strings.NewReader("  # Notes\n\n<a href=\"/x\">x</a>\n"), "text/plain")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Markdown != "# Notes\n\n<a href=\"/x\">x</a>" {
			t.Errorf("unexpected markdown %q", page.Markdown)
		}
		if len(page.Links) != 0 {
			t.Errorf("expected no links from plain text, got %v", page.Links)
		}
	})
}

// TestIsPlainText tests media type detection.
func TestIsPlainText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/plain", true},
		{"text/plain; charset=utf-8", true},
		{"text/markdown", true},
		{"text/html", false},
		{"application/xhtml+xml", false},
		{"", false},
		{"not a media type;;", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			t.Parallel()

			if got := isPlainText(tt.contentType); got != tt.want {
				t.Errorf("isPlainText(%q) = %v, expected %v", tt.contentType, got, tt.want)
			}
		})
	}
}
